package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Fetch struct {
	// Strategy selects the acquisition path: "direct", "browser" or
	// "auto" (direct with browser fallback).
	Strategy    string `json:"strategy"`
	MaxAttempts int    `json:"max_attempts"`
	BaseDelayMS int    `json:"base_delay_ms"`
}

type Browser struct {
	Enabled        bool `json:"enabled"`
	WaitTimeoutSec int  `json:"wait_timeout_sec"`
}

type Medias24 struct {
	BaseURL               string `json:"base_url"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
	Burst                 int    `json:"burst"`
	CacheTTLSeconds       int    `json:"cache_ttl_sec"`
	CacheMaxItems         int    `json:"cache_max_items"`
}

type Boursweb struct {
	BaseURL              string `json:"base_url"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type Loader struct {
	MaxConcurrency int `json:"max_concurrency"`
}

type Config struct {
	LogLevel string   `json:"log_level"`
	Server   Server   `json:"server"`
	Fetch    Fetch    `json:"fetch"`
	Browser  Browser  `json:"browser"`
	Medias24 Medias24 `json:"medias24"`
	Boursweb Boursweb `json:"boursweb"`
	Loader   Loader   `json:"loader"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		Server:   Server{Port: "8080", RequestTimeoutSec: 30},
		Fetch: Fetch{
			Strategy:    "auto",
			MaxAttempts: 3,
			BaseDelayMS: 1000,
		},
		Browser: Browser{
			Enabled:        true,
			WaitTimeoutSec: 10,
		},
		Medias24: Medias24{
			BaseURL:              "https://medias24.com/content/api",
			MaxRequestsPerMinute: 30,
			Burst:                5,
			CacheTTLSeconds:      60,
			CacheMaxItems:        1000,
		},
		Boursweb: Boursweb{
			BaseURL:              "https://www.casablanca-bourse.com/bourseweb",
			MaxRequestsPerMinute: 12,
			Burst:                2,
		},
		Loader: Loader{MaxConcurrency: 4},
	}
}

// Load reads JSON config from path. If path is empty or the file does
// not exist, it returns defaults. Environment variables override select
// fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("FETCH_STRATEGY"); v != "" {
		cfg.Fetch.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("FETCH_MAX_ATTEMPTS"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Fetch.MaxAttempts = x
		}
	}
	if v := os.Getenv("FETCH_BASE_DELAY_MS"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Fetch.BaseDelayMS = x
		}
	}
	if v := os.Getenv("BROWSER_ENABLED"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Browser.Enabled = true
		case "0", "false", "no", "n":
			cfg.Browser.Enabled = false
		}
	}
	if v := os.Getenv("BROWSER_WAIT_TIMEOUT_SEC"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Browser.WaitTimeoutSec = x
		}
	}
	if v := os.Getenv("MEDIAS24_BASE_URL"); v != "" {
		cfg.Medias24.BaseURL = v
	}
	if v := os.Getenv("MEDIAS24_MAX_RPM"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Medias24.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("MEDIAS24_MIN_INTERVAL_SEC"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Medias24.MinRequestIntervalSec = x
		}
	}
	if v := os.Getenv("MEDIAS24_BURST"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Medias24.Burst = x
		}
	}
	if v := os.Getenv("MEDIAS24_CACHE_TTL_SEC"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Medias24.CacheTTLSeconds = x
		}
	}
	if v := os.Getenv("MEDIAS24_CACHE_MAX_ITEMS"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Medias24.CacheMaxItems = x
		}
	}
	if v := os.Getenv("BOURSWEB_BASE_URL"); v != "" {
		cfg.Boursweb.BaseURL = v
	}
	if v := os.Getenv("BOURSWEB_MAX_RPM"); v != "" {
		if x := atoi(v); x >= 0 {
			cfg.Boursweb.MaxRequestsPerMinute = x
		}
	}
	if v := os.Getenv("BOURSWEB_BURST"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Boursweb.Burst = x
		}
	}
	if v := os.Getenv("LOADER_MAX_CONCURRENCY"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Loader.MaxConcurrency = x
		}
	}
}

func atoi(s string) int {
	var x int
	fmt.Sscanf(s, "%d", &x)
	return x
}
