package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != "8080" {
		t.Fatalf("port = %q", cfg.Server.Port)
	}
	if cfg.Fetch.Strategy != "auto" || cfg.Fetch.MaxAttempts != 3 {
		t.Fatalf("fetch = %+v", cfg.Fetch)
	}
	if !cfg.Browser.Enabled {
		t.Fatal("browser fallback should default on")
	}
	if cfg.Medias24.MaxRequestsPerMinute != 30 || cfg.Medias24.CacheTTLSeconds != 60 {
		t.Fatalf("medias24 = %+v", cfg.Medias24)
	}
	if cfg.Loader.MaxConcurrency != 4 {
		t.Fatalf("loader = %+v", cfg.Loader)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"log_level": "debug",
		"server": {"port": "9999", "request_timeout_sec": 5},
		"fetch": {"strategy": "direct", "max_attempts": 1, "base_delay_ms": 10},
		"medias24": {"base_url": "http://localhost:1234", "max_requests_per_minute": 2, "burst": 1, "cache_ttl_sec": 0}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Server.Port != "9999" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Fetch.Strategy != "direct" || cfg.Fetch.MaxAttempts != 1 {
		t.Fatalf("fetch = %+v", cfg.Fetch)
	}
	if cfg.Medias24.BaseURL != "http://localhost:1234" || cfg.Medias24.CacheTTLSeconds != 0 {
		t.Fatalf("medias24 = %+v", cfg.Medias24)
	}
	// fields absent from the file keep their defaults
	if cfg.Boursweb.MaxRequestsPerMinute != 12 {
		t.Fatalf("boursweb = %+v", cfg.Boursweb)
	}
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file must not fail: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("want parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("FETCH_STRATEGY", "Browser")
	t.Setenv("BROWSER_ENABLED", "false")
	t.Setenv("MEDIAS24_MAX_RPM", "3")
	t.Setenv("LOADER_MAX_CONCURRENCY", "8")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != "7070" || cfg.LogLevel != "warn" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Fetch.Strategy != "browser" {
		t.Fatalf("strategy = %q", cfg.Fetch.Strategy)
	}
	if cfg.Browser.Enabled {
		t.Fatal("BROWSER_ENABLED=false not applied")
	}
	if cfg.Medias24.MaxRequestsPerMinute != 3 || cfg.Loader.MaxConcurrency != 8 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvIgnoresGarbageNumbers(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT_SEC", "soon")
	t.Setenv("FETCH_MAX_ATTEMPTS", "-2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.RequestTimeoutSec != 30 || cfg.Fetch.MaxAttempts != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
}
