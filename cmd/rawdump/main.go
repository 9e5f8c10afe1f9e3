// rawdump fetches one or more upstream endpoints through the strategy
// chain and reports how each body classifies, keeping the raw payloads
// on disk. Meant for diagnosing upstream format drift without touching
// the normalizers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/config"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/fetch"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/httpx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/payload"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/refdata"
)

type report struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Bytes    int    `json:"bytes"`
	Embedded bool   `json:"embedded_json"`
	File     string `json:"file"`
	Error    string `json:"error,omitempty"`
}

func main() {
	var (
		rawURL     string
		namesCSV   string
		outDir     string
		cfgPath    string
		timeoutSec int
		useBrowser bool
	)
	flag.StringVar(&rawURL, "url", "", "explicit URL to dump (overrides -names)")
	flag.StringVar(&namesCSV, "names", "", "comma-separated security names; dumps their price history endpoints")
	flag.StringVar(&outDir, "out", "rawdump", "output directory for payload files")
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.IntVar(&timeoutSec, "timeout", 0, "request timeout seconds (overrides config)")
	flag.BoolVar(&useBrowser, "browser", false, "go straight to the browser strategy")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if timeoutSec > 0 {
		cfg.Server.RequestTimeoutSec = timeoutSec
	}
	if useBrowser {
		cfg.Fetch.Strategy = "browser"
	}
	logger := logx.New(cfg.LogLevel)

	targets, err := buildTargets(cfg, rawURL, splitCSV(namesCSV))
	if err != nil {
		log.Fatalf("targets: %v", err)
	}
	if len(targets) == 0 {
		log.Fatal("nothing to dump: pass -url or -names")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("out dir: %v", err)
	}

	client := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	direct := fetch.NewDirect(client)
	direct.Logger = logger
	browser := fetch.NewBrowser()
	browser.Logger = logger

	var strategies []fetch.Strategy
	switch cfg.Fetch.Strategy {
	case "browser":
		strategies = []fetch.Strategy{browser}
	case "direct":
		strategies = []fetch.Strategy{direct}
	default:
		strategies = []fetch.Strategy{direct, browser}
	}
	chain := fetch.NewChain(strategies...)
	chain.Logger = logger

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	reports := make([]report, 0, len(targets))
	for i, target := range targets {
		rep := report{URL: target.URL}
		body, err := chain.Fetch(ctx, target)
		if err != nil {
			rep.Error = err.Error()
			reports = append(reports, rep)
			continue
		}
		raw := payload.Classify(body)
		rep.Kind = raw.Kind.String()
		rep.Bytes = len(body)
		if raw.Kind == payload.KindHTML {
			_, rep.Embedded = payload.EmbeddedJSON(raw.Doc)
		}
		rep.File = filepath.Join(outDir, fmt.Sprintf("payload_%02d.%s", i, fileExt(raw.Kind)))
		if err := os.WriteFile(rep.File, body, 0o644); err != nil {
			rep.Error = err.Error()
		}
		reports = append(reports, rep)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

func buildTargets(cfg config.Config, rawURL string, names []string) ([]fetch.Target, error) {
	if rawURL != "" {
		return []fetch.Target{{URL: rawURL}}, nil
	}
	base := cfg.Medias24.BaseURL
	if base == "" {
		base = "https://medias24.com/content/api"
	}
	table := refdata.Load()
	targets := make([]fetch.Target, 0, len(names))
	for _, name := range names {
		params := url.Values{}
		if refdata.IsComposite(name) {
			if name == refdata.MASI {
				params.Set("method", "getMasiHistory")
			} else {
				params.Set("method", "getIndexHistory")
				params.Set("ISIN", "msi20")
			}
			params.Set("periode", "10y")
		} else {
			isin, err := table.ResolveCode(name)
			if err != nil {
				return nil, err
			}
			params.Set("method", "getPriceHistory")
			params.Set("ISIN", isin)
			params.Set("from", "2011-09-18")
			params.Set("to", time.Now().UTC().Format("2006-01-02"))
		}
		params.Set("format", "json")
		targets = append(targets, fetch.Target{URL: base + "?" + params.Encode()})
	}
	return targets, nil
}

func fileExt(kind payload.Kind) string {
	if kind == payload.KindJSON {
		return "json"
	}
	return "html"
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
