package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/aggregate"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/config"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/fetch"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/httpx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/loader"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/refdata"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/source/boursweb"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/source/medias24"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		op         string
		namesCSV   string
		fromStr    string
		toStr      string
		feature    string
		configPath string
		timeout    int
	)
	flag.StringVar(&op, "op", "history", "operation: history, intraday, cours, indicators, dividends, ponderation, summary, notation")
	flag.StringVar(&namesCSV, "names", "", "comma-separated security names (notation), or MASI/MSI20")
	flag.StringVar(&fromStr, "from", "", "start date YYYY-MM-DD (inclusive)")
	flag.StringVar(&toStr, "to", "", "end date YYYY-MM-DD (inclusive)")
	flag.StringVar(&feature, "feature", "Value", "feature column for multi-security history")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.IntVar(&timeout, "timeout", 0, "request timeout seconds (overrides config)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}
	logger := logx.New(cfg.LogLevel)

	from, err := parseDate(fromStr)
	if err != nil {
		log.Fatalf("from: %v", err)
	}
	to, err := parseDate(toStr)
	if err != nil {
		log.Fatalf("to: %v", err)
	}
	names := splitCSV(namesCSV)

	chain := buildChain(cfg, logger)
	m24 := medias24.New(medias24.Config{BaseURL: cfg.Medias24.BaseURL}, chain,
		medias24.WithLogger(logger),
		medias24.WithRateLimiter(limiterFor(cfg.Medias24.MaxRequestsPerMinute, cfg.Medias24.Burst)))
	bw := boursweb.New(boursweb.Config{BaseURL: cfg.Boursweb.BaseURL}, chain,
		boursweb.WithLogger(logger),
		boursweb.WithRateLimiter(limiterFor(cfg.Boursweb.MaxRequestsPerMinute, cfg.Boursweb.Burst)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	switch op {
	case "history":
		runHistory(ctx, cfg, m24, names, from, to, feature)
	case "intraday":
		requireNames(names, 1)
		runIntraday(ctx, m24, names[0])
	case "cours":
		requireNames(names, 1)
		ticker := mustTicker(names[0])
		snap, err := bw.Cours(ctx, ticker)
		exitOn(err)
		emit(snap)
	case "indicators":
		requireNames(names, 1)
		ticker := mustTicker(names[0])
		sheet, err := bw.KeyIndicators(ctx, ticker)
		exitOn(err)
		emit(sheet)
	case "dividends":
		requireNames(names, 1)
		ticker := mustTicker(names[0])
		divs, err := bw.Dividends(ctx, ticker)
		exitOn(err)
		emit(divs)
	case "ponderation":
		rows, err := bw.Ponderation(ctx)
		exitOn(err)
		emit(rows)
	case "summary":
		if sums, err := bw.IndexSummaries(ctx); err == nil && len(sums) > 0 {
			emit(sums)
			return
		} else if err != nil {
			logger.Debug().Err(err).Msg("recap page unavailable, using API summaries")
		}
		emit(m24.Summaries(ctx))
	case "notation":
		emit(refdata.Load().Entries())
	default:
		log.Fatalf("unknown op %q", op)
	}
}

func runHistory(ctx context.Context, cfg config.Config, m24 *medias24.Client, names []string, from, to time.Time, feature string) {
	requireNames(names, 1)

	var l loader.Loader = loader.NewService(m24)
	if cfg.Medias24.CacheTTLSeconds > 0 {
		l = &loader.Cache{
			L:        l,
			TTL:      time.Duration(cfg.Medias24.CacheTTLSeconds) * time.Second,
			MaxItems: cfg.Medias24.CacheMaxItems,
		}
	}
	if cfg.Medias24.MinRequestIntervalSec > 0 {
		l = &loader.MinInterval{L: l, Interval: time.Duration(cfg.Medias24.MinRequestIntervalSec) * time.Second}
	}

	if len(names) == 1 {
		series, err := l.Load(ctx, names[0], from, to)
		exitOn(err)
		emit(series)
		return
	}

	batch := aggregate.New(l)
	batch.Concurrency = cfg.Loader.MaxConcurrency
	table, latest, failed := batch.LoadMany(ctx, names, from, to, feature)
	emit(struct {
		Rows    []aggregate.Row             `json:"rows"`
		Latest  map[string]aggregate.Latest `json:"latest"`
		Failed  []failureOut                `json:"failed,omitempty"`
		Feature string                      `json:"feature"`
	}{table.Rows, latest, failuresOut(failed), feature})
}

func runIntraday(ctx context.Context, m24 *medias24.Client, name string) {
	switch name {
	case refdata.MASI:
		series, err := m24.MarketIntraday(ctx)
		exitOn(err)
		emit(series)
	case refdata.MSI20:
		series, err := m24.IndexIntraday(ctx, "msi20")
		exitOn(err)
		emit(series)
	default:
		isin, err := refdata.Load().ResolveCode(name)
		exitOn(err)
		series, err := m24.StockIntraday(ctx, isin)
		exitOn(err)
		emit(series)
	}
}

type failureOut struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

func failuresOut(failed []aggregate.Failure) []failureOut {
	out := make([]failureOut, 0, len(failed))
	for _, f := range failed {
		out = append(out, failureOut{Name: f.Name, Reason: f.Reason()})
	}
	return out
}

func buildChain(cfg config.Config, logger zerolog.Logger) *fetch.Chain {
	client := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	direct := fetch.NewDirect(client)
	direct.Logger = logger
	if cfg.Fetch.MaxAttempts > 0 {
		direct.MaxAttempts = cfg.Fetch.MaxAttempts
	}
	if cfg.Fetch.BaseDelayMS > 0 {
		direct.BaseDelay = time.Duration(cfg.Fetch.BaseDelayMS) * time.Millisecond
	}

	browser := fetch.NewBrowser()
	browser.Logger = logger
	if cfg.Browser.WaitTimeoutSec > 0 {
		browser.WaitTimeout = time.Duration(cfg.Browser.WaitTimeoutSec) * time.Second
	}

	var strategies []fetch.Strategy
	switch cfg.Fetch.Strategy {
	case "direct":
		strategies = []fetch.Strategy{direct}
	case "browser":
		strategies = []fetch.Strategy{browser}
	default:
		strategies = []fetch.Strategy{direct}
		if cfg.Browser.Enabled {
			strategies = append(strategies, browser)
		}
	}
	chain := fetch.NewChain(strategies...)
	chain.Logger = logger
	return chain
}

func limiterFor(rpm, burst int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

func mustTicker(name string) string {
	ticker, err := refdata.Load().ResolveTicker(name)
	exitOn(err)
	return ticker
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func requireNames(names []string, n int) {
	if len(names) < n {
		log.Fatal("missing -names")
	}
}

func exitOn(err error) {
	if err != nil {
		log.Fatalf("error: %v", err)
	}
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode: %v", err)
	}
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
