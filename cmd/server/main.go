package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/aggregate"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/config"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/fetch"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/httpx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/loader"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/records"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/refdata"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/source/boursweb"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/source/medias24"
)

const dateLayout = "2006-01-02"

type app struct {
	cfg    config.Config
	m24    *medias24.Client
	bw     *boursweb.Client
	loader loader.Loader
	batch  *aggregate.Batch
	logger zerolog.Logger
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logx.New(cfg.LogLevel)

	chain := buildChain(cfg, logger)
	m24 := medias24.New(medias24.Config{BaseURL: cfg.Medias24.BaseURL}, chain,
		medias24.WithLogger(logger),
		medias24.WithRateLimiter(limiterFor(cfg.Medias24.MaxRequestsPerMinute, cfg.Medias24.Burst)))
	bw := boursweb.New(boursweb.Config{BaseURL: cfg.Boursweb.BaseURL}, chain,
		boursweb.WithLogger(logger),
		boursweb.WithRateLimiter(limiterFor(cfg.Boursweb.MaxRequestsPerMinute, cfg.Boursweb.Burst)))

	var l loader.Loader = loader.NewService(m24, loader.WithLogger(logger))
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

	batch := aggregate.New(l, aggregate.WithLogger(logger))
	batch.Concurrency = cfg.Loader.MaxConcurrency

	a := &app{cfg: cfg, m24: m24, bw: bw, loader: l, batch: batch, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/notation", a.handleNotation)
	mux.HandleFunc("/api/history", a.handleHistory)
	mux.HandleFunc("/api/intraday", a.handleIntraday)
	mux.HandleFunc("/api/cours", a.handleCours)
	mux.HandleFunc("/api/indicators", a.handleIndicators)
	mux.HandleFunc("/api/dividends", a.handleDividends)
	mux.HandleFunc("/api/ponderation", a.handlePonderation)
	mux.HandleFunc("/api/summary", a.handleSummary)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(limitBody(mux)))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec+5) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func (a *app) requestCtx(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := time.Duration(a.cfg.Server.RequestTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (a *app) handleNotation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, refdata.Load().Entries())
}

// handleHistory serves one or many price series. One name returns the
// raw series; several names return the reconciled feature table with the
// per-ticker latest projection and the failure list.
func (a *app) handleHistory(w http.ResponseWriter, r *http.Request) {
	names := splitCSV(r.URL.Query().Get("names"))
	if len(names) == 0 {
		http.Error(w, "missing names query param", http.StatusBadRequest)
		return
	}
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		return
	}
	to, err := parseDate(r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "invalid to date", http.StatusBadRequest)
		return
	}
	feature := r.URL.Query().Get("feature")
	if feature == "" {
		feature = "Value"
	}

	ctx, cancel := a.requestCtx(r)
	defer cancel()

	if len(names) == 1 {
		series, err := a.loader.Load(ctx, names[0], from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, series)
		return
	}

	table, latest, failed := a.batch.LoadMany(ctx, names, from, to, feature)
	type failureOut struct {
		Name   string `json:"name"`
		Reason string `json:"reason"`
	}
	outFailed := make([]failureOut, 0, len(failed))
	for _, f := range failed {
		outFailed = append(outFailed, failureOut{Name: f.Name, Reason: f.Reason()})
	}
	writeJSON(w, struct {
		Rows    []aggregate.Row             `json:"rows"`
		Latest  map[string]aggregate.Latest `json:"latest"`
		Failed  []failureOut                `json:"failed"`
		Feature string                      `json:"feature"`
	}{table.Rows, latest, outFailed, feature})
}

func (a *app) handleIntraday(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "missing name query param", http.StatusBadRequest)
		return
	}
	ctx, cancel := a.requestCtx(r)
	defer cancel()

	var (
		series records.IntradaySeries
		err    error
	)
	switch name {
	case refdata.MASI:
		series, err = a.m24.MarketIntraday(ctx)
	case refdata.MSI20:
		series, err = a.m24.IndexIntraday(ctx, "msi20")
	default:
		var isin string
		isin, err = refdata.Load().ResolveCode(name)
		if err == nil {
			series, err = a.m24.StockIntraday(ctx, isin)
		}
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, series)
}

func (a *app) handleCours(w http.ResponseWriter, r *http.Request) {
	a.companyPanel(w, r, func(ctx context.Context, ticker string) (any, error) {
		return a.bw.Cours(ctx, ticker)
	})
}

func (a *app) handleIndicators(w http.ResponseWriter, r *http.Request) {
	a.companyPanel(w, r, func(ctx context.Context, ticker string) (any, error) {
		return a.bw.KeyIndicators(ctx, ticker)
	})
}

func (a *app) handleDividends(w http.ResponseWriter, r *http.Request) {
	a.companyPanel(w, r, func(ctx context.Context, ticker string) (any, error) {
		return a.bw.Dividends(ctx, ticker)
	})
}

func (a *app) companyPanel(w http.ResponseWriter, r *http.Request, load func(context.Context, string) (any, error)) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		http.Error(w, "missing name query param", http.StatusBadRequest)
		return
	}
	ticker, err := refdata.Load().ResolveTicker(name)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx, cancel := a.requestCtx(r)
	defer cancel()
	out, err := load(ctx, ticker)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, out)
}

func (a *app) handlePonderation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.requestCtx(r)
	defer cancel()
	rows, err := a.bw.Ponderation(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rows)
}

// handleSummary prefers the exchange's own recap page and falls back to
// the API-derived snapshot when the page is unreachable or empty.
func (a *app) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.requestCtx(r)
	defer cancel()
	if sums, err := a.bw.IndexSummaries(ctx); err == nil && len(sums) > 0 {
		writeJSON(w, sums)
		return
	} else if err != nil {
		a.logger.Debug().Err(err).Msg("recap page unavailable, using API summaries")
	}
	writeJSON(w, a.m24.Summaries(ctx))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses: unknown names
// are the client's fault, upstream fetch or parse trouble is a gateway
// problem.
func writeError(w http.ResponseWriter, err error) {
	var resErr *refdata.ResolutionError
	var fetchErr *fetch.FetchError
	var parseErr *records.ParseError
	switch {
	case errors.As(err, &resErr):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &fetchErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	case errors.As(err, &parseErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
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

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	gzPool := sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
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
