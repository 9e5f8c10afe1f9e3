// Package medias24 speaks to the medias24 content API, the JSON upstream
// for price history, index history and intraday snapshots.
package medias24

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/fetch"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/payload"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/records"
)

const (
	// DefaultBaseURL is the content API endpoint.
	DefaultBaseURL = "https://medias24.com/content/api"
	// DefaultFrom starts full-history requests at the earliest date the
	// API serves.
	DefaultFrom = "2011-09-18"
	// defaultPeriode is the range tag for index history endpoints.
	defaultPeriode = "10y"

	dateLayout = "2006-01-02"
)

// Fetcher retrieves a raw body for a target; the strategy chain satisfies
// it, tests substitute their own.
//
//go:generate mockgen -package=medias24_test -destination=mock_fetcher_test.go -source=medias24.go Fetcher
type Fetcher interface {
	Fetch(ctx context.Context, target fetch.Target) ([]byte, error)
}

// Config controls the client.
type Config struct {
	BaseURL string
}

// Client is the medias24 API client.
type Client struct {
	cfg     Config
	fetcher Fetcher
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimiter installs a limiter gating every upstream call. Batch
// loaders share one limiter across securities.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithClock overrides the default-range clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client over the given fetcher.
func New(cfg Config, fetcher Fetcher, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	c := &Client{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logx.Silent(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) apiURL(params url.Values) string {
	return c.cfg.BaseURL + "?" + params.Encode()
}

// fetchJSON retrieves a target and recovers its JSON payload. A body that
// classifies as HTML may still hold the API response embedded by a
// rendering fallback; a document with no extractable JSON is a
// ParseError.
func (c *Client) fetchJSON(ctx context.Context, container string, params url.Values) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	target := fetch.Target{URL: c.apiURL(params)}
	body, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	raw := payload.Classify(body)
	switch raw.Kind {
	case payload.KindJSON:
		return raw.JSON, nil
	default:
		if embedded, ok := payload.EmbeddedJSON(raw.Doc); ok {
			c.logger.Debug().Str("container", container).Msg("recovered JSON embedded in rendered page")
			return embedded, nil
		}
		return nil, &records.ParseError{Container: container, Reason: "response is HTML with no extractable JSON"}
	}
}

// PriceHistory loads the price history of one security by ISIN. Zero
// bounds default to the full served range.
func (c *Client) PriceHistory(ctx context.Context, isin string, from, to time.Time) (records.PriceSeries, error) {
	if from.IsZero() {
		from, _ = time.ParseInLocation(dateLayout, DefaultFrom, time.UTC)
	}
	if to.IsZero() {
		to = c.now().UTC()
	}
	params := url.Values{}
	params.Set("method", "getPriceHistory")
	params.Set("ISIN", isin)
	params.Set("format", "json")
	params.Set("from", from.Format(dateLayout))
	params.Set("to", to.Format(dateLayout))
	raw, err := c.fetchJSON(ctx, "price history", params)
	if err != nil {
		return nil, err
	}
	return records.PriceHistoryFromJSON(raw)
}

// MasiHistory loads the MASI composite history.
func (c *Client) MasiHistory(ctx context.Context) (records.IndexSeries, error) {
	params := url.Values{}
	params.Set("method", "getMasiHistory")
	params.Set("periode", defaultPeriode)
	params.Set("format", "json")
	raw, err := c.fetchJSON(ctx, "index history", params)
	if err != nil {
		return nil, err
	}
	return records.IndexHistoryFromJSON(raw)
}

// IndexHistory loads a named index history (msi20 and friends).
func (c *Client) IndexHistory(ctx context.Context, isin string) (records.IndexSeries, error) {
	params := url.Values{}
	params.Set("method", "getIndexHistory")
	params.Set("ISIN", isin)
	params.Set("periode", defaultPeriode)
	params.Set("format", "json")
	raw, err := c.fetchJSON(ctx, "index history", params)
	if err != nil {
		return nil, err
	}
	return records.IndexHistoryFromJSON(raw)
}

// StockIntraday loads the intraday snapshot of one security by ISIN.
func (c *Client) StockIntraday(ctx context.Context, isin string) (records.IntradaySeries, error) {
	params := url.Values{}
	params.Set("method", "getStockIntraday")
	params.Set("ISIN", isin)
	params.Set("format", "json")
	raw, err := c.fetchJSON(ctx, "intraday", params)
	if err != nil {
		return nil, err
	}
	return records.IntradayFromJSON(raw)
}

// MarketIntraday loads the MASI intraday snapshot.
func (c *Client) MarketIntraday(ctx context.Context) (records.IntradaySeries, error) {
	params := url.Values{}
	params.Set("method", "getMarketIntraday")
	params.Set("format", "json")
	raw, err := c.fetchJSON(ctx, "intraday", params)
	if err != nil {
		return nil, err
	}
	return records.IntradayFromJSON(raw)
}

// IndexIntraday loads a named index intraday snapshot.
func (c *Client) IndexIntraday(ctx context.Context, isin string) (records.IntradaySeries, error) {
	params := url.Values{}
	params.Set("method", "getIndexIntraday")
	params.Set("ISIN", isin)
	params.Set("format", "json")
	raw, err := c.fetchJSON(ctx, "intraday", params)
	if err != nil {
		return nil, err
	}
	return records.IntradayFromJSON(raw)
}

// Summaries builds the current MASI/MSI20 snapshot map from the two
// history endpoints, computing change against the previous point. A
// per-index failure is logged and omitted; callers distinguish "no data"
// by an empty map.
func (c *Client) Summaries(ctx context.Context) map[string]records.IndexSummary {
	out := make(map[string]records.IndexSummary, 2)
	now := c.now().UTC()

	if masi, err := c.MasiHistory(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("MASI summary unavailable")
	} else if len(masi) > 0 {
		latest, pct, pts := records.ChangeFromValues(masi.Values())
		out["MASI"] = records.IndexSummary{
			Value:         latest,
			ChangePercent: pct,
			ChangePoints:  pts,
			Source:        "medias24_masi_api",
			Timestamp:     now,
		}
	}

	if msi20, err := c.IndexHistory(ctx, "msi20"); err != nil {
		c.logger.Warn().Err(err).Msg("MSI20 summary unavailable")
	} else if len(msi20) > 0 {
		latest, pct, pts := records.ChangeFromValues(msi20.Values())
		out["MSI20"] = records.IndexSummary{
			Value:         latest,
			ChangePercent: pct,
			ChangePoints:  pts,
			Source:        "medias24_msi20_api",
			Timestamp:     now,
		}
	}

	return out
}
