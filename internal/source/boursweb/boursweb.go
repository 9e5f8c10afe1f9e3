// Package boursweb scrapes the legacy casablanca-bourse.com bourseweb
// pages. The company pages are ASP.NET panels toggled by posting an
// __EVENTTARGET control name back to the same URL.
package boursweb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/fetch"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/payload"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/records"
)

const (
	// DefaultBaseURL is the bourseweb root.
	DefaultBaseURL = "https://www.casablanca-bourse.com/bourseweb"

	// Panel control names posted as __EVENTTARGET.
	panelSession    = "SocieteCotee1$LBIndicCle"
	panelIndicators = "SocieteCotee1$LBFicheTech"
	panelDividends  = "SocieteCotee1$LBDividende"

	// ponderationPath is the MASI weighting page, a plain GET.
	ponderationPath = "/indice-ponderation.aspx?Cat=22&IdLink=298"

	// recapPath is the market activity page carrying the index recap
	// table, a plain GET.
	recapPath = "/activite-marche.aspx?Cat=22&IdLink=300"
)

// Fetcher retrieves a raw body for a target.
type Fetcher interface {
	Fetch(ctx context.Context, target fetch.Target) ([]byte, error)
}

// Config controls the client.
type Config struct {
	BaseURL string
}

// Client is the bourseweb scraping client.
type Client struct {
	cfg     Config
	fetcher Fetcher
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimiter installs a limiter gating every upstream call.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
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
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) companyURL(ticker string) string {
	return fmt.Sprintf("%s/Societe-Cote.aspx?codeValeur=%s&cat=7", c.cfg.BaseURL, url.QueryEscape(ticker))
}

// panelTarget builds the postback request selecting one panel of a
// company page. The site rejects postbacks without a matching Referer.
func (c *Client) panelTarget(ticker, eventTarget string) fetch.Target {
	pageURL := c.companyURL(ticker)
	header := http.Header{}
	header.Set("Origin", "https://www.casablanca-bourse.com")
	header.Set("Referer", pageURL)
	return fetch.Target{
		URL:    pageURL,
		Header: header,
		Form:   url.Values{"__EVENTTARGET": {eventTarget}},
	}
}

func (c *Client) fetchDoc(ctx context.Context, target fetch.Target) (*payload.Raw, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	body, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	raw := payload.Classify(body)
	return &raw, nil
}

// Cours loads the session panel of one security: current session
// figures, best limits, latest transactions and the last sessions.
func (c *Client) Cours(ctx context.Context, ticker string) (*records.CompanySnapshot, error) {
	raw, err := c.fetchDoc(ctx, c.panelTarget(ticker, panelSession))
	if err != nil {
		return nil, err
	}
	if raw.Kind != payload.KindHTML {
		return nil, &records.ParseError{Container: "session panel", Reason: "expected an HTML page"}
	}
	snap, err := records.CompanySnapshotFromDoc(raw.Doc)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("ticker", ticker).
		Int("transactions", len(snap.Transactions)).
		Int("prior_sessions", len(snap.PriorSessions)).
		Msg("session panel parsed")
	return snap, nil
}

// KeyIndicators loads the fiche technique panel: company info,
// shareholders, key figures and ratios, plus the yearly tables.
func (c *Client) KeyIndicators(ctx context.Context, ticker string) (*records.KeyIndicatorsSheet, error) {
	raw, err := c.fetchDoc(ctx, c.panelTarget(ticker, panelIndicators))
	if err != nil {
		return nil, err
	}
	if raw.Kind != payload.KindHTML {
		return nil, &records.ParseError{Container: "key indicators", Reason: "expected an HTML page"}
	}
	return records.KeyIndicatorsFromDoc(raw.Doc)
}

// Dividends loads the dividend history panel.
func (c *Client) Dividends(ctx context.Context, ticker string) ([]records.DividendRecord, error) {
	raw, err := c.fetchDoc(ctx, c.panelTarget(ticker, panelDividends))
	if err != nil {
		return nil, err
	}
	if raw.Kind != payload.KindHTML {
		return nil, &records.ParseError{Container: "dividends", Reason: "expected an HTML page"}
	}
	return records.DividendsFromDoc(raw.Doc)
}

// IndexSummaries loads the index recap table of the market activity
// page. A recap page with no recognizable summary markup yields an empty
// map; callers treat that as "no data" and fall back to the API source.
func (c *Client) IndexSummaries(ctx context.Context) (map[string]records.IndexSummary, error) {
	raw, err := c.fetchDoc(ctx, fetch.Target{URL: c.cfg.BaseURL + recapPath})
	if err != nil {
		return nil, err
	}
	if raw.Kind != payload.KindHTML {
		return nil, &records.ParseError{Container: "index summary", Reason: "expected an HTML page"}
	}
	return records.SummariesFromDoc(raw.Doc, "bourseweb_recap")
}

// Ponderation loads the MASI weighting table.
func (c *Client) Ponderation(ctx context.Context) ([]records.PonderationRow, error) {
	raw, err := c.fetchDoc(ctx, fetch.Target{URL: c.cfg.BaseURL + ponderationPath})
	if err != nil {
		return nil, err
	}
	if raw.Kind != payload.KindHTML {
		return nil, &records.ParseError{Container: "ponderation", Reason: "expected an HTML page"}
	}
	return records.PonderationFromDoc(raw.Doc)
}
