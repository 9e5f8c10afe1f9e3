// Package aggregate loads many securities in one batch and reconciles
// them into a single table. A failing security is reported and excluded;
// it never aborts the batch.
package aggregate

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/loader"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/records"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/refdata"
)

// DefaultConcurrency bounds the worker pool.
const DefaultConcurrency = 4

// Row is one dated observation of one security.
type Row struct {
	Stock  string    `json:"stock"`
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
}

// Table is the reconciled batch result, rows grouped by security in
// input order.
type Table struct {
	Rows []Row `json:"rows"`
}

// Latest is the most recent observation of one security.
type Latest struct {
	Stock  string    `json:"stock"`
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Value  float64   `json:"value"`
}

// Failure records why one security was excluded from the batch.
type Failure struct {
	Name string `json:"name"`
	Err  error  `json:"-"`
}

// Reason is the failure cause as text, for JSON output.
func (f Failure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// Batch loads securities concurrently through a shared Loader.
type Batch struct {
	L           loader.Loader
	Concurrency int

	table  *refdata.Table
	logger zerolog.Logger
}

// Option configures a batch.
type Option func(*Batch)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Batch) { b.logger = logger }
}

// WithTable overrides the notation table, for tests.
func WithTable(table *refdata.Table) Option {
	return func(b *Batch) { b.table = table }
}

// New creates a batch over the given loader.
func New(l loader.Loader, opts ...Option) *Batch {
	b := &Batch{
		L:           l,
		Concurrency: DefaultConcurrency,
		table:       refdata.Load(),
		logger:      logx.Silent(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// loadResult is one worker's outcome, indexed for ordering.
type loadResult struct {
	name   string
	ticker string
	series records.PriceSeries
	err    error
}

// LoadMany loads the named securities over [from, to] and projects one
// feature per row. Securities keep input order in the table. The latest
// map holds, per ticker, the observation with the maximum date. Failed
// lists the excluded securities with their causes; an empty table with an
// empty failure list means no names were given.
func (b *Batch) LoadMany(ctx context.Context, names []string, from, to time.Time, feature string) (Table, map[string]Latest, []Failure) {
	results := make([]loadResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	limit := b.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = b.loadOne(gctx, name, from, to)
			return nil
		})
	}
	// workers never return errors; failures live in results
	_ = g.Wait()

	var table Table
	latest := make(map[string]Latest)
	var failed []Failure

	for _, res := range results {
		if res.err == nil && len(res.series) == 0 {
			res.err = &records.ParseError{Container: "price history", Reason: "no data returned"}
		}
		if res.err != nil {
			b.logger.Warn().Err(res.err).Str("name", res.name).Msg("security excluded from batch")
			failed = append(failed, Failure{Name: res.name, Err: res.err})
			continue
		}
		for _, rec := range res.series {
			value, ok := rec.Feature(feature)
			if !ok {
				failed = append(failed, Failure{Name: res.name, Err: &records.ParseError{
					Container: "feature projection",
					Reason:    "unknown feature " + feature,
				}})
				break
			}
			table.Rows = append(table.Rows, Row{
				Stock:  res.name,
				Ticker: res.ticker,
				Date:   rec.Date,
				Value:  value,
			})
			if cur, ok := latest[res.ticker]; !ok || rec.Date.After(cur.Date) {
				latest[res.ticker] = Latest{
					Stock:  res.name,
					Ticker: res.ticker,
					Date:   rec.Date,
					Value:  value,
				}
			}
		}
	}

	return table, latest, failed
}

func (b *Batch) loadOne(ctx context.Context, name string, from, to time.Time) loadResult {
	res := loadResult{name: name}

	ticker := name
	if !refdata.IsComposite(name) {
		t, err := b.table.ResolveTicker(name)
		if err != nil {
			res.err = err
			return res
		}
		ticker = t
	}
	res.ticker = ticker

	series, err := b.L.Load(ctx, name, from, to)
	if err != nil {
		res.err = err
		return res
	}
	res.series = series
	return res
}
