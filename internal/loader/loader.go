// Package loader turns a security or index name into a normalized price
// series: resolve the name, call the right upstream endpoint, slice the
// result to the requested range.
package loader

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/records"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/refdata"
)

// HistorySource provides the upstream history endpoints. The medias24
// client satisfies it.
type HistorySource interface {
	PriceHistory(ctx context.Context, isin string, from, to time.Time) (records.PriceSeries, error)
	MasiHistory(ctx context.Context) (records.IndexSeries, error)
	IndexHistory(ctx context.Context, isin string) (records.IndexSeries, error)
}

// Loader loads a price series by notation name over a date range. Zero
// bounds leave that side of the range open.
type Loader interface {
	Name() string
	Load(ctx context.Context, name string, from, to time.Time) (records.PriceSeries, error)
}

// msi20ISIN is the identifier the index history endpoint expects for the
// MSI20 composite.
const msi20ISIN = "msi20"

// Service is the direct Loader over an upstream source.
type Service struct {
	src    HistorySource
	table  *refdata.Table
	logger zerolog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTable overrides the notation table, for tests.
func WithTable(table *refdata.Table) Option {
	return func(s *Service) { s.table = table }
}

// NewService creates a loader over the given source.
func NewService(src HistorySource, opts ...Option) *Service {
	s := &Service{
		src:    src,
		table:  refdata.Load(),
		logger: logx.Silent(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Name() string { return "medias24" }

// Load resolves name and loads its series. Composite names go through
// the index endpoints and come back in canonical shape with min and max
// collapsed onto the value; securities go through the price history
// endpoint keyed by ISIN. An unknown name is a ResolutionError.
func (s *Service) Load(ctx context.Context, name string, from, to time.Time) (records.PriceSeries, error) {
	if refdata.IsComposite(name) {
		idx, err := s.loadIndex(ctx, name)
		if err != nil {
			return nil, err
		}
		return idx.Slice(from, to).Canonical(), nil
	}

	isin, err := s.table.ResolveCode(name)
	if err != nil {
		return nil, err
	}
	series, err := s.src.PriceHistory(ctx, isin, from, to)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("name", name).Str("isin", isin).Int("rows", len(series)).Msg("price history loaded")
	return series.Slice(from, to), nil
}

func (s *Service) loadIndex(ctx context.Context, name string) (records.IndexSeries, error) {
	if name == refdata.MASI {
		return s.src.MasiHistory(ctx)
	}
	return s.src.IndexHistory(ctx, msi20ISIN)
}
