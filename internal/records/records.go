// Package records holds the canonical record types produced by the
// normalizer family, plus the shared cleaning and stride-decoding rules
// used to type loosely-encoded upstream payloads.
//
// Shared policy: an absent or malformed optional field becomes its zero
// value, never an error; a missing expected container is a ParseError for
// the whole call.
package records

import (
	"fmt"
	"strings"
	"time"
)

// ParseError reports a payload that classified and shape-matched but whose
// contents violate the expected field count or type.
type ParseError struct {
	Container string
	Reason    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Container, e.Reason)
}

// PriceRecord is one session of a per-security price history, keyed by
// calendar date.
type PriceRecord struct {
	Date      time.Time `json:"date"`
	Value     float64   `json:"value"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Variation float64   `json:"variation"`
	Volume    float64   `json:"volume"`
}

// Feature returns the named column of the record. Matching is
// case-insensitive; false means the feature name is unknown.
func (r PriceRecord) Feature(name string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "value":
		return r.Value, true
	case "min":
		return r.Min, true
	case "max":
		return r.Max, true
	case "variation":
		return r.Variation, true
	case "volume":
		return r.Volume, true
	}
	return 0, false
}

// PriceSeries is a date-keyed price history in source order. Date
// uniqueness is enforced at construction; see PriceHistoryFromJSON.
type PriceSeries []PriceRecord

// Slice filters the series to [start, end] inclusive by calendar date.
// A range with no overlap yields an empty series, not an error. Zero
// bounds are open on that side.
func (s PriceSeries) Slice(start, end time.Time) PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, r := range s {
		d := dateOnly(r.Date)
		if !start.IsZero() && d.Before(dateOnly(start)) {
			continue
		}
		if !end.IsZero() && d.After(dateOnly(end)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Latest returns the record with the maximum date. False on an empty
// series.
func (s PriceSeries) Latest() (PriceRecord, bool) {
	if len(s) == 0 {
		return PriceRecord{}, false
	}
	best := s[0]
	for _, r := range s[1:] {
		if r.Date.After(best.Date) {
			best = r
		}
	}
	return best, true
}

// IndexRecord is one point of a composite-index history. The upstream
// keys these by epoch timestamps rather than date strings.
type IndexRecord struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// IndexSeries is an index history in source order.
type IndexSeries []IndexRecord

// Slice filters the series to [start, end] inclusive by calendar date.
func (s IndexSeries) Slice(start, end time.Time) IndexSeries {
	out := make(IndexSeries, 0, len(s))
	for _, r := range s {
		d := dateOnly(r.Date)
		if !start.IsZero() && d.Before(dateOnly(start)) {
			continue
		}
		if !end.IsZero() && d.After(dateOnly(end)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Canonical widens a single-column index series into the canonical price
// frame: min and max default to the value, variation and volume to zero.
func (s IndexSeries) Canonical() PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, r := range s {
		out = append(out, PriceRecord{
			Date:  r.Date,
			Value: r.Value,
			Min:   r.Value,
			Max:   r.Value,
		})
	}
	return out
}

// Values returns the value column in source order.
func (s IndexSeries) Values() []float64 {
	out := make([]float64, 0, len(s))
	for _, r := range s {
		out = append(out, r.Value)
	}
	return out
}

// IntradayRecord is one tick of an intraday snapshot, keyed by its
// time-of-day label. Order follows the source (chronological).
type IntradayRecord struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	Variation float64 `json:"variation"`
	Volume    float64 `json:"volume"`
	Time      string  `json:"time,omitempty"`
}

// IntradaySeries is an intraday snapshot in source order.
type IntradaySeries []IntradayRecord

// BestLimitRow is one depth level of the order book panel.
type BestLimitRow struct {
	BidQuantity float64 `json:"bid_quantity"`
	BidPrice    float64 `json:"bid_price"`
	AskPrice    float64 `json:"ask_price"`
	AskQuantity float64 `json:"ask_quantity"`
}

// TransactionRow is one entry of the recent-transactions panel.
type TransactionRow struct {
	Time     string  `json:"time"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// PriorSessionRow is one entry of the prior-sessions panel.
type PriorSessionRow struct {
	Date      string  `json:"date"`
	Close     float64 `json:"close"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Variation float64 `json:"variation"`
	Volume    float64 `json:"volume"`
}

// CompanySnapshot groups the per-security postback panels.
type CompanySnapshot struct {
	Session       map[string]string `json:"session"`
	BestLimits    []BestLimitRow    `json:"best_limits"`
	Transactions  []TransactionRow  `json:"transactions"`
	PriorSessions []PriorSessionRow `json:"prior_sessions"`
}

// YearlyTable is a metric table whose columns are year labels. The column
// list can grow during parsing; see ParseYearly.
type YearlyTable struct {
	Columns []string             `json:"columns"`
	Values  map[string][]float64 `json:"values"`
}

// KeyIndicatorsSheet is the company fact sheet.
type KeyIndicatorsSheet struct {
	InfoSociete  map[string]string `json:"Info_Societe"`
	Actionnaires map[string]string `json:"Actionnaires"`
	ChiffresCles YearlyTable       `json:"Chiffres_cles"`
	Ratio        YearlyTable       `json:"Ratio"`
}

// DividendRecord is one distribution of the dividends panel.
type DividendRecord struct {
	Year           string  `json:"year"`
	Amount         float64 `json:"amount"`
	Type           string  `json:"type"`
	DetachmentDate string  `json:"detachment_date"`
	PaymentDate    string  `json:"payment_date"`
}

// IndexSummary is the current snapshot of one named index.
type IndexSummary struct {
	Value         float64   `json:"value"`
	ChangePercent float64   `json:"change_percent"`
	ChangePoints  float64   `json:"change_points"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// PonderationRow is one security's weighting within the index.
type PonderationRow struct {
	Instrument string  `json:"instrument"`
	Sector     string  `json:"sector"`
	Weight     float64 `json:"weight"`
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
