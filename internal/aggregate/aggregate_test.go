package aggregate

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/fetch"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/logx"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/records"
	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/refdata"
)

func day(d int) time.Time {
	return time.Date(2023, time.March, d, 0, 0, 0, 0, time.UTC)
}

// fakeLoader serves canned series per name and records call concurrency.
type fakeLoader struct {
	mu      sync.Mutex
	series  map[string]records.PriceSeries
	errs    map[string]error
	active  int
	maxSeen int
}

func (f *fakeLoader) Name() string { return "fake" }

func (f *fakeLoader) Load(_ context.Context, name string, _, _ time.Time) (records.PriceSeries, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()

	time.Sleep(time.Millisecond)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	return f.series[name], nil
}

func TestLoadMany_PartialFailure(t *testing.T) {
	fake := &fakeLoader{
		series: map[string]records.PriceSeries{
			"Itissalat Al-Maghrib": {
				{Date: day(1), Value: 100, Volume: 500},
				{Date: day(2), Value: 101, Volume: 600},
			},
			"Attijariwafa Bank": {
				{Date: day(1), Value: 400, Volume: 900},
			},
		},
		errs: map[string]error{
			"Label Vie": &fetch.FetchError{Target: "history", Err: errors.New("all strategies failed")},
		},
	}
	b := New(fake)

	names := []string{"Itissalat Al-Maghrib", "Label Vie", "Attijariwafa Bank"}
	table, latest, failed := b.LoadMany(context.Background(), names, time.Time{}, time.Time{}, "Value")

	if len(failed) != 1 || failed[0].Name != "Label Vie" {
		t.Fatalf("failed = %+v", failed)
	}
	var fe *fetch.FetchError
	if !errors.As(failed[0].Err, &fe) {
		t.Fatalf("failure should keep the cause: %v", failed[0].Err)
	}
	if len(table.Rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(table.Rows))
	}
	// input order survives the concurrent load
	if table.Rows[0].Ticker != "IAM" || table.Rows[2].Ticker != "ATW" {
		t.Fatalf("row order wrong: %+v", table.Rows)
	}
	if latest["IAM"].Value != 101 || !latest["IAM"].Date.Equal(day(2)) {
		t.Fatalf("latest[IAM] = %+v", latest["IAM"])
	}
	if latest["ATW"].Value != 400 {
		t.Fatalf("latest[ATW] = %+v", latest["ATW"])
	}
}

func TestLoadMany_UnknownName(t *testing.T) {
	b := New(&fakeLoader{})

	table, _, failed := b.LoadMany(context.Background(), []string{"No Such Company"}, time.Time{}, time.Time{}, "Value")
	if len(table.Rows) != 0 {
		t.Fatalf("unexpected rows: %+v", table.Rows)
	}
	if len(failed) != 1 {
		t.Fatalf("failed = %+v", failed)
	}
	var re *refdata.ResolutionError
	if !errors.As(failed[0].Err, &re) {
		t.Fatalf("want ResolutionError, got %v", failed[0].Err)
	}
	if failed[0].Reason() == "" {
		t.Fatal("reason text missing")
	}
}

func TestLoadMany_CompositeKeepsName(t *testing.T) {
	fake := &fakeLoader{series: map[string]records.PriceSeries{
		refdata.MASI: {{Date: day(1), Value: 12000, Min: 12000, Max: 12000}},
	}}
	b := New(fake)

	table, latest, failed := b.LoadMany(context.Background(), []string{refdata.MASI}, time.Time{}, time.Time{}, "Value")
	if len(failed) != 0 {
		t.Fatalf("failed = %+v", failed)
	}
	if table.Rows[0].Ticker != refdata.MASI {
		t.Fatalf("composite ticker = %q", table.Rows[0].Ticker)
	}
	if latest[refdata.MASI].Value != 12000 {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestLoadMany_FeatureProjection(t *testing.T) {
	fake := &fakeLoader{series: map[string]records.PriceSeries{
		"Itissalat Al-Maghrib": {{Date: day(1), Value: 100, Volume: 7500}},
	}}
	b := New(fake)

	table, _, failed := b.LoadMany(context.Background(), []string{"Itissalat Al-Maghrib"}, time.Time{}, time.Time{}, "volume")
	if len(failed) != 0 {
		t.Fatalf("failed = %+v", failed)
	}
	if table.Rows[0].Value != 7500 {
		t.Fatalf("projected value = %v", table.Rows[0].Value)
	}
}

func TestLoadMany_UnknownFeature(t *testing.T) {
	fake := &fakeLoader{series: map[string]records.PriceSeries{
		"Itissalat Al-Maghrib": {{Date: day(1), Value: 100}},
	}}
	b := New(fake)

	table, _, failed := b.LoadMany(context.Background(), []string{"Itissalat Al-Maghrib"}, time.Time{}, time.Time{}, "turnover")
	if len(table.Rows) != 0 {
		t.Fatalf("rows should be dropped: %+v", table.Rows)
	}
	if len(failed) != 1 {
		t.Fatalf("failed = %+v", failed)
	}
	var pe *records.ParseError
	if !errors.As(failed[0].Err, &pe) {
		t.Fatalf("want ParseError, got %v", failed[0].Err)
	}
}

func TestLoadMany_EmptySeriesIsReported(t *testing.T) {
	fake := &fakeLoader{series: map[string]records.PriceSeries{
		"Itissalat Al-Maghrib": {{Date: day(1), Value: 100}},
		"Attijariwafa Bank":    {},
	}}
	b := New(fake)

	names := []string{"Itissalat Al-Maghrib", "Attijariwafa Bank"}
	table, latest, failed := b.LoadMany(context.Background(), names, time.Time{}, time.Time{}, "Value")
	if len(table.Rows) != 1 {
		t.Fatalf("rows: %+v", table.Rows)
	}
	if len(failed) != 1 || failed[0].Name != "Attijariwafa Bank" {
		t.Fatalf("a security with no data must join the failure list: %+v", failed)
	}
	var pe *records.ParseError
	if !errors.As(failed[0].Err, &pe) {
		t.Fatalf("want ParseError, got %v", failed[0].Err)
	}
	if _, ok := latest["ATW"]; ok {
		t.Fatalf("latest must not carry the empty security: %+v", latest)
	}
}

func TestLoadMany_LogsExcludedSecurity(t *testing.T) {
	var buf bytes.Buffer
	fake := &fakeLoader{errs: map[string]error{
		"Label Vie": errors.New("upstream down"),
	}}
	b := New(fake, WithLogger(logx.NewWithOutput("warn", &buf)))

	_, _, failed := b.LoadMany(context.Background(), []string{"Label Vie"}, time.Time{}, time.Time{}, "Value")
	if len(failed) != 1 {
		t.Fatalf("failed = %+v", failed)
	}
	out := buf.String()
	if !strings.Contains(out, "security excluded from batch") || !strings.Contains(out, "Label Vie") {
		t.Fatalf("exclusion not logged: %s", out)
	}
}

func TestLoadMany_Empty(t *testing.T) {
	b := New(&fakeLoader{})
	table, latest, failed := b.LoadMany(context.Background(), nil, time.Time{}, time.Time{}, "Value")
	if len(table.Rows) != 0 || len(latest) != 0 || len(failed) != 0 {
		t.Fatalf("empty batch leaked results: %+v %+v %+v", table, latest, failed)
	}
}

func TestLoadMany_ConcurrencyBound(t *testing.T) {
	series := map[string]records.PriceSeries{}
	var names []string
	for _, n := range []string{"Itissalat Al-Maghrib", "Attijariwafa Bank", "Label Vie", "Wafa Assurance", "Ciments du Maroc", "Cosumar"} {
		series[n] = records.PriceSeries{{Date: day(1), Value: 1}}
		names = append(names, n)
	}
	fake := &fakeLoader{series: series}
	b := New(fake)
	b.Concurrency = 2

	_, _, failed := b.LoadMany(context.Background(), names, time.Time{}, time.Time{}, "Value")
	if len(failed) != 0 {
		t.Fatalf("failed = %+v", failed)
	}
	if fake.maxSeen > 2 {
		t.Fatalf("saw %d concurrent loads, limit is 2", fake.maxSeen)
	}
}
