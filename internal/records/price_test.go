package records

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPriceHistoryFromJSON(t *testing.T) {
	raw := json.RawMessage(`{"result":[
		["2023-01-02", 101.5, 100.0, 103.0, 0.75, 12000],
		["2023-01-03", "102,5", 101, 104, "1,2%", "15 000"]
	]}`)
	series, err := PriceHistoryFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("want 2 rows, got %d", len(series))
	}
	first := series[0]
	wantDate := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(wantDate) || first.Value != 101.5 || first.Min != 100 || first.Max != 103 || first.Variation != 0.75 || first.Volume != 12000 {
		t.Fatalf("unexpected first row: %+v", first)
	}
	// cleaned string fields
	second := series[1]
	if second.Value != 102.5 || second.Variation != 1.2 || second.Volume != 15000 {
		t.Fatalf("unexpected second row: %+v", second)
	}
}

func TestPriceHistoryFromJSON_RowArity(t *testing.T) {
	raw := json.RawMessage(`{"result":[["2023-01-02", 101.5, 100.0]]}`)
	_, err := PriceHistoryFromJSON(raw)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
}

func TestPriceHistoryFromJSON_DuplicateDate(t *testing.T) {
	raw := json.RawMessage(`{"result":[
		["2023-01-02", 1, 1, 1, 0, 0],
		["2023-01-02", 2, 2, 2, 0, 0]
	]}`)
	_, err := PriceHistoryFromJSON(raw)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError on duplicate date, got %v", err)
	}
}

func TestPriceHistoryFromJSON_BadDate(t *testing.T) {
	raw := json.RawMessage(`{"result":[["02/01/2023", 1, 1, 1, 0, 0]]}`)
	if _, err := PriceHistoryFromJSON(raw); err == nil {
		t.Fatal("want error on unparseable date")
	}
}

func TestPriceHistoryFromJSON_MissingResult(t *testing.T) {
	if _, err := PriceHistoryFromJSON(json.RawMessage(`{"status":"ok"}`)); err == nil {
		t.Fatal("want error on missing result")
	}
}

func TestIndexHistoryFromJSON_EpochPairs(t *testing.T) {
	d1 := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	raw := json.RawMessage(`{"result":[
		[` + jsonInt(d1.Unix()) + `, 12000.5],
		[` + jsonInt(d2.Unix()) + `, 12100.25]
	]}`)
	series, err := IndexHistoryFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("want 2 rows, got %d", len(series))
	}
	if !series[0].Date.Equal(d1) || series[0].Value != 12000.5 {
		t.Fatalf("unexpected first row: %+v", series[0])
	}
	if !series[1].Date.After(series[0].Date) {
		t.Fatalf("dates not increasing: %v then %v", series[0].Date, series[1].Date)
	}
}

func TestIndexHistoryFromJSON_ObjectRows(t *testing.T) {
	d := time.Date(2023, 3, 15, 9, 30, 0, 0, time.UTC)
	raw := json.RawMessage(`{"result":[{"Date":` + jsonInt(d.Unix()) + `,"Value":13000}]}`)
	series, err := IndexHistoryFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 || series[0].Value != 13000 {
		t.Fatalf("unexpected series: %+v", series)
	}
	// epoch collapses onto the calendar date
	if !series[0].Date.Equal(time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date not truncated: %v", series[0].Date)
	}
}

func TestIndexHistoryFromJSON_ParallelArrays(t *testing.T) {
	d := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	raw := json.RawMessage(`{"result":{"Date":[` + jsonInt(d.Unix()) + `],"prices":[12345.6]}}`)
	series, err := IndexHistoryFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 || series[0].Value != 12345.6 || !series[0].Date.Equal(d) {
		t.Fatalf("unexpected series: %+v", series)
	}
}

func TestIndexHistoryFromJSON_UndatedPrices(t *testing.T) {
	raw := json.RawMessage(`{"result":{"prices":[100,110,105]}}`)
	series, err := IndexHistoryFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("unexpected series: %+v", series)
	}
	for i := 1; i < len(series); i++ {
		if !series[i].Date.After(series[i-1].Date) {
			t.Fatalf("synthetic dates must increase: %+v", series)
		}
	}
	// open-bounded slicing keeps every synthetic row
	if got := series.Slice(time.Time{}, time.Time{}); len(got) != 3 {
		t.Fatalf("sliced away synthetic rows: %+v", got)
	}
	if latest, ok := series.Canonical().Latest(); !ok || latest.Value != 105 {
		t.Fatalf("latest = %+v ok=%v", latest, ok)
	}
}

func TestIndexHistoryFromJSON_UnrecognizedShape(t *testing.T) {
	if _, err := IndexHistoryFromJSON(json.RawMessage(`{"result":"nope"}`)); err == nil {
		t.Fatal("want error on scalar result")
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
