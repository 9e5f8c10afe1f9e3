package records

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestIntradayFromJSON_SynonymColumns(t *testing.T) {
	raw := json.RawMessage(`{"result":[{
		"labels": ["09:30", "09:35"],
		"last": [101.5, 101.8],
		"changePercent": [0.2, 0.5],
		"vol": [1000, 2400],
		"timestamp": ["2023-01-02 09:30", "2023-01-02 09:35"]
	}]}`)
	series, err := IntradayFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("want 2 ticks, got %d", len(series))
	}
	first := series[0]
	if first.Label != "09:30" || first.Value != 101.5 || first.Variation != 0.2 || first.Volume != 1000 || first.Time != "2023-01-02 09:30" {
		t.Fatalf("unexpected first tick: %+v", first)
	}
}

func TestIntradayFromJSON_PositionalFallback(t *testing.T) {
	// no column maps to value; the first unclaimed column carries it
	raw := json.RawMessage(`{"result":[{
		"labels": ["09:30"],
		"cours_index": [12345.6],
		"volume": [10]
	}]}`)
	series, err := IntradayFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series[0].Value != 12345.6 || series[0].Volume != 10 {
		t.Fatalf("fallback assignment wrong: %+v", series[0])
	}
}

func TestIntradayFromJSON_NumericLabels(t *testing.T) {
	raw := json.RawMessage(`{"result":[{
		"labels": [930, 935.5],
		"price": [1, 2]
	}]}`)
	series, err := IntradayFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series[0].Label != "930" || series[1].Label != "935.5" {
		t.Fatalf("numeric labels mangled: %q, %q", series[0].Label, series[1].Label)
	}
}

func TestIntradayFromJSON_MissingLabels(t *testing.T) {
	raw := json.RawMessage(`{"result":[{"price":[1,2]}]}`)
	_, err := IntradayFromJSON(raw)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
}

func TestIntradayFromJSON_EmptyResult(t *testing.T) {
	if _, err := IntradayFromJSON(json.RawMessage(`{"result":[]}`)); err == nil {
		t.Fatal("want error on empty result")
	}
}

func TestIntradayFromJSON_ScalarMetadataIgnored(t *testing.T) {
	raw := json.RawMessage(`{"result":[{
		"labels": ["09:30"],
		"session": "open",
		"value": [42]
	}]}`)
	series, err := IntradayFromJSON(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series[0].Value != 42 {
		t.Fatalf("scalar field disturbed column mapping: %+v", series[0])
	}
}
