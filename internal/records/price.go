package records

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// resultEnvelope is the top-level shape of every medias24 JSON response.
type resultEnvelope struct {
	Result json.RawMessage `json:"result"`
}

func unwrapResult(container string, raw json.RawMessage) (json.RawMessage, error) {
	var env resultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ParseError{Container: container, Reason: fmt.Sprintf("not an object: %v", err)}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, &ParseError{Container: container, Reason: "missing result"}
	}
	return env.Result, nil
}

// PriceHistoryFromJSON converts the getPriceHistory payload, a result
// array of [date, value, min, max, variation, volume] row tuples, into a
// PriceSeries. Source order is preserved; a duplicate or unparseable date
// violates the series contract and is a ParseError. Numeric noise in
// optional fields degrades to zero.
func PriceHistoryFromJSON(raw json.RawMessage) (PriceSeries, error) {
	const container = "price history"
	result, err := unwrapResult(container, raw)
	if err != nil {
		return nil, err
	}
	var rows [][]any
	if err := json.Unmarshal(result, &rows); err != nil {
		return nil, &ParseError{Container: container, Reason: fmt.Sprintf("result is not a row list: %v", err)}
	}
	out := make(PriceSeries, 0, len(rows))
	seen := make(map[time.Time]struct{}, len(rows))
	for i, row := range rows {
		if len(row) != 6 {
			return nil, &ParseError{Container: container, Reason: fmt.Sprintf("row %d has %d fields, want 6", i, len(row))}
		}
		dateText, _ := row[0].(string)
		date, err := time.ParseInLocation(dateLayout, Clean(dateText), time.UTC)
		if err != nil {
			return nil, &ParseError{Container: container, Reason: fmt.Sprintf("row %d: bad date %q", i, dateText)}
		}
		if _, dup := seen[date]; dup {
			return nil, &ParseError{Container: container, Reason: fmt.Sprintf("duplicate date %s", date.Format(dateLayout))}
		}
		seen[date] = struct{}{}
		out = append(out, PriceRecord{
			Date:      date,
			Value:     anyNumber(row[1]),
			Min:       anyNumber(row[2]),
			Max:       anyNumber(row[3]),
			Variation: anyNumber(row[4]),
			Volume:    anyNumber(row[5]),
		})
	}
	return out, nil
}

// IndexHistoryFromJSON converts an index history payload into an
// IndexSeries. The endpoints vary in shape; the result may be
//   - a list of [epoch, value] pairs,
//   - a list of {Date: epoch, Value: v} objects,
//   - an object of parallel arrays {Date: [...], prices: [...]}.
// Dates are epoch seconds converted to calendar dates. No row is dropped.
func IndexHistoryFromJSON(raw json.RawMessage) (IndexSeries, error) {
	const container = "index history"
	result, err := unwrapResult(container, raw)
	if err != nil {
		return nil, err
	}

	var pairs [][]any
	if err := json.Unmarshal(result, &pairs); err == nil {
		out := make(IndexSeries, 0, len(pairs))
		for i, row := range pairs {
			if len(row) != 2 {
				return nil, &ParseError{Container: container, Reason: fmt.Sprintf("row %d has %d fields, want 2", i, len(row))}
			}
			out = append(out, IndexRecord{Date: epochDate(anyNumber(row[0])), Value: anyNumber(row[1])})
		}
		return out, nil
	}

	var objects []map[string]any
	if err := json.Unmarshal(result, &objects); err == nil {
		out := make(IndexSeries, 0, len(objects))
		for i, row := range objects {
			epoch, ok := pickField(row, "date", "timestamp", "time")
			if !ok {
				return nil, &ParseError{Container: container, Reason: fmt.Sprintf("row %d has no date field", i)}
			}
			value, ok := pickField(row, "value", "price", "cours")
			if !ok {
				// any remaining numeric field carries the value
				for k, v := range row {
					if isDateKey(k) {
						continue
					}
					value = anyNumber(v)
					ok = true
					break
				}
			}
			if !ok {
				return nil, &ParseError{Container: container, Reason: fmt.Sprintf("row %d has no value field", i)}
			}
			out = append(out, IndexRecord{Date: epochDate(epoch), Value: value})
		}
		return out, nil
	}

	var parallel map[string]json.RawMessage
	if err := json.Unmarshal(result, &parallel); err == nil {
		var dates, prices []float64
		for k, v := range parallel {
			if isDateKey(k) {
				_ = json.Unmarshal(v, &dates)
			}
		}
		for _, k := range []string{"prices", "values", "price", "value"} {
			if v, ok := parallel[k]; ok {
				_ = json.Unmarshal(v, &prices)
				break
			}
		}
		if len(prices) == 0 {
			return nil, &ParseError{Container: container, Reason: "no price array in result"}
		}
		if len(dates) != 0 && len(dates) != len(prices) {
			return nil, &ParseError{Container: container, Reason: fmt.Sprintf("%d dates for %d prices", len(dates), len(prices))}
		}
		out := make(IndexSeries, 0, len(prices))
		for i, p := range prices {
			rec := IndexRecord{Value: p}
			if len(dates) != 0 {
				rec.Date = epochDate(dates[i])
			} else {
				// undated payloads get a synthetic sequential index so
				// ordering and latest-by-date still hold; these are
				// positions, not trading dates
				rec.Date = syntheticDate(i)
			}
			out = append(out, rec)
		}
		return out, nil
	}

	return nil, &ParseError{Container: container, Reason: "unrecognized result shape"}
}

func isDateKey(k string) bool {
	switch normalizeKey(k) {
	case "date", "dates", "timestamp", "timestamps", "time", "times":
		return true
	}
	return false
}

func pickField(row map[string]any, names ...string) (float64, bool) {
	for k, v := range row {
		nk := normalizeKey(k)
		for _, name := range names {
			if nk == name {
				return anyNumber(v), true
			}
		}
	}
	return 0, false
}

// anyNumber types a decoded JSON scalar. Strings go through the shared
// cleaning rule; anything unusable is zero.
func anyNumber(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		return numberOrZero(x)
	}
	return 0
}

// epochDate converts epoch seconds to the containing calendar date.
func epochDate(epoch float64) time.Time {
	return dateOnly(time.Unix(int64(epoch), 0).UTC())
}

// syntheticDate maps row position i to a distinct calendar date, anchored
// at the Unix epoch.
func syntheticDate(i int) time.Time {
	return time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}
