package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// canonical column names and their upstream synonyms. The intraday
// endpoints rename their metric arrays between securities and indices;
// everything is folded onto the canonical set before typing.
var columnSynonyms = map[string]string{
	"price":            "value",
	"last":             "value",
	"close":            "value",
	"value":            "value",
	"variationpercent": "variation",
	"changepercent":    "variation",
	"change":           "variation",
	"variation":        "variation",
	"vol":              "volume",
	"volumechange":     "volume",
	"volume":           "volume",
	"timestamp":        "time",
	"datetime":         "time",
	"time":             "time",
}

func normalizeKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(k)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IntradayFromJSON converts the intraday payload (a result whose first
// element holds a labels array plus parallel metric arrays) into an
// IntradaySeries keyed by label, in source order. Metric columns are
// renamed via the synonym table; if none maps to value, the first
// remaining column is assigned positionally as a best-effort default.
func IntradayFromJSON(raw json.RawMessage) (IntradaySeries, error) {
	const container = "intraday"
	result, err := unwrapResult(container, raw)
	if err != nil {
		return nil, err
	}
	var frames []json.RawMessage
	if err := json.Unmarshal(result, &frames); err != nil {
		return nil, &ParseError{Container: container, Reason: fmt.Sprintf("result is not a list: %v", err)}
	}
	if len(frames) == 0 {
		return nil, &ParseError{Container: container, Reason: "empty result"}
	}
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(frames[0], &frame); err != nil {
		return nil, &ParseError{Container: container, Reason: fmt.Sprintf("first element is not an object: %v", err)}
	}

	labelsRaw, ok := frame["labels"]
	if !ok {
		return nil, &ParseError{Container: container, Reason: "missing labels array"}
	}
	var labels []string
	if err := json.Unmarshal(labelsRaw, &labels); err != nil {
		// numeric tick labels appear on index endpoints
		var nums []float64
		if err := json.Unmarshal(labelsRaw, &nums); err != nil {
			return nil, &ParseError{Container: container, Reason: "labels is not an array"}
		}
		labels = make([]string, len(nums))
		for i, n := range nums {
			labels[i] = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", n), "0"), ".")
		}
	}

	// columns in source key order, labels excluded
	columns := map[string][]any{}
	var order []string
	for _, key := range objectKeys(frames[0]) {
		if key == "labels" {
			continue
		}
		var vals []any
		if err := json.Unmarshal(frame[key], &vals); err != nil {
			continue // scalar metadata fields ride along, skip them
		}
		columns[key] = vals
		order = append(order, key)
	}

	assigned := map[string]string{} // canonical -> source key
	for _, key := range order {
		canon, ok := columnSynonyms[normalizeKey(key)]
		if !ok {
			continue
		}
		if _, taken := assigned[canon]; !taken {
			assigned[canon] = key
		}
	}
	if _, ok := assigned["value"]; !ok {
		// positional fallback: first column not claimed by a synonym
		for _, key := range order {
			claimed := false
			for _, src := range assigned {
				if src == key {
					claimed = true
					break
				}
			}
			if !claimed {
				assigned["value"] = key
				break
			}
		}
	}

	pick := func(canon string, i int) float64 {
		key, ok := assigned[canon]
		if !ok {
			return 0
		}
		vals := columns[key]
		if i >= len(vals) {
			return 0
		}
		return anyNumber(vals[i])
	}
	pickText := func(canon string, i int) string {
		key, ok := assigned[canon]
		if !ok {
			return ""
		}
		vals := columns[key]
		if i >= len(vals) {
			return ""
		}
		if s, ok := vals[i].(string); ok {
			return Clean(s)
		}
		return ""
	}

	out := make(IntradaySeries, 0, len(labels))
	for i, label := range labels {
		out = append(out, IntradayRecord{
			Label:     Clean(label),
			Value:     pick("value", i),
			Variation: pick("variation", i),
			Volume:    pick("volume", i),
			Time:      pickText("time", i),
		})
	}
	return out, nil
}

// objectKeys returns the keys of a JSON object in source order. The
// positional fallback above depends on it; map iteration would not do.
func objectKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		// skip the value
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}
