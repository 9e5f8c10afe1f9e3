package records

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Class markers of the recap page. Title elements carry index names,
// value elements carry their metrics; pairing is positional.
const (
	summaryTitleClass = "indexTitle"
	summaryValueClass = "indexValue"
)

// SummariesFromDoc extracts the index summary table: title-class elements
// are zipped row-wise against equal-sized chunks of value-class elements
// (value, change percent, change points; extra cells are ignored). No
// titles means no data, which is an empty map rather than an error.
func SummariesFromDoc(doc *goquery.Document, source string) (map[string]IndexSummary, error) {
	var titles, values []string
	doc.Find("." + summaryTitleClass).Each(func(_ int, s *goquery.Selection) {
		titles = append(titles, Clean(s.Text()))
	})
	doc.Find("." + summaryValueClass).Each(func(_ int, s *goquery.Selection) {
		values = append(values, s.Text())
	})
	if len(titles) == 0 {
		return map[string]IndexSummary{}, nil
	}
	if len(values)%len(titles) != 0 {
		return nil, &ParseError{
			Container: "index summary",
			Reason:    fmt.Sprintf("%d value cells for %d titles", len(values), len(titles)),
		}
	}
	stride := len(values) / len(titles)
	out := make(map[string]IndexSummary, len(titles))
	for i, title := range titles {
		chunk := values[i*stride : (i+1)*stride]
		s := IndexSummary{Source: source}
		if len(chunk) > 0 {
			s.Value = numberOrZero(chunk[0])
		}
		if len(chunk) > 1 {
			s.ChangePercent = numberOrZero(chunk[1])
		}
		if len(chunk) > 2 {
			s.ChangePoints = numberOrZero(chunk[2])
		}
		out[title] = s
	}
	return out, nil
}

// ChangeFromValues computes the latest value and its change against the
// previous point of a price series. A single point reports zero change,
// using the point as both latest and previous. An empty series is all
// zeros.
func ChangeFromValues(values []float64) (latest, changePercent, changePoints float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	latest = values[len(values)-1]
	previous := latest
	if len(values) > 1 {
		previous = values[len(values)-2]
	}
	if previous != 0 {
		changePercent = (latest - previous) / previous * 100
	}
	changePoints = latest - previous
	return latest, changePercent, changePoints
}
