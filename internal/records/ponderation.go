package records

import "github.com/PuerkitoBio/goquery"

var ponderationSchema = Schema{Stride: 3, Fields: []string{"instrument", "sector", "weight"}}

// PonderationFromDoc extracts the index weighting table: one stride-3
// record per instrument, weight expressed as a percentage of index
// capitalization.
func PonderationFromDoc(doc *goquery.Document) ([]PonderationRow, error) {
	leaves, ok := leavesOf(doc, ponderationTableID)
	if !ok {
		return nil, &ParseError{Container: "ponderation", Reason: "container " + ponderationTableID + " missing"}
	}
	rows, err := ponderationSchema.ChunkZip("ponderation", leaves)
	if err != nil {
		return nil, err
	}
	out := make([]PonderationRow, 0, len(rows))
	for _, r := range rows {
		if r["instrument"] == "" {
			continue
		}
		out = append(out, PonderationRow{
			Instrument: r["instrument"],
			Sector:     r["sector"],
			Weight:     numberOrZero(r["weight"]),
		})
	}
	return out, nil
}
