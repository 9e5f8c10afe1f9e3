package records

import "github.com/PuerkitoBio/goquery"

var dividendSchema = Schema{
	Stride: 5,
	Fields: []string{"year", "amount", "type", "detachment_date", "payment_date"},
}

// DividendsFromDoc extracts the dividends panel: a stride-5 leaf sequence,
// one record per distribution, in source order. A leaf count that is not a
// multiple of 5 is a ParseError; a partial trailing record must surface,
// not vanish.
func DividendsFromDoc(doc *goquery.Document) ([]DividendRecord, error) {
	leaves, ok := leavesOf(doc, dividendsTableID)
	if !ok {
		return nil, &ParseError{Container: "dividends", Reason: "container " + dividendsTableID + " missing"}
	}
	rows, err := dividendSchema.ChunkZip("dividends", leaves)
	if err != nil {
		return nil, err
	}
	out := make([]DividendRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, DividendRecord{
			Year:           r["year"],
			Amount:         numberOrZero(r["amount"]),
			Type:           r["type"],
			DetachmentDate: r["detachment_date"],
			PaymentDate:    r["payment_date"],
		})
	}
	return out, nil
}
