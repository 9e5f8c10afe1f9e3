package records

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var pairSchema = Schema{Stride: 2, Fields: []string{"label", "value"}}

// KeyIndicatorsFromDoc extracts the company fact sheet: company info and
// shareholder dicts plus the two yearly tables. The fact sheet container
// set must be present at least in part; an entirely bare document is
// fatal.
func KeyIndicatorsFromDoc(doc *goquery.Document) (*KeyIndicatorsSheet, error) {
	sheet := &KeyIndicatorsSheet{}
	var found bool

	if leaves, ok := leavesOf(doc, infoSocieteID); ok {
		found = true
		pairs, err := pairSchema.ChunkZip("Info_Societe", leaves)
		if err != nil {
			return nil, err
		}
		sheet.InfoSociete = pairsToDict(pairs)
	}
	if leaves, ok := leavesOf(doc, actionnairesID); ok {
		found = true
		pairs, err := pairSchema.ChunkZip("Actionnaires", leaves)
		if err != nil {
			return nil, err
		}
		sheet.Actionnaires = pairsToDict(pairs)
	}
	if leaves, ok := leavesOf(doc, chiffresClesID); ok {
		found = true
		sheet.ChiffresCles = ParseYearly(leaves)
	}
	if leaves, ok := leavesOf(doc, ratioID); ok {
		found = true
		sheet.Ratio = ParseYearly(leaves)
	}
	if !found {
		return nil, &ParseError{Container: "fact sheet", Reason: "no fact sheet containers in document"}
	}
	return sheet, nil
}

func pairsToDict(pairs []map[string]string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		if p["label"] == "" {
			continue
		}
		out[p["label"]] = p["value"]
	}
	return out
}

// yearLabel matches a year header, with an optional estimate suffix
// ("2023", "2023e").
var yearLabel = regexp.MustCompile(`^(19|20)\d{2}[A-Za-z]?$`)

// ParseYearly decodes a yearly financial table whose column set can grow
// mid-stream. The leading run of year-shaped leaves forms the header
// prefix. After data starts, a numeric leaf is data for the next column
// slot in round-robin order; a non-numeric leaf is an inserted header for
// a new logical column and is not consumed as a data value.
//
// This mirrors the upstream page's habit of appending a provisional year
// column partway through the table. The rule is heuristic and fragile to
// upstream formatting changes; it is kept as documented behavior rather
// than second-guessed.
func ParseYearly(leaves []string) YearlyTable {
	table := YearlyTable{Values: map[string][]float64{}}
	var dataStarted bool
	var dataCount int
	for _, leaf := range leaves {
		cleaned := Clean(leaf)
		if cleaned == "" {
			continue // separator leaf
		}
		if !dataStarted && yearLabel.MatchString(cleaned) {
			appendColumn(&table, cleaned)
			continue
		}
		if v, ok := parseNumber(leaf); ok && len(table.Columns) > 0 {
			dataStarted = true
			col := table.Columns[dataCount%len(table.Columns)]
			table.Values[col] = append(table.Values[col], v)
			dataCount++
			continue
		}
		// a non-numeric leaf is a column insert, but only once a year
		// header prefix exists; leading titles and row labels before any
		// year column are noise
		if _, ok := parseNumber(leaf); !ok && len(table.Columns) > 0 {
			appendColumn(&table, cleaned)
		}
	}
	return table
}

// appendColumn adds a column once; a repeated header leaf must not
// duplicate the column and skew the round-robin fill.
func appendColumn(table *YearlyTable, name string) {
	if _, exists := table.Values[name]; exists {
		return
	}
	table.Values[name] = nil
	table.Columns = append(table.Columns, name)
}
