package records

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Schema describes one fixed-width leaf table: how many consecutive
// leaves form a logical record and the field name of each position.
// Every fixed HTML table is a descriptor consumed by ChunkZip instead of
// bespoke index arithmetic.
type Schema struct {
	Stride int
	Fields []string
}

// ChunkZip cuts leaves into stride-wide chunks and zips each against the
// field list. Leaf values are cleaned. A leaf count that is not a multiple
// of the stride is a ParseError for container; a partial trailing record
// must not be dropped silently.
func (s Schema) ChunkZip(container string, leaves []string) ([]map[string]string, error) {
	if s.Stride <= 0 || len(s.Fields) != s.Stride {
		return nil, &ParseError{Container: container, Reason: "invalid schema descriptor"}
	}
	if len(leaves)%s.Stride != 0 {
		return nil, &ParseError{
			Container: container,
			Reason:    fmt.Sprintf("%d leaves not a multiple of stride %d", len(leaves), s.Stride),
		}
	}
	out := make([]map[string]string, 0, len(leaves)/s.Stride)
	for i := 0; i < len(leaves); i += s.Stride {
		rec := make(map[string]string, s.Stride)
		for j, field := range s.Fields {
			rec[field] = Clean(leaves[i+j])
		}
		out = append(out, rec)
	}
	return out, nil
}

// leavesOf extracts the ordered leaf text nodes of the container with the
// given element id. ok is false when the container is absent from the
// document, which callers treat as fatal for the call.
func leavesOf(doc *goquery.Document, id string) (leaves []string, ok bool) {
	sel := doc.Find("#" + id)
	if sel.Length() == 0 {
		return nil, false
	}
	sel.Find("span").Each(func(_ int, s *goquery.Selection) {
		leaves = append(leaves, s.Text())
	})
	return leaves, true
}
