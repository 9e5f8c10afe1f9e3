// Package payload classifies raw upstream bodies into an explicit
// JSON-or-HTML tagged union. The upstreams declare content types
// inconsistently, so classification looks only at the bytes: a strict JSON
// parse wins, anything else is an HTML document. Classification is total
// (any byte sequence parses as at least an empty document), so downstream
// extractors see "no data" rather than a classification failure.
package payload

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind tags the shape of a classified payload.
type Kind int

const (
	KindJSON Kind = iota
	KindHTML
)

func (k Kind) String() string {
	if k == KindJSON {
		return "json"
	}
	return "html"
}

// Raw is a classified upstream body. Exactly one of JSON or Doc is set,
// according to Kind.
type Raw struct {
	Kind Kind
	JSON json.RawMessage
	Doc  *goquery.Document
}

// Classify decides the shape of body. JSON must parse strictly; everything
// else degrades to an HTML document, possibly empty.
func Classify(body []byte) Raw {
	trimmed := bytes.TrimSpace(body)
	if json.Valid(trimmed) && len(trimmed) > 0 {
		return Raw{Kind: KindJSON, JSON: json.RawMessage(trimmed)}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		// html.Parse does not fail on content; this covers reader errors
		// only. An empty document keeps classification total.
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return Raw{Kind: KindHTML, Doc: doc}
}

var resultObjectRe = regexp.MustCompile(`(?s)\{.*"result".*\}`)

// EmbeddedJSON recovers an API response embedded in a rendered page. The
// browser strategy wraps JSON endpoints in a document shell; the payload
// ends up in a <pre> block or inlined in a <script>. Returns false when
// the document holds no parseable result object.
func EmbeddedJSON(doc *goquery.Document) (json.RawMessage, bool) {
	var found json.RawMessage
	doc.Find("pre").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if json.Valid([]byte(text)) {
			found = json.RawMessage(text)
			return false
		}
		return true
	})
	if found != nil {
		return found, true
	}
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		match := resultObjectRe.FindString(s.Text())
		if match != "" && json.Valid([]byte(match)) {
			found = json.RawMessage(match)
			return false
		}
		return true
	})
	return found, found != nil
}
