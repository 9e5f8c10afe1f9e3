package records

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("build document: %v", err)
	}
	return doc
}

func spanDiv(id string, leaves ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div id=%q>`, id)
	for _, leaf := range leaves {
		fmt.Fprintf(&b, "<span>%s</span>", leaf)
	}
	b.WriteString("</div>")
	return b.String()
}

// sessionLeaves builds the 11 (label, value, note) triples of the
// session panel in panel order.
func sessionLeaves() []string {
	values := []string{
		"101,50", "0,75%", "02/01/2023 15:30", "100,00", "100,75",
		"103,00", "99,80", "1 200", "121 800", "9 500 000 000", "Cote",
	}
	var leaves []string
	for i, v := range values {
		leaves = append(leaves, fmt.Sprintf("libelle%d", i), v, "")
	}
	return leaves
}

func TestCompanySnapshotFromDoc(t *testing.T) {
	html := "<html><body>" +
		spanDiv("table1", sessionLeaves()...) +
		spanDiv("table6", "10", "100,5", "101,0", "15") +
		spanDiv("table7", "15:29", "101,4", "200") +
		spanDiv("table4", "30/12/2022", "100,1", "99,9", "100,8", "99,5", "-0,4%", "80 000") +
		"</body></html>"
	snap, err := CompanySnapshotFromDoc(docFrom(t, html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := snap.Session["Dernier_cours"]; got != "101.50" {
		t.Fatalf("Dernier_cours=%q", got)
	}
	if got := snap.Session["Etat_valeur"]; got != "Cote" {
		t.Fatalf("Etat_valeur=%q", got)
	}
	if len(snap.BestLimits) != 1 {
		t.Fatalf("best limits: %+v", snap.BestLimits)
	}
	bl := snap.BestLimits[0]
	if bl.BidQuantity != 10 || bl.BidPrice != 100.5 || bl.AskPrice != 101 || bl.AskQuantity != 15 {
		t.Fatalf("best limit row: %+v", bl)
	}
	if len(snap.Transactions) != 1 || snap.Transactions[0].Price != 101.4 || snap.Transactions[0].Quantity != 200 {
		t.Fatalf("transactions: %+v", snap.Transactions)
	}
	if len(snap.PriorSessions) != 1 {
		t.Fatalf("prior sessions: %+v", snap.PriorSessions)
	}
	ps := snap.PriorSessions[0]
	if ps.Date != "30/12/2022" || ps.Volume != 80000 || ps.Variation != -0.4 {
		t.Fatalf("prior session row: %+v", ps)
	}
}

func TestCompanySnapshotFromDoc_MissingSessionFatal(t *testing.T) {
	html := "<html><body>" + spanDiv("table6", "1", "2", "3", "4") + "</body></html>"
	_, err := CompanySnapshotFromDoc(docFrom(t, html))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("want ParseError, got %v", err)
	}
}

func TestCompanySnapshotFromDoc_OptionalPanelsDegrade(t *testing.T) {
	html := "<html><body>" + spanDiv("table1", sessionLeaves()...) + "</body></html>"
	snap, err := CompanySnapshotFromDoc(docFrom(t, html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.BestLimits) != 0 || len(snap.Transactions) != 0 || len(snap.PriorSessions) != 0 {
		t.Fatalf("absent panels must come back empty: %+v", snap)
	}
}

func TestCompanySnapshotFromDoc_PartialTrailingRecord(t *testing.T) {
	// 5 leaves in a stride-4 panel
	html := "<html><body>" +
		spanDiv("table1", sessionLeaves()...) +
		spanDiv("table6", "1", "2", "3", "4", "5") +
		"</body></html>"
	if _, err := CompanySnapshotFromDoc(docFrom(t, html)); err == nil {
		t.Fatal("partial trailing record must not vanish silently")
	}
}

func TestSessionFromDoc_WrongFieldCount(t *testing.T) {
	// 10 triples instead of 11
	leaves := sessionLeaves()[:30]
	html := "<html><body>" + spanDiv("table1", leaves...) + "</body></html>"
	if _, err := CompanySnapshotFromDoc(docFrom(t, html)); err == nil {
		t.Fatal("want error on short session panel")
	}
}

func TestChunkZip_InvalidDescriptor(t *testing.T) {
	bad := Schema{Stride: 3, Fields: []string{"a", "b"}}
	if _, err := bad.ChunkZip("x", []string{"1", "2", "3"}); err == nil {
		t.Fatal("want error on stride/field mismatch")
	}
}

func TestPonderationFromDoc(t *testing.T) {
	html := "<html><body>" +
		spanDiv("ponderation",
			"IAM", "Telecom", "12,5",
			"", "spacer", "0",
			"ATW", "Banques", "18,2") +
		"</body></html>"
	rows, err := PonderationFromDoc(docFrom(t, html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// the empty-instrument filler row is dropped
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %+v", rows)
	}
	if rows[0].Instrument != "IAM" || rows[0].Weight != 12.5 {
		t.Fatalf("row 0: %+v", rows[0])
	}
	if rows[1].Sector != "Banques" || rows[1].Weight != 18.2 {
		t.Fatalf("row 1: %+v", rows[1])
	}
}

func TestPonderationFromDoc_MissingContainer(t *testing.T) {
	if _, err := PonderationFromDoc(docFrom(t, "<html><body></body></html>")); err == nil {
		t.Fatal("want error on missing container")
	}
}
