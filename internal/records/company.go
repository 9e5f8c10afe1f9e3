package records

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Container ids of the postback panels. The detail page keeps these
// stable across securities.
const (
	sessionTableID      = "table1"
	priorSessionsID     = "table4"
	bestLimitsID        = "table6"
	transactionsID      = "table7"
	dividendsTableID    = "tableDividende"
	infoSocieteID       = "fiche1"
	actionnairesID      = "fiche2"
	chiffresClesID      = "fiche3"
	ratioID             = "fiche4"
	ponderationTableID  = "ponderation"
)

// sessionFields are the 11 labeled scalar fields of the session panel,
// one per leaf triple, in panel order.
var sessionFields = [11]string{
	"Dernier_cours",
	"Variation",
	"Date_et_heure",
	"Cours_ouverture",
	"Cours_cloture_veille",
	"Plus_haut_seance",
	"Plus_bas_seance",
	"Quantite_echangee",
	"Volume",
	"Capitalisation",
	"Etat_valeur",
}

// Each session field arrives as a (label, value, note) triple; the panel
// repeats its own labels, the fixed field list above is authoritative.
var sessionTriple = Schema{Stride: 3, Fields: []string{"label", "value", "note"}}

var bestLimitSchema = Schema{Stride: 4, Fields: []string{"bid_quantity", "bid_price", "ask_price", "ask_quantity"}}

var transactionSchema = Schema{Stride: 3, Fields: []string{"time", "price", "quantity"}}

var priorSessionSchema = Schema{
	Stride: 7,
	Fields: []string{"date", "close", "open", "high", "low", "variation", "volume"},
}

// CompanySnapshotFromDoc extracts the four postback panels of the
// per-security detail page. A missing session container is fatal; the
// other panels degrade to empty when absent.
func CompanySnapshotFromDoc(doc *goquery.Document) (*CompanySnapshot, error) {
	session, err := sessionFromDoc(doc)
	if err != nil {
		return nil, err
	}
	snap := &CompanySnapshot{Session: session}

	if leaves, ok := leavesOf(doc, bestLimitsID); ok {
		rows, err := bestLimitSchema.ChunkZip("best limits", leaves)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			snap.BestLimits = append(snap.BestLimits, BestLimitRow{
				BidQuantity: numberOrZero(r["bid_quantity"]),
				BidPrice:    numberOrZero(r["bid_price"]),
				AskPrice:    numberOrZero(r["ask_price"]),
				AskQuantity: numberOrZero(r["ask_quantity"]),
			})
		}
	}

	if leaves, ok := leavesOf(doc, transactionsID); ok {
		rows, err := transactionSchema.ChunkZip("transactions", leaves)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			snap.Transactions = append(snap.Transactions, TransactionRow{
				Time:     r["time"],
				Price:    numberOrZero(r["price"]),
				Quantity: numberOrZero(r["quantity"]),
			})
		}
	}

	if leaves, ok := leavesOf(doc, priorSessionsID); ok {
		rows, err := priorSessionSchema.ChunkZip("prior sessions", leaves)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			snap.PriorSessions = append(snap.PriorSessions, PriorSessionRow{
				Date:      r["date"],
				Close:     numberOrZero(r["close"]),
				Open:      numberOrZero(r["open"]),
				High:      numberOrZero(r["high"]),
				Low:       numberOrZero(r["low"]),
				Variation: numberOrZero(r["variation"]),
				Volume:    numberOrZero(r["volume"]),
			})
		}
	}

	return snap, nil
}

func sessionFromDoc(doc *goquery.Document) (map[string]string, error) {
	leaves, ok := leavesOf(doc, sessionTableID)
	if !ok {
		return nil, &ParseError{Container: "session", Reason: "container " + sessionTableID + " missing"}
	}
	triples, err := sessionTriple.ChunkZip("session", leaves)
	if err != nil {
		return nil, err
	}
	if len(triples) != len(sessionFields) {
		return nil, &ParseError{
			Container: "session",
			Reason:    fmt.Sprintf("%d fields, want %d", len(triples), len(sessionFields)),
		}
	}
	out := make(map[string]string, len(sessionFields))
	for i, field := range sessionFields {
		out[field] = triples[i]["value"]
	}
	return out, nil
}
