// Package refdata resolves human-facing security and index names to their
// stable identifiers. The reference table ships inside the binary and is
// loaded once; all lookups afterwards are read-only.
package refdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed notation.json
var notationFS embed.FS

// ResolutionError reports a name with no known identifier. It is never
// retried.
type ResolutionError struct {
	Name   string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("resolve %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("resolve %q: unknown security", e.Name)
}

// Entry is one row of the notation table.
type Entry struct {
	Name   string `json:"name"`
	ISIN   string `json:"ISIN"`
	Ticker string `json:"ticker"`
}

// Table is the loaded notation table.
type Table struct {
	entries  []Entry
	byTicker map[string]string
}

var (
	loadOnce sync.Once
	loaded   *Table
)

// Load returns the process-wide notation table, parsing the embedded data
// on first use.
func Load() *Table {
	loadOnce.Do(func() {
		b, err := notationFS.ReadFile("notation.json")
		if err != nil {
			panic("refdata: embedded notation table missing: " + err.Error())
		}
		var entries []Entry
		if err := json.Unmarshal(b, &entries); err != nil {
			panic("refdata: embedded notation table invalid: " + err.Error())
		}
		t := &Table{entries: entries, byTicker: make(map[string]string, len(entries))}
		for _, e := range entries {
			if e.Ticker != "" {
				t.byTicker[e.Name] = e.Ticker
			}
		}
		loaded = t
	})
	return loaded
}

// Composite names denote market indices, not individual securities; they
// are served by index-specific endpoints.
const (
	MASI  = "MASI"
	MSI20 = "MSI20"
)

// IsComposite reports whether name is a composite index.
func IsComposite(name string) bool {
	return name == MASI || name == MSI20
}

// ResolveCode maps a security name to its ISIN: a linear scan returning
// the first match.
func (t *Table) ResolveCode(name string) (string, error) {
	for _, e := range t.entries {
		if e.Name == name {
			return e.ISIN, nil
		}
	}
	return "", &ResolutionError{Name: name}
}

// ResolveTicker maps a security name to its exchange ticker. MASI is
// invalid input here: the composite index has no per-security code, and
// the failure is distinct from an unknown name.
func (t *Table) ResolveTicker(name string) (string, error) {
	if name == MASI {
		return "", &ResolutionError{Name: name, Reason: "composite index has no ticker"}
	}
	if ticker, ok := t.byTicker[name]; ok {
		return ticker, nil
	}
	return "", &ResolutionError{Name: name}
}

// Names lists the notation names in table order.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Name)
	}
	return out
}

// Entries returns a copy of the notation table.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}
