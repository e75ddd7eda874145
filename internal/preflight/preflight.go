// Package preflight checks a selection of documents before it is handed to
// the bookkeeping export and sorts every problem into blockers and warnings.
package preflight

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/belegflow/internal/document"
	"github.com/zombor/belegflow/internal/fieldparse"
)

// Level is the severity of an Issue.
type Level string

const (
	LevelBlocker Level = "blocker"
	LevelWarning Level = "warning"
)

// Issue is one problem found on one document.
type Issue struct {
	Level    Level  `json:"level"`
	DocID    string `json:"docId"`
	FileName string `json:"fileName"`
	Message  string `json:"message"`
}

// Result is the outcome of a preflight run. The export may proceed only when
// Blockers is empty.
type Result struct {
	Blockers  []Issue `json:"blockers"`
	Warnings  []Issue `json:"warnings"`
	TotalDocs int     `json:"totalDocs"`
}

// CanExport reports whether no blocker was found.
func (r Result) CanExport() bool {
	return len(r.Blockers) == 0
}

// Verdict titles the result for the export dialog.
func (r Result) Verdict() string {
	switch {
	case len(r.Blockers) > 0:
		return "Export blockiert"
	case len(r.Warnings) > 0:
		return "Export mit Warnungen"
	default:
		return "Export OK"
	}
}

// Config tunes the checks.
type Config struct {
	// RequiredFields are JSON field names of the extracted data that must be
	// present and non-blank.
	RequiredFields []string `yaml:"required_fields"`
	// SumWarningTolerance and SumBlockerTolerance bound the gap between the
	// gross total and net plus tax, in euros.
	SumWarningTolerance float64 `yaml:"sum_warning_tolerance"`
	SumBlockerTolerance float64 `yaml:"sum_blocker_tolerance"`
}

// DefaultRequiredFields are the fields every exported document needs.
var DefaultRequiredFields = []string{"belegDatum", "bruttoBetrag", "lieferantName"}

// DefaultConfig returns the standard checks.
func DefaultConfig() Config {
	return Config{
		RequiredFields:      append([]string(nil), DefaultRequiredFields...),
		SumWarningTolerance: 0.05,
		SumBlockerTolerance: 0.50,
	}
}

var statusMessages = map[document.Status]string{
	document.StatusProcessing:   "Dokument wird noch verarbeitet (Status PROCESSING)",
	document.StatusError:        "Dokumentanalyse fehlgeschlagen (Status ERROR)",
	document.StatusDuplicate:    "Dokument ist als Duplikat markiert (Status DUPLICATE)",
	document.StatusReviewNeeded: "Dokument muss noch geprüft werden (Status REVIEW_NEEDED)",
}

// Run checks every document in docs.
func Run(docs []*document.Record, cfg Config) Result {
	res := Result{Blockers: []Issue{}, Warnings: []Issue{}, TotalDocs: len(docs)}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		check(doc, cfg, &res)
	}
	return res
}

func check(doc *document.Record, cfg Config, res *Result) {
	issue := func(level Level, msg string) {
		name := doc.FileName
		if name == "" {
			name = doc.ID
		}
		i := Issue{Level: level, DocID: doc.ID, FileName: name, Message: msg}
		if level == LevelBlocker {
			res.Blockers = append(res.Blockers, i)
		} else {
			res.Warnings = append(res.Warnings, i)
		}
	}

	if msg, ok := statusMessages[doc.Status]; ok {
		issue(LevelBlocker, msg)
		if doc.Status == document.StatusProcessing {
			return
		}
	}

	if doc.Data == nil {
		issue(LevelBlocker, "Keine extrahierten Daten")
		return
	}
	data := *doc.Data

	present := fieldPresence(data)
	for _, field := range cfg.RequiredFields {
		if !present[field] {
			issue(LevelBlocker, fmt.Sprintf("Pflichtfeld fehlt: %s", field))
		}
	}

	if !fieldparse.IsISODate(data.BelegDatum) {
		issue(LevelBlocker, fmt.Sprintf("belegDatum ist kein ISO-Datum (YYYY-MM-DD): %q", data.BelegDatum))
	}

	netPlusTax := fieldparse.Sum(data.NettoBetrag, fieldparse.Sum(data.TaxAmounts()...))
	if netPlusTax > 0 {
		diff := fieldparse.AbsDiff(data.BruttoBetrag, netPlusTax)
		msg := fmt.Sprintf("Summenprüfung: Netto + MwSt = %.2f €, Brutto = %.2f € (Abweichung %.2f €)", netPlusTax, data.BruttoBetrag, diff)
		switch {
		case diff > cfg.SumBlockerTolerance:
			issue(LevelBlocker, msg)
		case diff > cfg.SumWarningTolerance:
			issue(LevelWarning, msg)
		}
	}
}

// fieldPresence reports which JSON fields of data carry a value. Blank
// strings count as missing.
func fieldPresence(data document.ExtractedData) map[string]bool {
	b, err := json.Marshal(data)
	if err != nil {
		return map[string]bool{}
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return map[string]bool{}
	}
	present := make(map[string]bool, len(fields))
	for k, v := range fields {
		switch x := v.(type) {
		case nil:
		case string:
			present[k] = strings.TrimSpace(x) != ""
		default:
			present[k] = true
		}
	}
	return present
}
