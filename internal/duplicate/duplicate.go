// Package duplicate decides whether a freshly extracted document is a
// re-upload of one already stored.
package duplicate

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/zombor/belegflow/internal/document"
	"github.com/zombor/belegflow/internal/fieldparse"
)

// Match names the stored document a candidate duplicates.
type Match struct {
	DocumentID string  `json:"documentId"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

const (
	HashReason = "Datei identisch (Hash)"

	similarityReason = "Hohe Ähnlichkeit bei Datum, Betrag und Lieferant."
	maxScoreMatch    = 0.89
	scoreThreshold   = 70
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

type fingerprint struct {
	invoice    string
	rawInvoice string
	amount     float64
	date       string
	vendor     string
}

func fingerprintOf(d *document.ExtractedData) fingerprint {
	return fingerprint{
		invoice:    canonical(d.BelegNummerLieferant),
		rawInvoice: strings.TrimSpace(d.BelegNummerLieferant),
		amount:     d.BruttoBetrag,
		date:       strings.TrimSpace(d.BelegDatum),
		vendor:     canonical(d.LieferantName),
	}
}

func canonical(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// tier is one matching strategy. Tiers are tried in order and the first
// tier with any hit decides the result.
type tier func(c, e fingerprint) (float64, string, bool)

var tiers = []tier{
	// Invoice number and amount agree.
	func(c, e fingerprint) (float64, string, bool) {
		if len(c.invoice) < 2 || c.invoice != e.invoice {
			return 0, "", false
		}
		if fieldparse.AbsDiff(c.amount, e.amount) >= 0.10 {
			return 0, "", false
		}
		return 0.95, fmt.Sprintf("Belegnummer (%s) und Betrag identisch.", e.rawInvoice), true
	},
	// Invoice number and date agree.
	func(c, e fingerprint) (float64, string, bool) {
		if len(c.invoice) < 3 || c.invoice != e.invoice || c.date == "" || c.date != e.date {
			return 0, "", false
		}
		return 0.90, fmt.Sprintf("Belegnummer (%s) und Datum identisch.", e.rawInvoice), true
	},
	// Weighted similarity.
	func(c, e fingerprint) (float64, string, bool) {
		score := 0
		if fieldparse.AbsDiff(c.amount, e.amount) < 0.05 {
			score += 40
		}
		if c.date != "" && c.date == e.date {
			score += 30
		}
		if c.vendor != "" && e.vendor != "" && (strings.Contains(c.vendor, e.vendor) || strings.Contains(e.vendor, c.vendor)) {
			score += 20
		}
		if len(c.invoice) > 4 && strings.Contains(e.invoice, c.invoice) {
			score += 20
		}
		if score < scoreThreshold {
			return 0, "", false
		}
		return math.Min(maxScoreMatch, float64(score)/100), similarityReason, true
	},
}

// Find returns the best match for candidate among existing, or nil.
// Records in ERROR or DUPLICATE state, records without data and the
// candidate itself are never matched. Within a tier the highest confidence
// wins and ties go to the smallest document ID, so the result does not
// depend on the order of existing.
func Find(candidate *document.Record, existing []*document.Record) *Match {
	if candidate == nil || candidate.Data == nil {
		return nil
	}
	c := fingerprintOf(candidate.Data)
	if c.invoice == "" && c.amount == 0 {
		return nil
	}

	var pool []*document.Record
	for _, rec := range existing {
		if rec == nil || rec.Data == nil || rec.ID == candidate.ID {
			continue
		}
		if rec.Status == document.StatusError || rec.Status == document.StatusDuplicate {
			continue
		}
		pool = append(pool, rec)
	}

	for _, match := range tiers {
		var best *Match
		for _, rec := range pool {
			conf, reason, ok := match(c, fingerprintOf(rec.Data))
			if !ok {
				continue
			}
			if best == nil || conf > best.Confidence || (conf == best.Confidence && rec.ID < best.DocumentID) {
				best = &Match{DocumentID: rec.ID, Reason: reason, Confidence: conf}
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// FindByHash matches on identical file content. Records that are themselves
// duplicates are skipped so the match points at the original upload.
func FindByHash(hash string, existing []*document.Record) *Match {
	if hash == "" {
		return nil
	}
	var best *document.Record
	for _, rec := range existing {
		if rec == nil || rec.FileHash != hash || rec.Status == document.StatusDuplicate {
			continue
		}
		if best == nil || rec.ID < best.ID {
			best = rec
		}
	}
	if best == nil {
		return nil
	}
	return &Match{DocumentID: best.ID, Reason: HashReason, Confidence: 1}
}
