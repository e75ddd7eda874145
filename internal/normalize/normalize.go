// Package normalize turns a raw OCR extraction into fully populated,
// typed invoice data and records every plausibility problem it finds in
// the OCR rationale.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/belegflow/internal/document"
	"github.com/zombor/belegflow/internal/fieldparse"
)

const (
	// SumTolerance is the largest accepted gap between gross and net+tax.
	SumTolerance = 0.05

	DateWarning = "Datum unklar – bitte prüfen"

	warningSeparator = " | "
)

// Options controls the policy decisions of Normalize.
type Options struct {
	// Now supplies today's date for documents without a belegDatum.
	Now func() time.Time
	// DefaultVorsteuerabzug applies when the extraction has no vorsteuerabzug flag.
	DefaultVorsteuerabzug bool
}

var documentTypes = map[string]string{
	"rechnung":            document.TypeRechnung,
	"invoice":             document.TypeRechnung,
	"beleg":               document.TypeBelegQuittung,
	"quittung":            document.TypeBelegQuittung,
	"kassenzettel":        document.TypeBelegQuittung,
	"receipt":             document.TypeBelegQuittung,
	"beleg_quittung":      document.TypeBelegQuittung,
	"bestellbestaetigung": document.TypeBestellbestaetigung,
	"bestellbestätigung":  document.TypeBestellbestaetigung,
	"order confirmation":  document.TypeBestellbestaetigung,
	"lieferschein":        document.TypeLieferschein,
	"delivery note":       document.TypeLieferschein,
	"andere":              document.TypeAndere,
	"other":               document.TypeAndere,
}

// Normalize never fails. Normalizing its own output again yields the same
// data.
func Normalize(raw document.RawExtraction, opts Options) document.ExtractedData {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var warnings []string
	out := document.ExtractedData{}

	belegDatum, present, valid := dateField(raw.BelegDatum)
	switch {
	case !present:
		out.BelegDatum = now().Format("2006-01-02")
	case !valid:
		out.BelegDatum = belegDatum
		warnings = append(warnings, DateWarning)
	default:
		out.BelegDatum = belegDatum
	}
	out.ZahlungsDatum, _, _ = dateField(raw.ZahlungsDatum)

	out.NettoBetrag = amount(raw.NettoBetrag)
	out.MwstBetrag0 = amount(raw.MwstBetrag0)
	out.MwstBetrag7 = amount(raw.MwstBetrag7)
	out.MwstBetrag19 = amount(raw.MwstBetrag19)
	out.MwstSatz0 = rate(raw.MwstSatz0, 0)
	out.MwstSatz7 = rate(raw.MwstSatz7, 7)
	out.MwstSatz19 = rate(raw.MwstSatz19, 19)

	taxSum := fieldparse.Sum(out.TaxAmounts()...)
	netPlusTax := fieldparse.Round2(fieldparse.Sum(out.NettoBetrag, taxSum))

	brutto, bruttoOK := fieldparse.ParseDecimal(raw.BruttoBetrag.Any())
	out.BruttoBetrag = amount(raw.BruttoBetrag)
	if (!bruttoOK || brutto.IsZero()) && out.NettoBetrag > 0 && taxSum != 0 {
		out.BruttoBetrag = netPlusTax
	}

	if taxSum != 0 || netPlusTax > 0 {
		if diff := fieldparse.AbsDiff(out.BruttoBetrag, netPlusTax); diff > SumTolerance {
			warnings = append(warnings, SumWarning(diff))
		}
	}

	out.LieferantName = fieldparse.SanitizeText(text(raw.LieferantName))
	out.LieferantAdresse = fieldparse.SanitizeText(text(raw.LieferantAdresse))
	out.BelegNummerLieferant = strings.TrimSpace(text(raw.BelegNummerLieferant))
	out.Steuernummer = strings.TrimSpace(text(raw.Steuernummer))
	out.Zahlungsmethode = strings.TrimSpace(text(raw.Zahlungsmethode))
	out.ZahlungsStatus = strings.TrimSpace(text(raw.ZahlungsStatus))
	out.Beschreibung = strings.TrimSpace(text(raw.Beschreibung))
	out.TextContent = strings.TrimSpace(text(raw.TextContent))

	out.Kontierungskonto = strings.TrimSpace(text(raw.Kontierungskonto))
	out.Steuerkategorie = strings.TrimSpace(text(raw.Steuerkategorie))
	out.KontierungBegruendung = strings.TrimSpace(text(raw.KontierungBegruendung))
	out.SollKonto = strings.TrimSpace(text(raw.SollKonto))
	out.HabenKonto = strings.TrimSpace(text(raw.HabenKonto))
	out.EigeneBelegNummer = strings.TrimSpace(text(raw.EigeneBelegNummer))

	out.LineItems = lineItems(raw.LineItems.Any())

	out.Kleinbetrag = fieldparse.ParseBool(raw.Kleinbetrag.Any())
	out.ReverseCharge = fieldparse.ParseBool(raw.ReverseCharge.Any())
	out.Privatanteil = fieldparse.ParseBool(raw.Privatanteil.Any())
	out.Vorsteuerabzug = opts.DefaultVorsteuerabzug
	if raw.Vorsteuerabzug.IsSet() {
		out.Vorsteuerabzug = fieldparse.ParseBool(raw.Vorsteuerabzug.Any())
	}

	out.DocumentType, out.DocumentTypeConfidence = documentType(raw)

	out.OCRScore = clamp(fieldparse.ParseAmount(raw.OCRScore.Any()), 0, 10)
	out.OCRRationale = appendWarnings(strings.TrimSpace(text(raw.OCRRationale)), warnings)

	if len(warnings) > 0 {
		slog.Debug("Normalization produced warnings", "vendor", out.LieferantName, "warnings", warnings)
	}

	return out
}

// SumWarning is the rationale note for a gross total that does not match
// net plus tax.
func SumWarning(diff float64) string {
	return fmt.Sprintf("Summen widersprüchlich (Netto+MwSt vs. Brutto, Δ=%.2f€) – bitte prüfen", diff)
}

func text(v document.Value) string {
	return fieldparse.ToString(v.Any())
}

func amount(v document.Value) float64 {
	return fieldparse.Round2(fieldparse.ParseAmount(v.Any()))
}

func rate(v document.Value, fallback float64) float64 {
	if !v.IsSet() || strings.TrimSpace(text(v)) == "" {
		return fallback
	}
	return amount(v)
}

// dateField reports the parsed date, whether the field carried any text and
// whether that text was a valid date.
func dateField(v document.Value) (string, bool, bool) {
	s := strings.TrimSpace(text(v))
	if s == "" {
		return "", false, false
	}
	if iso, ok := fieldparse.ToISODate(s); ok {
		return iso, true, true
	}
	return s, true, false
}

func lineItems(v any) []document.LineItem {
	var elems []any
	switch x := v.(type) {
	case []any:
		elems = x
	case []map[string]any:
		for _, m := range x {
			elems = append(elems, m)
		}
	case map[string]any:
		elems = []any{x}
	}

	items := []document.LineItem{}
	for _, e := range elems {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		desc := fieldparse.SanitizeText(fieldparse.ToString(m["description"]))
		if desc == "" {
			continue
		}
		item := document.LineItem{Description: desc}
		if d, ok := fieldparse.ParseDecimal(m["amount"]); ok {
			f, _ := d.Float64()
			f = fieldparse.Round2(f)
			item.Amount = &f
		}
		items = append(items, item)
	}
	return items
}

func documentType(raw document.RawExtraction) (string, float64) {
	label := strings.ToLower(strings.TrimSpace(text(raw.DocumentType)))
	if label == "" {
		return "", 0
	}

	kind, known := documentTypes[label]
	confidence := 0.95
	if !known {
		kind, confidence = document.TypeAndere, 0.5
	}
	if raw.DocumentTypeConfidence.IsSet() {
		confidence = clamp(fieldparse.ParseAmount(raw.DocumentTypeConfidence.Any()), 0, 1)
	}
	return kind, confidence
}

func appendWarnings(rationale string, warnings []string) string {
	var fresh []string
	for _, w := range warnings {
		if !strings.Contains(rationale, w) {
			fresh = append(fresh, w)
		}
	}
	if len(fresh) == 0 {
		return rationale
	}
	joined := strings.Join(fresh, warningSeparator)
	if rationale == "" {
		return joined
	}
	return rationale + warningSeparator + joined
}

func clamp(f, lo, hi float64) float64 {
	switch {
	case f < lo:
		return lo
	case f > hi:
		return hi
	default:
		return f
	}
}
