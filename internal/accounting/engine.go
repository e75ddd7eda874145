package accounting

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/zombor/belegflow/internal/document"
	"github.com/zombor/belegflow/internal/fieldparse"
)

// Decision sources, in precedence order.
const (
	SourceOverride   = "override"
	SourceVendorRule = "vendor_rule"
	SourcePattern    = "pattern"
	SourceExisting   = "existing"
	SourceFallback   = "fallback"
)

const fallbackConfidence = 0.5

// Override is an explicit user choice of account and tax category.
type Override struct {
	AccountID        string `json:"accountId"`
	TaxCategoryValue string `json:"taxCategoryValue"`
}

// IsZero reports whether the override carries no choice at all.
func (o Override) IsZero() bool {
	return strings.TrimSpace(o.AccountID) == "" && strings.TrimSpace(o.TaxCategoryValue) == ""
}

// Decision explains how the engine arrived at a booking.
type Decision struct {
	Source       string  `json:"source"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
	VendorRuleID string  `json:"vendorRuleId,omitempty"`
}

// Engine books extracted documents against a Reference.
type Engine struct {
	ref   Reference
	rules []Rule
}

// NewEngine creates an engine that tries rules in the given order.
func NewEngine(ref Reference, rules []Rule) *Engine {
	return &Engine{ref: ref, rules: rules}
}

// Reference returns the configuration the engine books against.
func (e *Engine) Reference() Reference {
	return e.ref
}

// Apply assigns account and tax category to data. An override is applied
// as given. Otherwise a matching vendor rule, then the first matching
// heuristic rule, then the tax-based fallback fill whatever is still empty.
// Apply does not modify data.
func (e *Engine) Apply(data document.ExtractedData, override *Override, vendorRules []document.VendorRule) (document.ExtractedData, Decision) {
	out := data
	var dec Decision

	if override != nil && !override.IsZero() {
		if v := strings.TrimSpace(override.AccountID); v != "" {
			out.Kontierungskonto = v
		}
		if v := strings.TrimSpace(override.TaxCategoryValue); v != "" {
			out.Steuerkategorie = v
		}
		dec = Decision{Source: SourceOverride, Confidence: 1, Reason: "Manuelle Kontierung"}
		out.KontierungBegruendung = dec.Reason
		e.setLedger(&out)
		return out, dec
	}

	if vr, ok := MatchVendorRule(out.LieferantName, vendorRules); ok {
		if vr.AccountID != "" {
			out.Kontierungskonto = vr.AccountID
		}
		if vr.TaxCategoryValue != "" {
			out.Steuerkategorie = vr.TaxCategoryValue
		}
		dec = Decision{
			Source:       SourceVendorRule,
			Confidence:   1,
			Reason:       fmt.Sprintf("Gelernte Lieferantenregel (%s)", vr.VendorPattern),
			VendorRuleID: vr.ID,
		}
	}

	if out.Kontierungskonto == "" {
		if r, ok := e.match(out); ok {
			out.Kontierungskonto = r.AccountID
			if out.Steuerkategorie == "" {
				out.Steuerkategorie = r.TaxCategory
			}
			if dec.Source == "" {
				dec = Decision{Source: SourcePattern, Confidence: r.Weight, Reason: r.Reason}
			}
		}
	} else if dec.Source == "" {
		dec = Decision{Source: SourceExisting, Confidence: 1, Reason: "Kontierung aus Beleg übernommen"}
	}

	if out.Steuerkategorie == "" {
		out.Steuerkategorie = e.fallbackTaxCategory(out)
	}

	if out.Kontierungskonto == "" {
		out.Kontierungskonto = e.ref.DefaultAccountID
		if out.Steuerkategorie == Tax0 && e.ref.ZeroRateAccountID != "" {
			out.Kontierungskonto = e.ref.ZeroRateAccountID
		}
		if dec.Source == "" {
			dec = Decision{
				Source:     SourceFallback,
				Confidence: fallbackConfidence,
				Reason:     fmt.Sprintf("Standardkontierung (Steuerkategorie %s)", out.Steuerkategorie),
			}
		}
	}

	out.KontierungBegruendung = fmt.Sprintf("%s (Confidence: %d%%)", dec.Reason, int(math.Round(dec.Confidence*100)))
	e.setLedger(&out)
	return out, dec
}

func (e *Engine) match(d document.ExtractedData) (Rule, bool) {
	text := searchText(d)
	for _, r := range e.rules {
		if r.Pattern.MatchString(text) {
			return r, true
		}
	}
	return Rule{}, false
}

func (e *Engine) setLedger(d *document.ExtractedData) {
	if d.Kontierungskonto == "" {
		return
	}
	d.SollKonto = d.Kontierungskonto
	if a, ok := e.ref.Account(d.Kontierungskonto); ok && a.SKR03 != "" {
		d.SollKonto = a.SKR03
	}
	d.HabenKonto = e.ref.CreditAccount
}

// fallbackTaxCategory derives a category from the document flags, then from
// which VAT bracket best explains the recorded tax.
func (e *Engine) fallbackTaxCategory(d document.ExtractedData) string {
	switch {
	case d.ReverseCharge:
		return TaxRC
	case d.Kleinbetrag:
		return TaxKlein
	case d.Privatanteil:
		return TaxPrivat
	}

	has19, has7 := d.MwstBetrag19 > 0, d.MwstBetrag7 > 0
	switch {
	case !has19 && !has7:
		return Tax0
	case has19 && !has7:
		return Tax19
	case has7 && !has19:
		return Tax7
	}
	if d.NettoBetrag <= 0 {
		return Tax19
	}
	d19 := fieldparse.AbsDiff(d.NettoBetrag*e.rate(Tax19, 0.19), d.MwstBetrag19)
	d7 := fieldparse.AbsDiff(d.NettoBetrag*e.rate(Tax7, 0.07), d.MwstBetrag7)
	if d7 < d19 {
		return Tax7
	}
	return Tax19
}

func (e *Engine) rate(value string, fallback float64) float64 {
	if t, ok := e.ref.TaxCategory(value); ok && t.UstSatz > 0 {
		return t.UstSatz
	}
	return fallback
}

// NextInvoiceID returns the next own invoice number for a document dated
// belegDatum, numbering sequentially within the year. Documents without a
// usable year are numbered in the year of now.
func (e *Engine) NextInvoiceID(belegDatum string, existing []*document.Record, now time.Time) string {
	year := fmt.Sprintf("%04d", now.Year())
	if y, ok := leadingYear(belegDatum); ok {
		year = y
	}

	count := 0
	for _, rec := range existing {
		if rec == nil || rec.Data == nil {
			continue
		}
		if strings.HasPrefix(rec.Data.BelegDatum, year) {
			count++
		}
	}

	prefix := e.ref.InvoicePrefix
	if prefix == "" {
		prefix = "ZOE"
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, year, count+1)
}

var yearPrefix = regexp.MustCompile(`^\d{4}`)

// leadingYear returns the first four characters of belegDatum when they
// are ASCII digits.
func leadingYear(belegDatum string) (string, bool) {
	y := yearPrefix.FindString(belegDatum)
	return y, y != ""
}

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate returns the booking problems of data in a fixed order. An empty
// result means the document can be booked.
func Validate(data document.ExtractedData) []string {
	var problems []string

	expected := fieldparse.Sum(data.NettoBetrag, fieldparse.Sum(data.TaxAmounts()...))
	if fieldparse.AbsDiff(expected, data.BruttoBetrag) > 0.01 {
		problems = append(problems, fmt.Sprintf("Summenprüfung fehlgeschlagen: Netto + MwSt = %.2f €, Brutto = %.2f €", expected, data.BruttoBetrag))
	}
	if len([]rune(strings.TrimSpace(data.LieferantName))) < 2 {
		problems = append(problems, "Lieferantenname fehlt oder ungültig")
	}
	if !isoDate.MatchString(data.BelegDatum) {
		problems = append(problems, "Belegdatum fehlt oder ist nicht im Format YYYY-MM-DD")
	}
	if data.BruttoBetrag <= 0 {
		problems = append(problems, "Bruttobetrag muss größer als 0 sein")
	}
	return problems
}
