package document

import (
	"bytes"
	"encoding/json"
)

// Value is one loosely typed field of an OCR extraction, kept exactly as it
// was decoded. Numbers decode as json.Number so no precision is lost before
// the field parsers see them.
type Value struct {
	v   any
	set bool
}

// V wraps a Go value as a present extraction field.
func V(v any) Value {
	return Value{v: v, set: true}
}

// IsSet reports whether the field was present with a non-null value.
func (v Value) IsSet() bool {
	return v.set && v.v != nil
}

// Any returns the decoded value, or nil when the field is absent.
func (v Value) Any() any {
	return v.v
}

func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	v.v, v.set = x, true
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.v)
}

// RawExtraction is the partial, untrusted key/value record an OCR
// collaborator returns. Any field may be absent, null, a string or a number.
type RawExtraction struct {
	DocumentType           Value `json:"documentType"`
	DocumentTypeConfidence Value `json:"documentTypeConfidence"`

	BelegDatum           Value `json:"belegDatum"`
	BelegNummerLieferant Value `json:"belegNummerLieferant"`
	LieferantName        Value `json:"lieferantName"`
	LieferantAdresse     Value `json:"lieferantAdresse"`
	Steuernummer         Value `json:"steuernummer"`

	NettoBetrag  Value `json:"nettoBetrag"`
	MwstSatz0    Value `json:"mwstSatz0"`
	MwstBetrag0  Value `json:"mwstBetrag0"`
	MwstSatz7    Value `json:"mwstSatz7"`
	MwstBetrag7  Value `json:"mwstBetrag7"`
	MwstSatz19   Value `json:"mwstSatz19"`
	MwstBetrag19 Value `json:"mwstBetrag19"`
	BruttoBetrag Value `json:"bruttoBetrag"`

	Zahlungsmethode Value `json:"zahlungsmethode"`
	ZahlungsDatum   Value `json:"zahlungsDatum"`
	ZahlungsStatus  Value `json:"zahlungsStatus"`

	LineItems Value `json:"lineItems"`

	Kontierungskonto      Value `json:"kontierungskonto"`
	Steuerkategorie       Value `json:"steuerkategorie"`
	KontierungBegruendung Value `json:"kontierungBegruendung"`
	SollKonto             Value `json:"sollKonto"`
	HabenKonto            Value `json:"habenKonto"`
	EigeneBelegNummer     Value `json:"eigeneBelegNummer"`

	Kleinbetrag    Value `json:"kleinbetrag"`
	Vorsteuerabzug Value `json:"vorsteuerabzug"`
	ReverseCharge  Value `json:"reverseCharge"`
	Privatanteil   Value `json:"privatanteil"`

	Beschreibung Value `json:"beschreibung"`
	TextContent  Value `json:"textContent"`

	OCRScore     Value `json:"ocr_score"`
	OCRRationale Value `json:"ocr_rationale"`
}

// Raw converts normalized data back into an extraction with every field
// present, so it can be run through the normalizer again.
func (d ExtractedData) Raw() RawExtraction {
	items := make([]any, 0, len(d.LineItems))
	for _, item := range d.LineItems {
		m := map[string]any{"description": item.Description}
		if item.Amount != nil {
			m["amount"] = *item.Amount
		}
		items = append(items, m)
	}

	return RawExtraction{
		DocumentType:           V(d.DocumentType),
		DocumentTypeConfidence: V(d.DocumentTypeConfidence),
		BelegDatum:             V(d.BelegDatum),
		BelegNummerLieferant:   V(d.BelegNummerLieferant),
		LieferantName:          V(d.LieferantName),
		LieferantAdresse:       V(d.LieferantAdresse),
		Steuernummer:           V(d.Steuernummer),
		NettoBetrag:            V(d.NettoBetrag),
		MwstSatz0:              V(d.MwstSatz0),
		MwstBetrag0:            V(d.MwstBetrag0),
		MwstSatz7:              V(d.MwstSatz7),
		MwstBetrag7:            V(d.MwstBetrag7),
		MwstSatz19:             V(d.MwstSatz19),
		MwstBetrag19:           V(d.MwstBetrag19),
		BruttoBetrag:           V(d.BruttoBetrag),
		Zahlungsmethode:        V(d.Zahlungsmethode),
		ZahlungsDatum:          V(d.ZahlungsDatum),
		ZahlungsStatus:         V(d.ZahlungsStatus),
		LineItems:              V(items),
		Kontierungskonto:       V(d.Kontierungskonto),
		Steuerkategorie:        V(d.Steuerkategorie),
		KontierungBegruendung:  V(d.KontierungBegruendung),
		SollKonto:              V(d.SollKonto),
		HabenKonto:             V(d.HabenKonto),
		EigeneBelegNummer:      V(d.EigeneBelegNummer),
		Kleinbetrag:            V(d.Kleinbetrag),
		Vorsteuerabzug:         V(d.Vorsteuerabzug),
		ReverseCharge:          V(d.ReverseCharge),
		Privatanteil:           V(d.Privatanteil),
		Beschreibung:           V(d.Beschreibung),
		TextContent:            V(d.TextContent),
		OCRScore:               V(d.OCRScore),
		OCRRationale:           V(d.OCRRationale),
	}
}
