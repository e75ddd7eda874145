// Package document holds the records that flow through the Beleg pipeline:
// the extracted invoice payload, the stored document record and the
// learned vendor rules and export batches that reference it.
package document

import "time"

// Status is the lifecycle state of a document record.
type Status string

const (
	StatusProcessing   Status = "PROCESSING"
	StatusCompleted    Status = "COMPLETED"
	StatusReviewNeeded Status = "REVIEW_NEEDED"
	StatusError        Status = "ERROR"
	StatusDuplicate    Status = "DUPLICATE"
	StatusPrivate      Status = "PRIVATE"
)

// Document type classifications assigned by the normalizer.
const (
	TypeRechnung            = "rechnung"
	TypeBelegQuittung       = "beleg_quittung"
	TypeBestellbestaetigung = "bestellbestaetigung"
	TypeLieferschein        = "lieferschein"
	TypeAndere              = "andere"
)

// LineItem is one position of an invoice. Amount is nil when the OCR
// output carried no usable value for it.
type LineItem struct {
	Description string   `json:"description"`
	Amount      *float64 `json:"amount,omitempty"`
}

// ExtractedData is the fully populated, normalized invoice payload.
// Every amount is rounded to two decimal places.
type ExtractedData struct {
	DocumentType           string  `json:"documentType"`
	DocumentTypeConfidence float64 `json:"documentTypeConfidence"`

	BelegDatum           string `json:"belegDatum"`
	BelegNummerLieferant string `json:"belegNummerLieferant"`
	LieferantName        string `json:"lieferantName"`
	LieferantAdresse     string `json:"lieferantAdresse"`
	Steuernummer         string `json:"steuernummer"`

	NettoBetrag  float64 `json:"nettoBetrag"`
	MwstSatz0    float64 `json:"mwstSatz0"`
	MwstBetrag0  float64 `json:"mwstBetrag0"`
	MwstSatz7    float64 `json:"mwstSatz7"`
	MwstBetrag7  float64 `json:"mwstBetrag7"`
	MwstSatz19   float64 `json:"mwstSatz19"`
	MwstBetrag19 float64 `json:"mwstBetrag19"`
	BruttoBetrag float64 `json:"bruttoBetrag"`

	Zahlungsmethode string `json:"zahlungsmethode"`
	ZahlungsDatum   string `json:"zahlungsDatum"`
	ZahlungsStatus  string `json:"zahlungsStatus"`

	LineItems []LineItem `json:"lineItems"`

	Kontierungskonto      string `json:"kontierungskonto"`
	Steuerkategorie       string `json:"steuerkategorie"`
	KontierungBegruendung string `json:"kontierungBegruendung"`
	SollKonto             string `json:"sollKonto"`
	HabenKonto            string `json:"habenKonto"`
	EigeneBelegNummer     string `json:"eigeneBelegNummer"`

	Kleinbetrag    bool `json:"kleinbetrag"`
	Vorsteuerabzug bool `json:"vorsteuerabzug"`
	ReverseCharge  bool `json:"reverseCharge"`
	Privatanteil   bool `json:"privatanteil"`

	Beschreibung string `json:"beschreibung"`
	TextContent  string `json:"textContent"`

	OCRScore     float64 `json:"ocr_score"`
	OCRRationale string  `json:"ocr_rationale"`
}

// TaxAmounts returns the recorded tax amounts of the 0%, 7% and 19% brackets.
func (d ExtractedData) TaxAmounts() []float64 {
	return []float64{d.MwstBetrag0, d.MwstBetrag7, d.MwstBetrag19}
}

// Record is one uploaded document. DuplicateOfID is a lookup key into the
// document store, never an owning reference.
type Record struct {
	ID                  string         `json:"id"`
	FileName            string         `json:"fileName"`
	StoredFile          string         `json:"storedFile"`
	ContentType         string         `json:"contentType"`
	FileHash            string         `json:"fileHash,omitempty"`
	UploadDate          time.Time      `json:"uploadDate"`
	UpdatedAt           time.Time      `json:"updatedAt"`
	Status              Status         `json:"status"`
	Data                *ExtractedData `json:"data"`
	DuplicateOfID       string         `json:"duplicateOfId,omitempty"`
	DuplicateReason     string         `json:"duplicateReason,omitempty"`
	DuplicateConfidence float64        `json:"duplicateConfidence,omitempty"`
	PrivateReason       string         `json:"privateReason,omitempty"`
	Error               string         `json:"error,omitempty"`
	ExportID            string         `json:"exportId,omitempty"`
}

// VendorRule is a learned vendor → account/tax mapping created when a user
// confirms a kontierung. It is consulted before the heuristic rules.
type VendorRule struct {
	ID               string    `json:"id"`
	VendorPattern    string    `json:"vendorPattern"`
	AccountID        string    `json:"accountId,omitempty"`
	TaxCategoryValue string    `json:"taxCategoryValue,omitempty"`
	UseCount         int       `json:"useCount"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ExportBatch groups the documents handed to a bookkeeping export.
type ExportBatch struct {
	ID          string    `json:"id"`
	DocumentIDs []string  `json:"documentIds"`
	TotalBrutto float64   `json:"totalBrutto"`
	CreatedAt   time.Time `json:"createdAt"`
}
