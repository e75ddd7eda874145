// Package outcome maps normalized extraction results to the document status
// shown in the review queue.
package outcome

import (
	"strings"

	"github.com/zombor/belegflow/internal/document"
)

const (
	ManualEntryVendor = "Manuelle Eingabe"

	defaultFailureMessage = "Analyse fehlgeschlagen. Bitte manuell erfassen."
	defaultReviewMessage  = "Bitte Daten prüfen."
	reviewScoreThreshold  = 6
)

// TechnicalMarkers are lowercase fragments of rationale text that identify
// an infrastructure failure instead of an unreadable document.
var TechnicalMarkers = []string{
	"siliconflow_api_key",
	"api key",
	"pdf ist zu groß",
	"vision api error",
	"gemini fehlgeschlagen",
	"quota",
	"http 4",
	"http 5",
}

// Result is the classified status and the user-facing message.
type Result struct {
	Status document.Status `json:"status"`
	Error  string          `json:"error,omitempty"`
}

// IsTechnicalFailure reports whether text names an infrastructure failure.
func IsTechnicalFailure(text string) bool {
	msg := strings.ToLower(text)
	for _, m := range TechnicalMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// signals are the inputs the classification rules look at.
type signals struct {
	data      document.ExtractedData
	rationale string
	message   string
	technical bool
}

// rule returns a result when it applies to s.
type rule func(s signals) (Result, bool)

// rules are evaluated in order; the first one that applies wins.
var rules = []rule{manualTemplate, qualityIssue, completed}

// manualTemplate catches placeholder extractions: ERROR on technical
// failures, REVIEW_NEEDED otherwise.
func manualTemplate(s signals) (Result, bool) {
	manual := strings.Contains(strings.ToLower(s.data.LieferantName), strings.ToLower(ManualEntryVendor)) ||
		(s.data.OCRScore <= 0 && s.data.BruttoBetrag == 0)
	if !manual {
		return Result{}, false
	}
	errMsg := s.message
	if errMsg == "" {
		errMsg = defaultFailureMessage
	}
	if s.technical {
		return Result{Status: document.StatusError, Error: errMsg}, true
	}
	return Result{Status: document.StatusReviewNeeded, Error: errMsg}, true
}

// qualityIssue sends date or sum warnings and low scores to review.
func qualityIssue(s signals) (Result, bool) {
	lower := strings.ToLower(s.rationale)
	if !strings.Contains(lower, "datum unklar") && !strings.Contains(lower, "summen widersprüchlich") && s.data.OCRScore >= reviewScoreThreshold {
		return Result{}, false
	}
	errMsg := s.rationale
	if errMsg == "" {
		errMsg = defaultReviewMessage
	}
	return Result{Status: document.StatusReviewNeeded, Error: errMsg}, true
}

func completed(signals) (Result, bool) {
	return Result{Status: document.StatusCompleted}, true
}

// Classify decides the status of a normalized document by running rules
// in order.
func Classify(data document.ExtractedData) Result {
	s := signals{
		data:      data,
		rationale: strings.TrimSpace(data.OCRRationale),
	}
	s.message = s.rationale
	if s.message == "" {
		s.message = strings.TrimSpace(data.Beschreibung)
	}
	s.technical = IsTechnicalFailure(s.message)

	for _, r := range rules {
		if res, ok := r(s); ok {
			return res
		}
	}
	return Result{Status: document.StatusCompleted}
}
