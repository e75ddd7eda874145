package beleg

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/zombor/belegflow/internal/accounting"
	"github.com/zombor/belegflow/internal/document"
	"github.com/zombor/belegflow/internal/fieldparse"
	"github.com/zombor/belegflow/internal/outcome"
)

// UpdateKontierung applies a manual account and tax choice to a document.
// With remember set, the choice is stored as a vendor rule for future
// uploads from the same vendor.
func (s *Service) UpdateKontierung(id string, override accounting.Override, remember bool) (*document.Record, error) {
	if override.IsZero() {
		return nil, fmt.Errorf("account or tax category required: %w", ErrInvalid)
	}
	if err := s.checkBooking(override.AccountID, override.TaxCategoryValue); err != nil {
		return nil, err
	}

	rec, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if rec.Data == nil {
		return nil, fmt.Errorf("document %s has no extracted data: %w", id, ErrInvalid)
	}
	if rec.ExportID != "" {
		return nil, fmt.Errorf("document %s is already exported: %w", id, ErrInvalid)
	}

	booked, _ := s.engine.Apply(*rec.Data, &override, nil)
	rec.Data = &booked
	rec.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveDocument(rec); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}

	if remember {
		if err := s.rememberVendor(booked.LieferantName, override); err != nil {
			return nil, err
		}
	}

	slog.Info("Kontierung updated", "id", id, "account", booked.Kontierungskonto, "tax", booked.Steuerkategorie, "remember", remember)
	return rec, nil
}

// checkBooking validates an account/tax pair against the reference. Empty
// values are not checked.
func (s *Service) checkBooking(accountID, tax string) error {
	ref := s.engine.Reference()
	if accountID != "" {
		if _, ok := ref.Account(accountID); !ok {
			return fmt.Errorf("unknown account %q: %w", accountID, ErrInvalid)
		}
	}
	if tax != "" {
		if _, ok := ref.TaxCategory(tax); !ok {
			return fmt.Errorf("unknown tax category %q: %w", tax, ErrInvalid)
		}
	}
	if accountID != "" && tax != "" && !ref.AllowsTaxCategory(accountID, tax) {
		return fmt.Errorf("tax category %s not allowed on account %s: %w", tax, accountID, ErrInvalid)
	}
	return nil
}

// ValidateDocument returns the booking problems of a document
func (s *Service) ValidateDocument(id string) ([]string, error) {
	rec, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if rec.Data == nil {
		return []string{"Keine extrahierten Daten"}, nil
	}
	problems := accounting.Validate(*rec.Data)
	if problems == nil {
		problems = []string{}
	}
	return problems, nil
}

// ResolveReview marks a reviewed document as completed
func (s *Service) ResolveReview(id string) (*document.Record, error) {
	rec, err := s.db.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	if rec.Status != document.StatusReviewNeeded {
		return nil, fmt.Errorf("document %s is %s, not %s: %w", id, rec.Status, document.StatusReviewNeeded, ErrInvalid)
	}
	if rec.Data == nil {
		return nil, fmt.Errorf("document %s has no extracted data: %w", id, ErrInvalid)
	}

	rec.Status = document.StatusCompleted
	rec.Error = ""
	rec.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveDocument(rec); err != nil {
		return nil, fmt.Errorf("saving document: %w", err)
	}
	return rec, nil
}

// vendorPattern is the lookup key a learned rule stores for vendor.
func vendorPattern(vendor string) string {
	return strings.ToLower(fieldparse.SanitizeText(vendor))
}

func (s *Service) rememberVendor(vendor string, override accounting.Override) error {
	pattern := vendorPattern(vendor)
	if len([]rune(pattern)) < 2 || strings.Contains(pattern, strings.ToLower(outcome.ManualEntryVendor)) {
		slog.Warn("Not learning vendor rule without a usable vendor name", "vendor", vendor)
		return nil
	}

	rules, err := s.db.ListVendorRules()
	if err != nil {
		return fmt.Errorf("listing vendor rules: %w", err)
	}
	now := s.timeSource.Now()

	var rule *document.VendorRule
	for _, r := range rules {
		if r.VendorPattern == pattern {
			rule = r
			break
		}
	}
	if rule == nil {
		rule = &document.VendorRule{ID: s.idGenerator.Generate(), VendorPattern: pattern, CreatedAt: now}
	}
	rule.AccountID = override.AccountID
	rule.TaxCategoryValue = override.TaxCategoryValue
	rule.UpdatedAt = now

	if err := s.db.SaveVendorRule(rule); err != nil {
		return fmt.Errorf("saving vendor rule: %w", err)
	}
	return nil
}
