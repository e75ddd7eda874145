package beleg

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/zombor/belegflow/internal/document"
)

// ListVendorRules returns the learned vendor rules, most used first
func (s *Service) ListVendorRules() ([]*document.VendorRule, error) {
	rules, err := s.db.ListVendorRules()
	if err != nil {
		return nil, fmt.Errorf("listing vendor rules: %w", err)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].UseCount != rules[j].UseCount {
			return rules[i].UseCount > rules[j].UseCount
		}
		return rules[i].VendorPattern < rules[j].VendorPattern
	})
	return rules, nil
}

// SaveVendorRule creates or replaces a vendor rule. A rule must name an
// account or a tax category that the reference allows.
func (s *Service) SaveVendorRule(rule *document.VendorRule) (*document.VendorRule, error) {
	rule.VendorPattern = vendorPattern(rule.VendorPattern)
	rule.AccountID = strings.TrimSpace(rule.AccountID)
	rule.TaxCategoryValue = strings.TrimSpace(rule.TaxCategoryValue)

	if len([]rune(rule.VendorPattern)) < 2 {
		return nil, fmt.Errorf("vendor pattern too short: %w", ErrInvalid)
	}
	if rule.AccountID == "" && rule.TaxCategoryValue == "" {
		return nil, fmt.Errorf("account or tax category required: %w", ErrInvalid)
	}
	if err := s.checkBooking(rule.AccountID, rule.TaxCategoryValue); err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	if rule.ID == "" {
		rule.ID = s.idGenerator.Generate()
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := s.db.SaveVendorRule(rule); err != nil {
		return nil, fmt.Errorf("saving vendor rule: %w", err)
	}
	return rule, nil
}

// DeleteVendorRule removes a learned vendor rule
func (s *Service) DeleteVendorRule(id string) error {
	if err := s.db.DeleteVendorRule(id); err != nil {
		return fmt.Errorf("deleting vendor rule: %w", err)
	}
	return nil
}

func (s *Service) vendorRules() ([]document.VendorRule, error) {
	rules, err := s.db.ListVendorRules()
	if err != nil {
		return nil, fmt.Errorf("listing vendor rules: %w", err)
	}
	out := make([]document.VendorRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, *r)
	}
	return out, nil
}

func (s *Service) countVendorRuleUse(id string, rules []document.VendorRule) {
	for _, r := range rules {
		if r.ID != id {
			continue
		}
		r.UseCount++
		r.UpdatedAt = s.timeSource.Now()
		if err := s.db.SaveVendorRule(&r); err != nil {
			slog.Warn("Failed to update vendor rule usage", "rule", id, "error", err)
		}
		return
	}
}
