package accounting

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zombor/belegflow/internal/document"
)

// RuleSpec is the configuration form of a heuristic rule.
type RuleSpec struct {
	Pattern     string  `yaml:"pattern"`
	AccountID   string  `yaml:"account"`
	TaxCategory string  `yaml:"tax"`
	Weight      float64 `yaml:"weight"`
	Reason      string  `yaml:"reason"`
}

// Rule maps a keyword pattern over vendor, description and line items to an
// account. Weight becomes the confidence of the booking.
type Rule struct {
	Pattern     *regexp.Regexp
	AccountID   string
	TaxCategory string
	Weight      float64
	Reason      string
}

var defaultRuleSpecs = []RuleSpec{
	{Pattern: `microsoft|adobe|jetbrains|atlassian|github|software|lizenz|license|saas|subscription|abonnement`, AccountID: "4964", TaxCategory: Tax19, Weight: 0.90, Reason: "Software-Erkennung"},
	{Pattern: `telekom|vodafone|\bo2\b|telefonica|congstar|mobilfunk|telefon`, AccountID: "4920", TaxCategory: Tax19, Weight: 0.85, Reason: "Telekommunikation"},
	{Pattern: `ionos|strato|hetzner|all-inkl|webhosting|hosting|domain|internet`, AccountID: "4925", TaxCategory: Tax19, Weight: 0.85, Reason: "Internet/Hosting"},
	{Pattern: `stadtwerke|e\.on|vattenfall|strom|energie|gasversorgung`, AccountID: "4240", TaxCategory: Tax19, Weight: 0.80, Reason: "Energieversorgung"},
	{Pattern: `allianz|versicherung|\bhuk\b|\baxa\b|\bergo\b`, AccountID: "4360", TaxCategory: Tax0, Weight: 0.85, Reason: "Versicherung"},
	{Pattern: `hotel|airbnb|booking\.com|übernachtung|motel|pension`, AccountID: "4680", TaxCategory: Tax7, Weight: 0.80, Reason: "Übernachtung"},
	{Pattern: `deutsche bahn|db fernverkehr|db vertrieb|lufthansa|flug|taxi|\buber\b|zugticket|fahrkarte`, AccountID: "4670", TaxCategory: Tax7, Weight: 0.80, Reason: "Reisekosten"},
	{Pattern: `\bshell\b|\baral\b|\besso\b|tankstelle|diesel|benzin|kraftstoff|adblue`, AccountID: "4530", TaxCategory: Tax19, Weight: 0.80, Reason: "Kraftstoff/Kfz"},
	{Pattern: `restaurant|bewirtung|gastronomie|trinkgeld|café|\bcafe\b`, AccountID: "4650", TaxCategory: Tax19, Weight: 0.75, Reason: "Bewirtung"},
	{Pattern: `photovoltaik|solarmodul|wechselrichter|pv-anlage|pv-modul|solarkabel`, AccountID: "3400", TaxCategory: Tax0, Weight: 0.85, Reason: "PV-Material (Nullsteuersatz)"},
	{Pattern: `bürobedarf|büromaterial|buero|papier|toner|ordner|schreibwaren`, AccountID: "4930", TaxCategory: Tax19, Weight: 0.75, Reason: "Bürobedarf"},
	{Pattern: `deutsche post|briefmarke|porto|einschreiben`, AccountID: "4910", TaxCategory: Tax0, Weight: 0.70, Reason: "Porto"},
	{Pattern: `miete|pacht`, AccountID: "4210", TaxCategory: Tax0, Weight: 0.70, Reason: "Miete"},
	{Pattern: `wartung|reparatur|support-vertrag`, AccountID: "4806", TaxCategory: Tax19, Weight: 0.70, Reason: "Wartung"},
}

// DefaultRuleSpecs returns a copy of the built-in rule set.
func DefaultRuleSpecs() []RuleSpec {
	return append([]RuleSpec(nil), defaultRuleSpecs...)
}

// DefaultRules compiles the built-in rule set.
func DefaultRules() []Rule {
	rules, err := CompileRules(defaultRuleSpecs)
	if err != nil {
		panic(err)
	}
	return rules
}

// CompileRules compiles specs in order. Patterns match case-insensitively.
func CompileRules(specs []RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, s := range specs {
		if strings.TrimSpace(s.Pattern) == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i)
		}
		if s.AccountID == "" {
			return nil, fmt.Errorf("rule %d (%s): missing account", i, s.Pattern)
		}
		re, err := regexp.Compile("(?i)" + s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: compiling pattern: %w", i, err)
		}
		rules = append(rules, Rule{
			Pattern:     re,
			AccountID:   s.AccountID,
			TaxCategory: s.TaxCategory,
			Weight:      s.Weight,
			Reason:      s.Reason,
		})
	}
	return rules, nil
}

// searchText is what heuristic rules are matched against.
func searchText(d document.ExtractedData) string {
	parts := []string{d.LieferantName, d.Beschreibung}
	for _, item := range d.LineItems {
		parts = append(parts, item.Description)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// MatchVendorRule returns the learned rule whose pattern occurs in vendor.
// The longest pattern wins, ties go to the smallest rule ID.
func MatchVendorRule(vendor string, rules []document.VendorRule) (document.VendorRule, bool) {
	v := strings.ToLower(vendor)
	var best document.VendorRule
	found := false
	for _, r := range rules {
		p := strings.ToLower(strings.TrimSpace(r.VendorPattern))
		if p == "" || !strings.Contains(v, p) {
			continue
		}
		bp := strings.TrimSpace(best.VendorPattern)
		if !found || len(p) > len(bp) || (len(p) == len(bp) && r.ID < best.ID) {
			best, found = r, true
		}
	}
	return best, found
}
