// Package privacy recognizes supermarket receipts that contain nothing but
// private purchases, so they can be kept out of the bookkeeping.
package privacy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zombor/belegflow/internal/document"
)

var retailers = regexp.MustCompile(`(?i)\b(rewe|edeka|lidl|aldi|netto|penny|kaufland|real|globus|tegut|norma|marktkauf|famila|combi|nahkauf|rossmann|dm-drogerie|dm drogerie|müller|budni|hit markt|denns|alnatura)\b`)

type category struct {
	label   string
	pattern *regexp.Regexp
}

var categories = []category{
	{label: "Zigaretten", pattern: regexp.MustCompile(`(?i)zigarett|tabak|marlboro|\bcamel\b|lucky strike|pall mall|chesterfield|\bwest\b|winston|gauloises|\bl&m\b|iqos|heets|zigarillo`)},
	{label: "Alkoholika", pattern: regexp.MustCompile(`(?i)bier\b|\bpils|radler|\b(rot|weiß|weiss|rosé|rose)?wein\b|\bsekt\b|prosecco|champagner|wodka|vodka|whiske?y|schnaps|likör|jägermeister|aperol|spirituose|cognac|brandy|tequila|\bgin\b|\brum\b|\bkorn\b`)},
	{label: "Lotto", pattern: regexp.MustCompile(`(?i)lotto|eurojackpot|rubbellos|spiel ?77|glücksspirale|\btoto\b`)},
}

// Result describes the outcome of a private-purchase check.
type Result struct {
	IsPrivate    bool   `json:"isPrivate"`
	Reason       string `json:"reason,omitempty"`
	PrivateItems int    `json:"privateItems"`
	TotalItems   int    `json:"totalItems"`
}

// Detect flags data as private when the vendor is a grocery or drug store
// and every line item is a tobacco, alcohol or lottery purchase.
func Detect(data document.ExtractedData) Result {
	vendor := strings.TrimSpace(data.LieferantName)
	if vendor == "" || len(data.LineItems) == 0 || !retailers.MatchString(vendor) {
		return Result{TotalItems: len(data.LineItems)}
	}

	seen := map[string]bool{}
	var labels []string
	private := 0
	for _, item := range data.LineItems {
		label, ok := classify(item.Description)
		if !ok {
			continue
		}
		private++
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}

	res := Result{PrivateItems: private, TotalItems: len(data.LineItems)}
	if private != len(data.LineItems) {
		return res
	}
	res.IsPrivate = true
	res.Reason = fmt.Sprintf("Nur private Positionen erkannt (%d/%d Positionen: %s bei %s)",
		private, len(data.LineItems), strings.Join(labels, "/"), vendor)
	return res
}

func classify(description string) (string, bool) {
	for _, c := range categories {
		if c.pattern.MatchString(description) {
			return c.label, true
		}
	}
	return "", false
}
