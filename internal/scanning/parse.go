package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/belegflow/internal/document"
)

// parseExtraction pulls the JSON object out of a model reply. Values are
// kept untyped; the normalizer coerces them.
func parseExtraction(text string) (*document.RawExtraction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	if start == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	var raw document.RawExtraction
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return &raw, nil
}
