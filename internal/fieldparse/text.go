package fieldparse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var zeroWidth = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\u2060", "", "\ufeff", "")

// SanitizeText removes zero-width characters, collapses whitespace runs to a
// single space and trims the result.
func SanitizeText(s string) string {
	return strings.Join(strings.Fields(zeroWidth.Replace(s)), " ")
}

// ToString renders an extraction value as text. nil becomes "".
func ToString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// ParseBool accepts true/1/yes/ja and false/0/no/nein in any case, and
// treats any non-zero number as true. Everything else is false.
func ParseBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "ja":
			return true
		default:
			return false
		}
	case nil:
		return false
	default:
		d, ok := ParseDecimal(v)
		return ok && !d.IsZero()
	}
}
