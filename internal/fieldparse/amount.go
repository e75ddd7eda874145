// Package fieldparse turns untrusted OCR field values into typed values.
// None of the functions fail: unparseable input yields a zero value or the
// original text.
package fieldparse

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	currencyMarks   = regexp.MustCompile(`(?i)euro|eur|€|\$|£|¥`)
	nonNumeric      = regexp.MustCompile(`[^0-9.,\-]`)
	dotThousandsRe  = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	commaThousandRe = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
)

// ParseAmount converts a monetary value in German or international notation
// to a number. It returns 0 when nothing numeric can be recovered.
func ParseAmount(value any) float64 {
	d, ok := ParseDecimal(value)
	if !ok {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// ParseDecimal is ParseAmount with an explicit success flag.
func ParseDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return ParseDecimal(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt(int64(v)), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return parseAmountString(v.String())
		}
		return d, true
	case string:
		return parseAmountString(v)
	default:
		return decimal.Zero, false
	}
}

func parseAmountString(raw string) (decimal.Decimal, bool) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	s = currencyMarks.ReplaceAllString(s, "")

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = nonNumeric.ReplaceAllString(s, "")
	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	}
	if s == "" || strings.Contains(s, "-") {
		return decimal.Zero, false
	}

	s = canonicalSeparators(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// canonicalSeparators rewrites s so that '.' is the only decimal separator
// and no grouping separators remain.
func canonicalSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56
			return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
		}
		// 1,234.56
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if commaThousandRe.MatchString(s) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if dotThousandsRe.MatchString(s) {
			return strings.ReplaceAll(s, ".", "")
		}
		return s
	default:
		return s
	}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	r, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return r
}

// Sum adds amounts without binary floating point drift.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(v))
	}
	f, _ := total.Float64()
	return f
}

// AbsDiff returns |a-b| computed in decimal arithmetic.
func AbsDiff(a, b float64) float64 {
	d := decimal.NewFromFloat(Round2(a)).Sub(decimal.NewFromFloat(Round2(b))).Abs()
	f, _ := d.Float64()
	return f
}
