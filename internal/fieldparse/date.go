package fieldparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

var (
	yearFirstRe = regexp.MustCompile(`^(\d{4})[-./](\d{1,2})[-./](\d{1,2})$`)
	dayFirstRe  = regexp.MustCompile(`^(\d{1,2})[-./](\d{1,2})[-./](\d{4}|\d{2})$`)
	compactRe   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)

	// date-times keep the calendar date as written, the time is dropped
	dateTimeRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})[T ]\d{1,2}:\d{2}(:\d{2}(\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?$`)
)

// ParseDate returns raw as a YYYY-MM-DD date, or raw unchanged when it is
// not a recognizable calendar date.
func ParseDate(raw string) string {
	if iso, ok := ToISODate(raw); ok {
		return iso
	}
	return raw
}

// ToISODate converts ISO, compact and German day-first notations to
// YYYY-MM-DD. Two-digit years of 70 and above map to the 1900s, the rest
// to the 2000s. Dates that do not exist on the calendar are rejected.
func ToISODate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	var y, m, d string
	switch {
	case yearFirstRe.MatchString(s):
		p := yearFirstRe.FindStringSubmatch(s)
		y, m, d = p[1], p[2], p[3]
	case dateTimeRe.MatchString(s):
		p := dateTimeRe.FindStringSubmatch(s)
		y, m, d = p[1], p[2], p[3]
	case compactRe.MatchString(s):
		p := compactRe.FindStringSubmatch(s)
		y, m, d = p[1], p[2], p[3]
	case dayFirstRe.MatchString(s):
		p := dayFirstRe.FindStringSubmatch(s)
		d, m, y = p[1], p[2], p[3]
		if len(y) == 2 {
			if yy, _ := strconv.Atoi(y); yy >= 70 {
				y = "19" + y
			} else {
				y = "20" + y
			}
		}
	default:
		return "", false
	}

	year, _ := strconv.Atoi(y)
	month, _ := strconv.Atoi(m)
	day, _ := strconv.Atoi(d)
	return calendarDate(year, month, day)
}

func calendarDate(year, month, day int) (string, bool) {
	if year < 1900 || year > 2200 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format(isoLayout), true
}

// IsISODate reports whether s is already a valid YYYY-MM-DD date.
func IsISODate(s string) bool {
	_, err := time.Parse(isoLayout, s)
	return err == nil
}
