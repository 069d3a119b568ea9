// Package dates normalizes heterogeneous date strings to ISO 8601.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// layouts are tried in order for generic parsing. The list covers the
// formats observed across real bank and brokerage exports; month-first
// slash dates are handled here as well because US exports dominate the
// supported institutions.
var layouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"Jan 02 2006",
}

var (
	slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dashDate  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
)

// Normalize converts a raw date string to YYYY-MM-DD. The boolean reports
// whether a rule matched; when none does, the input is returned unchanged
// so callers can decide how to treat best-effort values. Never errors and
// never returns empty output for non-empty input.
func Normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return raw, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}

	// M/D/YYYY, zero-padded rewrite. Covers single-digit months/days the
	// layout list misses ("3/4/2024").
	if m := slashDate.FindStringSubmatch(s); m != nil {
		return rewrite(m[3], m[1], m[2]), true
	}

	// D-M-YYYY, common in European exports.
	if m := dashDate.FindStringSubmatch(s); m != nil {
		return rewrite(m[3], m[2], m[1]), true
	}

	return raw, false
}

func rewrite(year, month, day string) string {
	mo, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return fmt.Sprintf("%s-%02d-%02d", year, mo, d)
}
