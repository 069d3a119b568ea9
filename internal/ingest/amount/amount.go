// Package amount normalizes currency-formatted strings to signed values.
package amount

import (
	"math"
	"strconv"
	"strings"
)

// currencyReplacer strips currency symbols, thousands separators, and
// interior whitespace before numeric parsing.
var currencyReplacer = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "",
	",", "", " ", "", "\t", "",
)

// Parse converts a raw cell value to a signed amount. It never fails:
// empty, nil-ish, or unparseable input yields 0. Parenthesized values
// ("(123.45)") are treated as negatives, the convention used by many bank
// and brokerage exports.
func Parse(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = currencyReplacer.Replace(s)

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	if negative {
		v = -v
	}
	return v
}
