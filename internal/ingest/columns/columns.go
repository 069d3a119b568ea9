// Package columns maps header labels to semantic roles via keyword patterns.
package columns

import "strings"

// Common pattern lists, in priority order. Callers may supply their own;
// these cover the roles the generic bank layout needs.
var (
	DatePatterns = []string{
		"date", "transaction date", "posting date", "post date", "posted",
	}
	DescriptionPatterns = []string{
		"description", "merchant", "name", "payee", "memo", "details",
	}
	AmountPatterns = []string{
		"amount", "total", "net", "sum", "value",
	}
	DebitPatterns = []string{
		"debit", "withdrawal", "debits", "charge",
	}
	CreditPatterns = []string{
		"credit", "deposit", "credits",
	}
	CategoryPatterns = []string{
		"category", "type", "classification",
	}
)

// Resolve returns the original-cased header that best matches the given
// patterns. An exact case-insensitive match wins immediately, scanning
// patterns in the caller-supplied priority order. Otherwise the first
// header (in header order) whose lowercase form contains a pattern wins,
// again honoring pattern order. Ties within a pattern go to the first
// header encountered, not a best heuristic match.
func Resolve(headers, patterns []string) (string, bool) {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for _, p := range patterns {
		for i, l := range lowered {
			if l == p {
				return headers[i], true
			}
		}
	}

	for _, p := range patterns {
		for i, l := range lowered {
			if strings.Contains(l, p) {
				return headers[i], true
			}
		}
	}

	return "", false
}
