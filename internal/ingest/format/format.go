// Package format classifies header sets into known bank export layouts.
package format

import "strings"

// ID identifies a recognized bank export layout.
type ID string

const (
	Abound  ID = "abound"
	Amex    ID = "amex"
	USAA    ID = "usaa"
	PayPal  ID = "paypal"
	Generic ID = "generic"
)

// Detect classifies an ordered header list into one of the known layouts,
// falling back to Generic. Detection tests substring containment against
// the lowercased, pipe-joined header blob. Rule order is significant: a
// header set can satisfy several signatures at once (most exports contain
// "date"), so the more specific signatures are evaluated first and the
// first match wins. Never fails.
func Detect(headers []string) ID {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}
	blob := strings.Join(lowered, "|")

	switch {
	case strings.Contains(blob, "post date") &&
		strings.Contains(blob, "debit") &&
		strings.Contains(blob, "credit"):
		return Abound
	case strings.Contains(blob, "extended details") ||
		strings.Contains(blob, "appears on your statement as"):
		return Amex
	case strings.Contains(blob, "original description") &&
		strings.Contains(blob, "category"):
		return USAA
	case strings.Contains(blob, "date") &&
		strings.Contains(blob, "name") &&
		strings.Contains(blob, "net"):
		return PayPal
	default:
		return Generic
	}
}
