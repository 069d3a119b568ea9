// Package fingerprint computes stable import hashes and filters duplicate
// transactions against a caller-owned hash set.
package fingerprint

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
)

// Compute derives the import hash for a transaction from its date, amount,
// and raw merchant string. The hash is a 32-bit signed rolling polynomial
// (h = h*31 + code unit, wrapping on overflow) over the lowercased, trimmed
// "date|amount|merchant" string, encoded in base-36. The algorithm is fixed:
// stored hashes from earlier imports must keep matching, so the wraparound
// semantics and the amount's shortest-form decimal rendering must not change.
func Compute(date string, amount float64, merchantRaw string) string {
	amt := strconv.FormatFloat(amount, 'f', -1, 64)
	input := strings.ToLower(strings.TrimSpace(date + "|" + amt + "|" + merchantRaw))

	var h int32
	for _, u := range utf16.Encode([]rune(input)) {
		h = h*31 + int32(u)
	}

	return strconv.FormatInt(int64(h), 36)
}

// Set tracks import hashes already present for an account. Each import call
// must own its own Set instance; sharing one across concurrent imports would
// break the at-most-once-per-fingerprint guarantee.
type Set map[string]struct{}

// NewSet builds a Set from pre-loaded hash values.
func NewSet(hashes []string) Set {
	s := make(Set, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}
	return s
}

// Has reports whether a hash is already present.
func (s Set) Has(hash string) bool {
	_, ok := s[hash]
	return ok
}

// Add records a hash.
func (s Set) Add(hash string) {
	s[hash] = struct{}{}
}

// Result is the outcome of deduplicating a batch.
type Result struct {
	Accepted       []domain.Transaction
	DuplicateCount int
}

// Dedupe computes each transaction's import hash and drops those whose hash
// is already in the set. Accepted hashes are added to the set as they pass,
// so duplicates within the batch itself are also caught. Two transactions
// with identical (date, amount, merchant) always collide.
func Dedupe(txns []domain.Transaction, existing Set) Result {
	if existing == nil {
		existing = make(Set)
	}

	result := Result{Accepted: make([]domain.Transaction, 0, len(txns))}
	for _, txn := range txns {
		if txn.ImportHash == "" {
			txn.ImportHash = Compute(txn.Date, txn.Amount, txn.MerchantRaw)
		}
		if existing.Has(txn.ImportHash) {
			result.DuplicateCount++
			continue
		}
		existing.Add(txn.ImportHash)
		result.Accepted = append(result.Accepted, txn)
	}
	return result
}
