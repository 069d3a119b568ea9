// Package normalize converts raw tabular rows into canonical transactions.
// Extraction rules are dispatched per detected format; rows that cannot be
// extracted are dropped silently, and only a fully empty result from a
// non-empty input is reported as an error.
package normalize

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/amount"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/columns"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/dates"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/format"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/tabular"
)

// ErrNoTransactions reports that a non-empty input produced zero extractable
// transactions. It carries the detected headers so callers can show the user
// which columns were found.
type ErrNoTransactions struct {
	Headers []string
}

func (e *ErrNoTransactions) Error() string {
	return fmt.Sprintf("no valid transactions could be extracted (found columns: %s)",
		strings.Join(e.Headers, ", "))
}

// extractor pulls a transaction draft out of one raw row, or nil to reject it.
type extractor func(row tabular.RawRow) *domain.Transaction

// Batch normalizes a parsed table into canonical transactions for the given
// account. The extraction rule is chosen by header signature. Returns
// *ErrNoTransactions when rows is non-empty but nothing could be extracted.
func Batch(rows []tabular.RawRow, headers []string, accountID string) ([]domain.Transaction, error) {
	extract := extractorFor(format.Detect(headers), headers)

	txns := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txn := extract(row)
		if txn == nil {
			continue
		}
		if txn.Date == "" || txn.Amount == 0 || math.IsNaN(txn.Amount) {
			continue
		}
		// Stored dates must be ISO; a row whose date cannot be
		// normalized is dropped like any other noise row.
		normalized, ok := dates.Normalize(txn.Date)
		if !ok {
			continue
		}
		txn.Date = normalized
		if txn.MerchantClean == "" {
			txn.MerchantClean = CleanMerchant(txn.MerchantRaw)
		}
		txn.AccountID = accountID
		txn.Type = deriveType(txn.Amount, txn.Category)
		if txn.Category == "" {
			txn.Category = domain.DefaultCategory
		}
		txns = append(txns, *txn)
	}

	if len(txns) == 0 && len(rows) > 0 {
		return nil, &ErrNoTransactions{Headers: headers}
	}
	return txns, nil
}

func extractorFor(f format.ID, headers []string) extractor {
	switch f {
	case format.Abound:
		return extractAbound
	case format.Amex:
		return extractAmex
	case format.USAA:
		return extractUSAA
	case format.PayPal:
		return extractPayPal
	default:
		return genericExtractor(headers)
	}
}

// extractAbound reads separate debit and credit columns. Credit is inflow,
// so the signed amount is credit minus debit.
func extractAbound(row tabular.RawRow) *domain.Transaction {
	debit := amount.Parse(field(row, "Debit"))
	credit := amount.Parse(field(row, "Credit"))
	if debit == 0 && credit == 0 {
		return nil
	}
	return &domain.Transaction{
		Date:        field(row, "Post Date", "Date"),
		MerchantRaw: field(row, "Description"),
		Amount:      credit - debit,
	}
}

// extractAmex negates the raw amount: AMEX exports represent charges as
// positive numbers, and a charge must land as a negative expense.
func extractAmex(row tabular.RawRow) *domain.Transaction {
	raw := field(row, "Amount")
	if raw == "" {
		return nil
	}
	return &domain.Transaction{
		Date:        field(row, "Date"),
		MerchantRaw: field(row, "Description", "Appears On Your Statement As"),
		Amount:      -amount.Parse(raw),
		Category:    field(row, "Category"),
	}
}

// extractUSAA uses the amount column as-is; USAA already signs outflows
// negative.
func extractUSAA(row tabular.RawRow) *domain.Transaction {
	return &domain.Transaction{
		Date:        field(row, "Date"),
		MerchantRaw: field(row, "Original Description", "Description"),
		Amount:      amount.Parse(field(row, "Amount")),
		Category:    field(row, "Category"),
	}
}

func extractPayPal(row tabular.RawRow) *domain.Transaction {
	if !hasField(row, "Date") || !hasField(row, "Net") {
		return nil
	}
	merchant := field(row, "Name")
	if merchant == "" {
		merchant = "PayPal"
	}
	return &domain.Transaction{
		Date:        field(row, "Date"),
		MerchantRaw: merchant,
		Amount:      amount.Parse(field(row, "Net")),
	}
}

// genericExtractor resolves the relevant columns once per batch and reads
// every row through them. A single amount-like column wins when present and
// non-empty; otherwise the amount comes from separate debit/credit columns.
func genericExtractor(headers []string) extractor {
	dateCol, _ := columns.Resolve(headers, columns.DatePatterns)
	descCol, _ := columns.Resolve(headers, columns.DescriptionPatterns)
	categoryCol, _ := columns.Resolve(headers, columns.CategoryPatterns)
	amountCol, hasAmount := columns.Resolve(headers, columns.AmountPatterns)
	debitCol, hasDebit := columns.Resolve(headers, columns.DebitPatterns)
	creditCol, hasCredit := columns.Resolve(headers, columns.CreditPatterns)

	return func(row tabular.RawRow) *domain.Transaction {
		var amt float64
		switch {
		case hasAmount && strings.TrimSpace(row[amountCol]) != "":
			amt = amount.Parse(row[amountCol])
		case hasDebit || hasCredit:
			amt = amount.Parse(row[creditCol]) - amount.Parse(row[debitCol])
		default:
			return nil
		}
		if amt == 0 || math.IsNaN(amt) {
			return nil
		}
		return &domain.Transaction{
			Date:        strings.TrimSpace(row[dateCol]),
			MerchantRaw: strings.TrimSpace(row[descCol]),
			Amount:      amt,
			Category:    strings.TrimSpace(row[categoryCol]),
		}
	}
}

// deriveType maps amount sign to income/expense unless the source category
// names a transfer or refund.
func deriveType(amt float64, category string) domain.TxnType {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "transfer"):
		return domain.TxnTransfer
	case strings.Contains(c, "refund"):
		return domain.TxnRefund
	}
	return domain.DeriveType(amt)
}

var merchantCleaner = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CleanMerchant strips diacritics and collapses runs of whitespace, giving a
// display-friendly merchant label. The raw description is kept separately for
// fingerprinting.
func CleanMerchant(raw string) string {
	cleaned, _, err := transform.String(merchantCleaner, raw)
	if err != nil {
		cleaned = raw
	}
	return strings.Join(strings.Fields(cleaned), " ")
}

// field returns the first non-empty trimmed cell among the named columns.
// Column names match case-insensitively; exact matches are tried first.
func field(row tabular.RawRow, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(row[name]); v != "" {
			return v
		}
	}
	for _, name := range names {
		for k, v := range row {
			if strings.EqualFold(k, name) {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func hasField(row tabular.RawRow, name string) bool {
	if _, ok := row[name]; ok {
		return true
	}
	for k := range row {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
