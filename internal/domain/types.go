// Package domain defines the core entities shared by the ingestion pipeline,
// the entity store, and the HTTP API.
package domain

import (
	"fmt"
	"math"
	"time"
)

// TxnType classifies a transaction by flow direction.
// Use ValidateTxnType to ensure validity before use.
type TxnType string

const (
	TxnIncome   TxnType = "income"
	TxnExpense  TxnType = "expense"
	TxnTransfer TxnType = "transfer"
	TxnRefund   TxnType = "refund"
)

// AccountType represents the account type enum.
// Use ValidateAccountType to ensure validity before use.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeInvestment AccountType = "investment"
)

// DefaultCategory is assigned when no category can be resolved from the
// source file or the rules engine.
const DefaultCategory = "uncategorized"

var (
	validTxnTypes = map[TxnType]struct{}{
		TxnIncome: {}, TxnExpense: {}, TxnTransfer: {}, TxnRefund: {},
	}

	validAccountTypes = map[AccountType]struct{}{
		AccountTypeChecking: {}, AccountTypeSavings: {},
		AccountTypeCredit: {}, AccountTypeInvestment: {},
	}
)

// Transaction is the canonical, storage-ready transaction record.
// Sign convention:
//
//	Positive = money in (deposits, refunds, salary)
//	Negative = money out (charges, withdrawals)
//
// Every source format is normalized to this convention during ingestion,
// regardless of how the file represents amounts.
type Transaction struct {
	ID            string  `json:"id"`
	AccountID     string  `json:"account_id"`
	Date          string  `json:"date"` // ISO format YYYY-MM-DD
	MerchantRaw   string  `json:"merchant_raw"`
	MerchantClean string  `json:"merchant_clean"`
	Amount        float64 `json:"amount"`
	Type          TxnType `json:"type"`
	Category      string  `json:"category"`
	// ImportHash is derived from (date, amount, merchant_raw) and is the
	// idempotency key for duplicate detection across imports. Never
	// user-editable.
	ImportHash string    `json:"import_hash"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// Validate checks the invariants a transaction must satisfy before storage.
func (t *Transaction) Validate() error {
	if t.AccountID == "" {
		return fmt.Errorf("transaction account ID cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	if t.Amount == 0 || math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		return fmt.Errorf("transaction amount must be a non-zero finite number, got %v", t.Amount)
	}
	if !ValidateTxnType(t.Type) {
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}
	if t.Category == "" {
		return fmt.Errorf("transaction category cannot be empty (use %q)", DefaultCategory)
	}
	return nil
}

// DeriveType maps a signed amount to income/expense. Callers override the
// result when the source category forces transfer or refund.
func DeriveType(amount float64) TxnType {
	if amount > 0 {
		return TxnIncome
	}
	return TxnExpense
}

// Account is a destination for imported transactions.
type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Institution string      `json:"institution"`
	Type        AccountType `json:"type"`
	CreatedAt   time.Time   `json:"created_at,omitempty"`
}

// NewAccount creates a validated account.
func NewAccount(id, name, institution string, accountType AccountType) (*Account, error) {
	if id == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}
	if !ValidateAccountType(accountType) {
		return nil, fmt.Errorf("invalid account type: %s", accountType)
	}
	return &Account{
		ID:          id,
		Name:        name,
		Institution: institution,
		Type:        accountType,
	}, nil
}

// Budget is a monthly spending limit for a category.
type Budget struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Month    string  `json:"month"` // YYYY-MM
	Limit    float64 `json:"limit"`
}

// Validate checks budget invariants.
func (b *Budget) Validate() error {
	if b.Category == "" {
		return fmt.Errorf("budget category cannot be empty")
	}
	if _, err := time.Parse("2006-01", b.Month); err != nil {
		return fmt.Errorf("invalid budget month (expected YYYY-MM): %w", err)
	}
	if b.Limit <= 0 {
		return fmt.Errorf("budget limit must be positive, got %f", b.Limit)
	}
	return nil
}

// Goal is a savings target with an optional deadline.
type Goal struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Target     float64 `json:"target"`
	Saved      float64 `json:"saved"`
	TargetDate string  `json:"target_date,omitempty"` // YYYY-MM-DD
}

// Validate checks goal invariants.
func (g *Goal) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("goal name cannot be empty")
	}
	if g.Target <= 0 {
		return fmt.Errorf("goal target must be positive, got %f", g.Target)
	}
	if g.Saved < 0 {
		return fmt.Errorf("goal saved amount cannot be negative, got %f", g.Saved)
	}
	if g.TargetDate != "" {
		if _, err := time.Parse("2006-01-02", g.TargetDate); err != nil {
			return fmt.Errorf("invalid goal target date (expected YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

// ValidateTxnType checks if the transaction type is valid.
func ValidateTxnType(t TxnType) bool {
	_, ok := validTxnTypes[t]
	return ok
}

// ValidateAccountType checks if the account type is valid.
func ValidateAccountType(t AccountType) bool {
	_, ok := validAccountTypes[t]
	return ok
}
