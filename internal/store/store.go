// Package store defines the persistence boundary for accounts, transactions,
// budgets, and goals. Two backends implement it: an embedded SQLite database
// for single-node deployments and Firestore for hosted ones.
package store

import (
	"context"
	"errors"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// DefaultHashWindow is how many recent transactions feed the duplicate
// detection set when the caller does not specify a window.
const DefaultHashWindow = 1000

// TxnFilter narrows ListTransactions. Zero values mean "no constraint";
// From/To are inclusive ISO dates.
type TxnFilter struct {
	AccountID string
	Category  string
	Type      domain.TxnType
	From      string
	To        string
	Limit     int
	Offset    int
}

// Store is the persistence contract shared by all backends. All methods are
// safe for concurrent use.
type Store interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	DeleteAccount(ctx context.Context, id string) error

	// InsertTransactions persists a batch, returning how many rows were
	// written. Rows whose import hash already exists for the account are
	// skipped, making re-imports safe even when the caller's hash window
	// missed them.
	InsertTransactions(ctx context.Context, txns []domain.Transaction) (int, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TxnFilter) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	// RecentImportHashes returns the import hashes of the most recent
	// transactions for an account, newest first, for pre-loading the
	// dedup set.
	RecentImportHashes(ctx context.Context, accountID string, limit int) ([]string, error)

	CreateBudget(ctx context.Context, budget *domain.Budget) error
	ListBudgets(ctx context.Context, month string) ([]domain.Budget, error)
	DeleteBudget(ctx context.Context, id string) error

	CreateGoal(ctx context.Context, goal *domain.Goal) error
	ListGoals(ctx context.Context) ([]domain.Goal, error)
	UpdateGoal(ctx context.Context, goal *domain.Goal) error
	DeleteGoal(ctx context.Context, id string) error

	Close() error
}
