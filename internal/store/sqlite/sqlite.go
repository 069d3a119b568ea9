// Package sqlite implements the store contract on an embedded SQLite
// database. The schema is created on open; no external migration step is
// needed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	institution TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id             TEXT PRIMARY KEY,
	account_id     TEXT NOT NULL REFERENCES accounts(id),
	date           TEXT NOT NULL,
	merchant_raw   TEXT NOT NULL DEFAULT '',
	merchant_clean TEXT NOT NULL DEFAULT '',
	amount         REAL NOT NULL,
	type           TEXT NOT NULL,
	category       TEXT NOT NULL,
	import_hash    TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_txn_account_date ON transactions(account_id, date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_txn_account_hash ON transactions(account_id, import_hash);

CREATE TABLE IF NOT EXISTS budgets (
	id           TEXT PRIMARY KEY,
	category     TEXT NOT NULL,
	month        TEXT NOT NULL,
	limit_amount REAL NOT NULL,
	UNIQUE(category, month)
);

CREATE TABLE IF NOT EXISTS goals (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	target      REAL NOT NULL,
	saved       REAL NOT NULL DEFAULT 0,
	target_date TEXT NOT NULL DEFAULT ''
);
`

// Store is the SQLite-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if necessary) the database at path. Use ":memory:"
// for an ephemeral database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %q: %w", path, err)
	}

	// modernc.org/sqlite serializes access per connection; a single
	// connection avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, institution, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		account.ID, account.Name, account.Institution, string(account.Type),
		account.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert account %s: %w", account.ID, err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, institution, type, created_at FROM accounts WHERE id = ?`, id)

	var account domain.Account
	var createdAt string
	err := row.Scan(&account.ID, &account.Name, &account.Institution, &account.Type, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", id, err)
	}
	account.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &account, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, institution, type, created_at FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		var createdAt string
		if err := rows.Scan(&account.ID, &account.Name, &account.Institution, &account.Type, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		account.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete of account %s: %w", id, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transactions of account %s: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) InsertTransactions(ctx context.Context, txns []domain.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions
			(id, account_id, date, merchant_raw, merchant_clean, amount, type, category, import_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, import_hash) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range txns {
		txn := &txns[i]
		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = time.Now().UTC()
		}
		if err := txn.Validate(); err != nil {
			return 0, fmt.Errorf("invalid transaction at index %d: %w", i, err)
		}

		result, err := stmt.ExecContext(ctx,
			txn.ID, txn.AccountID, txn.Date, txn.MerchantRaw, txn.MerchantClean,
			txn.Amount, string(txn.Type), txn.Category, txn.ImportHash,
			txn.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit insert: %w", err)
	}
	return inserted, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, date, merchant_raw, merchant_clean, amount, type, category, import_hash, created_at
		FROM transactions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
		}
		return nil, store.ErrNotFound
	}
	return scanTransaction(rows)
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TxnFilter) ([]domain.Transaction, error) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		conditions = append(conditions, cond)
		args = append(args, arg)
	}
	if filter.AccountID != "" {
		add("account_id = ?", filter.AccountID)
	}
	if filter.Category != "" {
		add("category = ?", filter.Category)
	}
	if filter.Type != "" {
		add("type = ?", string(filter.Type))
	}
	if filter.From != "" {
		add("date >= ?", filter.From)
	}
	if filter.To != "" {
		add("date <= ?", filter.To)
	}

	query := `SELECT id, account_id, date, merchant_raw, merchant_clean, amount, type, category, import_hash, created_at
		FROM transactions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

func scanTransaction(rows *sql.Rows) (*domain.Transaction, error) {
	var txn domain.Transaction
	var createdAt string
	err := rows.Scan(&txn.ID, &txn.AccountID, &txn.Date, &txn.MerchantRaw, &txn.MerchantClean,
		&txn.Amount, &txn.Type, &txn.Category, &txn.ImportHash, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	txn.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &txn, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction %s: %w", txn.ID, err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET date = ?, merchant_raw = ?, merchant_clean = ?, amount = ?, type = ?, category = ?
		WHERE id = ?`,
		txn.Date, txn.MerchantRaw, txn.MerchantClean, txn.Amount, string(txn.Type), txn.Category, txn.ID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RecentImportHashes(ctx context.Context, accountID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = store.DefaultHashWindow
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT import_hash FROM transactions
		WHERE account_id = ? AND import_hash != ''
		ORDER BY date DESC, created_at DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load import hashes for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan import hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func (s *Store) CreateBudget(ctx context.Context, budget *domain.Budget) error {
	if err := budget.Validate(); err != nil {
		return fmt.Errorf("invalid budget: %w", err)
	}
	if budget.ID == "" {
		budget.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO budgets (id, category, month, limit_amount) VALUES (?, ?, ?, ?)`,
		budget.ID, budget.Category, budget.Month, budget.Limit)
	if err != nil {
		return fmt.Errorf("failed to insert budget %s/%s: %w", budget.Category, budget.Month, err)
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context, month string) ([]domain.Budget, error) {
	query := `SELECT id, category, month, limit_amount FROM budgets`
	var args []interface{}
	if month != "" {
		query += ` WHERE month = ?`
		args = append(args, month)
	}
	query += ` ORDER BY month, category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []domain.Budget
	for rows.Next() {
		var b domain.Budget
		if err := rows.Scan(&b.ID, &b.Category, &b.Month, &b.Limit); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateGoal(ctx context.Context, goal *domain.Goal) error {
	if err := goal.Validate(); err != nil {
		return fmt.Errorf("invalid goal: %w", err)
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, name, target, saved, target_date) VALUES (?, ?, ?, ?, ?)`,
		goal.ID, goal.Name, goal.Target, goal.Saved, goal.TargetDate)
	if err != nil {
		return fmt.Errorf("failed to insert goal %s: %w", goal.Name, err)
	}
	return nil
}

func (s *Store) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, target, saved, target_date FROM goals ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		var g domain.Goal
		if err := rows.Scan(&g.ID, &g.Name, &g.Target, &g.Saved, &g.TargetDate); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (s *Store) UpdateGoal(ctx context.Context, goal *domain.Goal) error {
	if err := goal.Validate(); err != nil {
		return fmt.Errorf("invalid goal %s: %w", goal.ID, err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE goals SET name = ?, target = ?, saved = ?, target_date = ? WHERE id = ?`,
		goal.Name, goal.Target, goal.Saved, goal.TargetDate, goal.ID)
	if err != nil {
		return fmt.Errorf("failed to update goal %s: %w", goal.ID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete goal %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
