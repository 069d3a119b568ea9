// Package firestoredb implements the store contract on Google Cloud
// Firestore for hosted deployments. Collections are keyed by entity ID;
// listing uses indexed field filters, so composite indexes on
// (account_id, date) and (account_id, import_hash) must exist.
package firestoredb

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/google/uuid"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
)

const (
	accountsCollection     = "budget-accounts"
	transactionsCollection = "budget-transactions"
	budgetsCollection      = "budget-budgets"
	goalsCollection        = "budget-goals"
)

// Store is the Firestore-backed implementation of store.Store.
type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

// Open connects to the Firestore database of the given project. When
// credentialsFile is empty, Application Default Credentials are used.
func Open(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client for project %s: %w", projectID, err)
	}
	return &Store{client: client}, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// txnDoc is the Firestore document shape for a transaction. Field names
// match the JSON API surface so exports stay consistent across backends.
type txnDoc struct {
	ID            string    `firestore:"id"`
	AccountID     string    `firestore:"account_id"`
	Date          string    `firestore:"date"`
	MerchantRaw   string    `firestore:"merchant_raw"`
	MerchantClean string    `firestore:"merchant_clean"`
	Amount        float64   `firestore:"amount"`
	Type          string    `firestore:"type"`
	Category      string    `firestore:"category"`
	ImportHash    string    `firestore:"import_hash"`
	CreatedAt     time.Time `firestore:"created_at"`
}

func toTxnDoc(txn *domain.Transaction) txnDoc {
	return txnDoc{
		ID:            txn.ID,
		AccountID:     txn.AccountID,
		Date:          txn.Date,
		MerchantRaw:   txn.MerchantRaw,
		MerchantClean: txn.MerchantClean,
		Amount:        txn.Amount,
		Type:          string(txn.Type),
		Category:      txn.Category,
		ImportHash:    txn.ImportHash,
		CreatedAt:     txn.CreatedAt,
	}
}

func (d txnDoc) toDomain() domain.Transaction {
	return domain.Transaction{
		ID:            d.ID,
		AccountID:     d.AccountID,
		Date:          d.Date,
		MerchantRaw:   d.MerchantRaw,
		MerchantClean: d.MerchantClean,
		Amount:        d.Amount,
		Type:          domain.TxnType(d.Type),
		Category:      d.Category,
		ImportHash:    d.ImportHash,
		CreatedAt:     d.CreatedAt,
	}
}

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := s.client.Collection(accountsCollection).Doc(account.ID).Set(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", account.ID, err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	doc, err := s.client.Collection(accountsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", id, err)
	}

	var account domain.Account
	if err := doc.DataTo(&account); err != nil {
		return nil, fmt.Errorf("failed to parse account %s: %w", id, err)
	}
	return &account, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	iter := s.client.Collection(accountsCollection).OrderBy("CreatedAt", firestore.Asc).Documents(ctx)

	var accounts []domain.Account
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate accounts: %w", err)
		}

		var account domain.Account
		if err := doc.DataTo(&account); err != nil {
			return nil, fmt.Errorf("failed to parse account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.GetAccount(ctx, id); err != nil {
		return err
	}

	// Delete the account's transactions in batches before the account doc.
	txnsQuery := s.client.Collection(transactionsCollection).Where("account_id", "==", id)
	bw := s.client.BulkWriter(ctx)
	iter := txnsQuery.Documents(ctx)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate transactions of account %s: %w", id, err)
		}
		if _, err := bw.Delete(doc.Ref); err != nil {
			return fmt.Errorf("failed to queue delete for transaction %s: %w", doc.Ref.ID, err)
		}
	}
	bw.Flush()

	if _, err := s.client.Collection(accountsCollection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete account %s: %w", id, err)
	}
	return nil
}

func (s *Store) InsertTransactions(ctx context.Context, txns []domain.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}

	// Hashes already stored for the affected accounts, so re-imports that
	// slipped past the caller's hash window are still skipped.
	seen := make(map[string]struct{})
	for _, txn := range txns {
		existing, err := s.RecentImportHashes(ctx, txn.AccountID, store.DefaultHashWindow)
		if err != nil {
			return 0, err
		}
		for _, h := range existing {
			seen[txn.AccountID+"|"+h] = struct{}{}
		}
	}

	bw := s.client.BulkWriter(ctx)
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

		key := txn.AccountID + "|" + txn.ImportHash
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		ref := s.client.Collection(transactionsCollection).Doc(txn.ID)
		if _, err := bw.Set(ref, toTxnDoc(txn)); err != nil {
			return inserted, fmt.Errorf("failed to queue transaction %s: %w", txn.ID, err)
		}
		inserted++
	}
	bw.Flush()

	return inserted, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	doc, err := s.client.Collection(transactionsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}

	var d txnDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("failed to parse transaction %s: %w", id, err)
	}
	txn := d.toDomain()
	return &txn, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter store.TxnFilter) ([]domain.Transaction, error) {
	query := s.client.Collection(transactionsCollection).Query
	if filter.AccountID != "" {
		query = query.Where("account_id", "==", filter.AccountID)
	}
	if filter.Category != "" {
		query = query.Where("category", "==", filter.Category)
	}
	if filter.Type != "" {
		query = query.Where("type", "==", string(filter.Type))
	}
	if filter.From != "" {
		query = query.Where("date", ">=", filter.From)
	}
	if filter.To != "" {
		query = query.Where("date", "<=", filter.To)
	}
	query = query.OrderBy("date", firestore.Desc)
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}

	iter := query.Documents(ctx)
	var txns []domain.Transaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate transactions: %w", err)
		}

		var d txnDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to parse transaction: %w", err)
		}
		txns = append(txns, d.toDomain())
	}
	return txns, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction %s: %w", txn.ID, err)
	}

	ref := s.client.Collection(transactionsCollection).Doc(txn.ID)
	if _, err := ref.Get(ctx); status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", txn.ID, err)
	}

	if _, err := ref.Set(ctx, toTxnDoc(txn)); err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	ref := s.client.Collection(transactionsCollection).Doc(id)
	if _, err := ref.Get(ctx); status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", id, err)
	}

	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

func (s *Store) RecentImportHashes(ctx context.Context, accountID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = store.DefaultHashWindow
	}

	iter := s.client.Collection(transactionsCollection).
		Where("account_id", "==", accountID).
		OrderBy("date", firestore.Desc).
		Limit(limit).
		Select("import_hash").
		Documents(ctx)

	var hashes []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate import hashes for account %s: %w", accountID, err)
		}

		if v, err := doc.DataAt("import_hash"); err == nil {
			if h, ok := v.(string); ok && h != "" {
				hashes = append(hashes, h)
			}
		}
	}
	return hashes, nil
}

func (s *Store) CreateBudget(ctx context.Context, budget *domain.Budget) error {
	if err := budget.Validate(); err != nil {
		return fmt.Errorf("invalid budget: %w", err)
	}
	if budget.ID == "" {
		budget.ID = uuid.NewString()
	}

	// One budget per category+month; the deterministic doc ID enforces it.
	docID := budget.Category + "_" + budget.Month
	_, err := s.client.Collection(budgetsCollection).Doc(docID).Create(ctx, budget)
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("budget for %s/%s already exists", budget.Category, budget.Month)
	}
	if err != nil {
		return fmt.Errorf("failed to create budget %s/%s: %w", budget.Category, budget.Month, err)
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context, month string) ([]domain.Budget, error) {
	query := s.client.Collection(budgetsCollection).Query
	if month != "" {
		query = query.Where("Month", "==", month)
	}

	iter := query.Documents(ctx)
	var budgets []domain.Budget
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate budgets: %w", err)
		}

		var b domain.Budget
		if err := doc.DataTo(&b); err != nil {
			return nil, fmt.Errorf("failed to parse budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, nil
}

func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	iter := s.client.Collection(budgetsCollection).Where("ID", "==", id).Limit(1).Documents(ctx)
	doc, err := iter.Next()
	if err == iterator.Done {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find budget %s: %w", id, err)
	}

	if _, err := doc.Ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete budget %s: %w", id, err)
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
	if _, err := s.client.Collection(goalsCollection).Doc(goal.ID).Set(ctx, goal); err != nil {
		return fmt.Errorf("failed to create goal %s: %w", goal.Name, err)
	}
	return nil
}

func (s *Store) ListGoals(ctx context.Context) ([]domain.Goal, error) {
	iter := s.client.Collection(goalsCollection).Documents(ctx)

	var goals []domain.Goal
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate goals: %w", err)
		}

		var g domain.Goal
		if err := doc.DataTo(&g); err != nil {
			return nil, fmt.Errorf("failed to parse goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, nil
}

func (s *Store) UpdateGoal(ctx context.Context, goal *domain.Goal) error {
	if err := goal.Validate(); err != nil {
		return fmt.Errorf("invalid goal %s: %w", goal.ID, err)
	}

	ref := s.client.Collection(goalsCollection).Doc(goal.ID)
	if _, err := ref.Get(ctx); status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to load goal %s: %w", goal.ID, err)
	}

	if _, err := ref.Set(ctx, goal); err != nil {
		return fmt.Errorf("failed to update goal %s: %w", goal.ID, err)
	}
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, id string) error {
	ref := s.client.Collection(goalsCollection).Doc(id)
	if _, err := ref.Get(ctx); status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to load goal %s: %w", id, err)
	}

	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete goal %s: %w", id, err)
	}
	return nil
}
