package budget_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/fingerprint"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/reports"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/rules"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/scanner"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store/sqlite"
)

const usaaCSV = `Date,Description,Original Description,Category,Amount,Status
2025-01-02,STARBUCKS #9823,STARBUCKS STORE 9823 AUSTIN TX,Dining,-6.40,Posted
2025-01-03,PAYROLL ACME CORP,ACME CORP DIRECT DEP,Salary,2500.00,Posted
2025-01-04,TRANSFER TO SAVINGS,ONLINE TRANSFER,Transfer,-500.00,Posted
2025-01-05,NETFLIX.COM,NETFLIX SUBSCRIPTION,,-15.49,Posted
`

const genericCSV = `Posting Date,Payee,Withdrawal,Deposit
2025-01-10,WHOLE FOODS MARKET,82.17,
2025-01-11,ATM WITHDRAWAL,60.00,
`

// TestEndToEndImport drives the full flow the CLI uses: scan a statement
// directory, run each file through the pipeline, persist into SQLite, then
// aggregate reports over what was stored.
func TestEndToEndImport(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	usaaDir := filepath.Join(tmpDir, "usaa", "checking")
	require.NoError(t, os.MkdirAll(usaaDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(usaaDir, "january.csv"), []byte(usaaCSV), 0644))

	chaseDir := filepath.Join(tmpDir, "chase", "checking")
	require.NoError(t, os.MkdirAll(chaseDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(chaseDir, "export.csv"), []byte(genericCSV), 0644))

	files, err := scanner.New(tmpDir).Scan()
	require.NoError(t, err)
	require.Len(t, files, 2)

	engine, err := rules.LoadEmbedded()
	require.NoError(t, err)
	pipeline := ingest.New(engine)

	st, err := sqlite.Open(filepath.Join(tmpDir, "budget.db"))
	require.NoError(t, err)
	defer st.Close()

	importAll := func() (accepted, duplicates int) {
		for _, file := range files {
			account := &domain.Account{
				Name:        file.Institution + " " + file.AccountHint,
				Institution: file.Institution,
				Type:        domain.AccountTypeChecking,
			}
			accounts, err := st.ListAccounts(ctx)
			require.NoError(t, err)
			accountID := ""
			for _, existing := range accounts {
				if existing.Name == account.Name {
					accountID = existing.ID
				}
			}
			if accountID == "" {
				require.NoError(t, st.CreateAccount(ctx, account))
				accountID = account.ID
			}

			hashes, err := st.RecentImportHashes(ctx, accountID, store.DefaultHashWindow)
			require.NoError(t, err)

			content, err := os.ReadFile(file.Path)
			require.NoError(t, err)
			kind := ingest.DetectKind(filepath.Base(file.Path), content)

			result, err := pipeline.Import(content, kind, accountID, fingerprint.NewSet(hashes))
			require.NoError(t, err)

			written, err := st.InsertTransactions(ctx, result.Accepted)
			require.NoError(t, err)
			accepted += written
			duplicates += result.DuplicateCount
		}
		return accepted, duplicates
	}

	accepted, duplicates := importAll()
	assert.Equal(t, 6, accepted)
	assert.Equal(t, 0, duplicates)

	// Running the same import again must change nothing.
	accepted, duplicates = importAll()
	assert.Equal(t, 0, accepted)
	assert.Equal(t, 6, duplicates)

	txns, err := st.ListTransactions(ctx, store.TxnFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 6)

	byMerchant := make(map[string]domain.Transaction)
	for _, txn := range txns {
		byMerchant[txn.MerchantRaw] = txn
	}

	// Source categories survive; the rules engine fills only the gaps.
	// The USAA layout keeps the bank's original description as the raw
	// merchant string.
	assert.Equal(t, "Dining", byMerchant["STARBUCKS STORE 9823 AUSTIN TX"].Category)
	assert.Equal(t, "subscriptions", byMerchant["NETFLIX SUBSCRIPTION"].Category)
	assert.Equal(t, domain.TxnTransfer, byMerchant["ONLINE TRANSFER"].Type)
	assert.Equal(t, domain.TxnIncome, byMerchant["ACME CORP DIRECT DEP"].Type)

	// Withdrawal-only rows come out negative.
	assert.Equal(t, -82.17, byMerchant["WHOLE FOODS MARKET"].Amount)

	flows := reports.CashFlow(txns)
	require.Len(t, flows, 1)
	assert.Equal(t, "2025-01", flows[0].Month)
	assert.Equal(t, 2500.0, flows[0].Income)
	assert.InDelta(t, 164.06, flows[0].Expense, 0.001, "transfers are not spending")

	spending := reports.SpendingByCategory(txns)
	require.NotEmpty(t, spending)
	assert.Equal(t, "groceries", spending[0].Category, "largest category first")
}

// TestImportFailureSurfacesColumns checks that a statement whose rows are
// all unusable fails loudly instead of importing nothing.
func TestImportFailureSurfacesColumns(t *testing.T) {
	engine, err := rules.LoadEmbedded()
	require.NoError(t, err)

	content := []byte("Date,Description,Amount\n,,\n,,\n")
	_, err = ingest.New(engine).Import(content, ingest.KindCSV, "acc-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid transactions could be extracted")
	assert.Contains(t, err.Error(), "Description")
}
