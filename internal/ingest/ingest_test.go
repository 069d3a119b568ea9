package ingest

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/fingerprint"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/format"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/normalize"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/rules"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     Kind
	}{
		{"csv extension", "statement.csv", "Date,Amount\n", KindCSV},
		{"xlsx extension", "export.xlsx", "", KindSpreadsheet},
		{"xls extension", "export.XLS", "", KindSpreadsheet},
		{"ofx extension", "download.ofx", "", KindOFX},
		{"qfx extension", "download.QFX", "", KindOFX},
		{"zip magic without extension", "upload", "PK\x03\x04rest", KindSpreadsheet},
		{"ofx content without extension", "upload", "OFXHEADER:100\n", KindOFX},
		{"plain text fallback", "upload", "Date,Amount\n1,2\n", KindCSV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectKind(tt.filename, []byte(tt.content)); got != tt.want {
				t.Errorf("DetectKind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func tenRowCSV() []byte {
	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "2024-03-%02d,MERCHANT %d,-%d.50\n", i, i, i*10)
	}
	return []byte(b.String())
}

func TestImportCSV(t *testing.T) {
	p := New(nil)

	result, err := p.Import(tenRowCSV(), KindCSV, "acc-1", fingerprint.NewSet(nil))
	require.NoError(t, err)

	assert.Equal(t, format.Generic, result.Format)
	assert.Equal(t, 10, result.TotalRows)
	assert.Equal(t, 0, result.DuplicateCount)
	require.Len(t, result.Accepted, 10)

	for _, txn := range result.Accepted {
		assert.NotEmpty(t, txn.ID)
		assert.NotEmpty(t, txn.ImportHash)
		assert.Equal(t, "acc-1", txn.AccountID)
		require.NoError(t, txn.Validate())
	}
}

func TestImportReimportIsFullyDeduplicated(t *testing.T) {
	p := New(nil)
	existing := fingerprint.NewSet(nil)

	first, err := p.Import(tenRowCSV(), KindCSV, "acc-1", existing)
	require.NoError(t, err)
	require.Len(t, first.Accepted, 10)

	second, err := p.Import(tenRowCSV(), KindCSV, "acc-1", existing)
	require.NoError(t, err)
	assert.Len(t, second.Accepted, 0)
	assert.Equal(t, 10, second.DuplicateCount)
}

func TestImportDropsRowsWithUnparseableDates(t *testing.T) {
	p := New(nil)
	csv := "Date,Description,Amount\n" +
		"2024-03-04,GOOD ONE,-10.00\n" +
		"Pending,NOT POSTED YET,-5.00\n" +
		"2024-03-05,GOOD TWO,-12.00\n"

	result, err := p.Import([]byte(csv), KindCSV, "acc-1", fingerprint.NewSet(nil))
	require.NoError(t, err)
	require.Len(t, result.Accepted, 2)

	// Every accepted transaction must satisfy storage validation, so a
	// pending row can never fail the batch insert for the good rows.
	for _, txn := range result.Accepted {
		require.NoError(t, txn.Validate())
	}
	assert.Equal(t, "GOOD ONE", result.Accepted[0].MerchantRaw)
	assert.Equal(t, "GOOD TWO", result.Accepted[1].MerchantRaw)
}

func TestImportAppliesRules(t *testing.T) {
	engine, err := rules.NewEngine([]byte(`
rules:
  - name: "merchant-3"
    pattern: "merchant 3"
    match_type: "contains"
    priority: 100
    category: "groceries"
`))
	require.NoError(t, err)

	p := New(engine)
	result, err := p.Import(tenRowCSV(), KindCSV, "acc-1", fingerprint.NewSet(nil))
	require.NoError(t, err)

	var found bool
	for _, txn := range result.Accepted {
		if txn.MerchantRaw == "MERCHANT 3" {
			found = true
			assert.Equal(t, "groceries", txn.Category)
		}
	}
	assert.True(t, found, "expected MERCHANT 3 in accepted batch")
}

func TestImportPropagatesNoTransactions(t *testing.T) {
	content := []byte("Date,Description,Amount\n,,\n,,\n")

	p := New(nil)
	_, err := p.Import(content, KindCSV, "acc-1", fingerprint.NewSet(nil))
	require.Error(t, err)

	var noTxns *normalize.ErrNoTransactions
	require.True(t, errors.As(err, &noTxns))
	assert.Equal(t, []string{"Date", "Description", "Amount"}, noTxns.Headers)
}

func TestImportUnknownKind(t *testing.T) {
	p := New(nil)
	_, err := p.Import(nil, Kind("pdf"), "acc-1", nil)
	require.Error(t, err)
}

func TestImportMalformedSpreadsheet(t *testing.T) {
	p := New(nil)
	_, err := p.Import([]byte("definitely not a zip"), KindSpreadsheet, "acc-1", nil)
	require.Error(t, err)
}
