// Package ingest runs the full statement import pipeline: tabular parsing,
// format detection, per-format normalization, rule-based categorization,
// fingerprinting, and duplicate elimination. Each call is synchronous and
// owns its hash set exclusively; concurrent imports need separate sets.
package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/fingerprint"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/format"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/normalize"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/tabular"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/parsers/ofx"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/rules"
)

// Kind names the physical shape of an uploaded statement file.
type Kind string

const (
	KindCSV         Kind = "csv"
	KindSpreadsheet Kind = "spreadsheet"
	KindOFX         Kind = "ofx"
)

// FormatOFX marks results that came through the OFX parser rather than the
// header-signature detector.
const FormatOFX format.ID = "ofx"

// xlsxMagic is the ZIP local-file-header signature; XLSX files are ZIP
// containers.
var xlsxMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// DetectKind picks the file kind from the filename extension, falling back
// to content sniffing when the extension is missing or unknown.
func DetectKind(filename string, content []byte) Kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return KindSpreadsheet
	case ".ofx", ".qfx":
		return KindOFX
	case ".csv", ".txt":
		return KindCSV
	}
	if bytes.HasPrefix(content, xlsxMagic) {
		return KindSpreadsheet
	}
	if ofx.Sniff(content) {
		return KindOFX
	}
	return KindCSV
}

// Result summarizes one import run.
type Result struct {
	Accepted       []domain.Transaction `json:"accepted"`
	DuplicateCount int                  `json:"duplicate_count"`
	TotalRows      int                  `json:"total_rows"`
	Format         format.ID            `json:"format"`
	Headers        []string             `json:"headers,omitempty"`
}

// Pipeline is a reusable import pipeline. A nil rules engine disables
// categorization; everything else still runs.
type Pipeline struct {
	engine *rules.Engine
}

// New creates a pipeline with the given rules engine (may be nil).
func New(engine *rules.Engine) *Pipeline {
	return &Pipeline{engine: engine}
}

// Import runs the pipeline over raw file content. The existing set carries
// the import hashes already stored for the target account; it is mutated as
// accepted transactions are added, so callers can chain batches through one
// set within a single import call.
func (p *Pipeline) Import(content []byte, kind Kind, accountID string, existing fingerprint.Set) (*Result, error) {
	switch kind {
	case KindOFX:
		return p.importOFX(content, accountID, existing)
	case KindCSV, KindSpreadsheet:
		return p.importTabular(content, kind == KindSpreadsheet, accountID, existing)
	default:
		return nil, fmt.Errorf("unknown file kind %q", kind)
	}
}

func (p *Pipeline) importTabular(content []byte, spreadsheet bool, accountID string, existing fingerprint.Set) (*Result, error) {
	table, err := tabular.Parse(content, spreadsheet)
	if err != nil {
		return nil, err
	}

	detected := format.Detect(table.Headers)

	// Every data row being filtered as noise is a reportable failure, not an
	// empty success; only a file with no data rows at all imports as empty.
	if len(table.Rows) == 0 && table.SourceRows > 0 {
		return nil, &normalize.ErrNoTransactions{Headers: table.Headers}
	}

	txns, err := normalize.Batch(table.Rows, table.Headers, accountID)
	if err != nil {
		return nil, err
	}

	return p.finish(txns, existing, &Result{
		TotalRows: len(table.Rows),
		Format:    detected,
		Headers:   table.Headers,
	}), nil
}

func (p *Pipeline) importOFX(content []byte, accountID string, existing fingerprint.Set) (*Result, error) {
	stmt, err := ofx.Parse(content)
	if err != nil {
		return nil, err
	}

	txns := stmt.Transactions
	for i := range txns {
		txns[i].AccountID = accountID
		if txns[i].MerchantClean == "" {
			txns[i].MerchantClean = normalize.CleanMerchant(txns[i].MerchantRaw)
		}
	}

	return p.finish(txns, existing, &Result{
		TotalRows: len(txns),
		Format:    FormatOFX,
	}), nil
}

// finish applies categorization rules, dedupes, and stamps accepted
// transactions with fresh IDs.
func (p *Pipeline) finish(txns []domain.Transaction, existing fingerprint.Set, result *Result) *Result {
	if p.engine != nil {
		p.engine.Apply(txns)
	}

	deduped := fingerprint.Dedupe(txns, existing)
	for i := range deduped.Accepted {
		if deduped.Accepted[i].ID == "" {
			deduped.Accepted[i].ID = uuid.NewString()
		}
	}

	result.Accepted = deduped.Accepted
	result.DuplicateCount = deduped.DuplicateCount
	return result
}
