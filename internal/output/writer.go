// Package output serializes import results to JSON, for running the CLI
// without a database.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
)

// Export is the file format produced by the import CLI's JSON mode.
type Export struct {
	Accounts     []domain.Account     `json:"accounts"`
	Transactions []domain.Transaction `json:"transactions"`
}

// WriteOptions configures how an export is written.
type WriteOptions struct {
	MergeMode bool   // load the existing file and merge into it
	FilePath  string // output path (empty = stdout)
}

// Write serializes the export as indented JSON.
func Write(export *Export, w io.Writer) error {
	if export == nil {
		return fmt.Errorf("export cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode export as JSON: %w", err)
	}
	return nil
}

// WriteToFile writes the export to a file or stdout based on options.
func WriteToFile(export *Export, opts WriteOptions) (err error) {
	if export == nil {
		return fmt.Errorf("export cannot be nil")
	}

	if opts.MergeMode && opts.FilePath != "" {
		existing, loadErr := Load(opts.FilePath)
		if loadErr != nil {
			if !os.IsNotExist(loadErr) {
				return fmt.Errorf("failed to load existing export for merge: %w", loadErr)
			}
			fmt.Fprintf(os.Stderr, "Warning: merge mode requested but %s does not exist, creating new file\n", opts.FilePath)
		} else {
			Merge(existing, export)
			export = existing
		}
	}

	if opts.FilePath == "" {
		return Write(export, os.Stdout)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = Write(export, f); err != nil {
		return fmt.Errorf("failed to write export to %s: %w", opts.FilePath, err)
	}
	return nil
}

// Load reads an existing export file for merge mode. A missing file is
// returned as the bare os error so callers can check os.IsNotExist.
func Load(filePath string) (*Export, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var export Export
	if err := json.NewDecoder(f).Decode(&export); err != nil {
		return nil, fmt.Errorf("failed to decode export JSON: %w", err)
	}
	return &export, nil
}

// Merge folds source into target. Accounts merge by ID; transactions merge
// by (account, import hash), so re-merging the same import is a no-op.
func Merge(target, source *Export) {
	accountIDs := make(map[string]struct{}, len(target.Accounts))
	for _, account := range target.Accounts {
		accountIDs[account.ID] = struct{}{}
	}
	for _, account := range source.Accounts {
		if _, ok := accountIDs[account.ID]; ok {
			continue
		}
		accountIDs[account.ID] = struct{}{}
		target.Accounts = append(target.Accounts, account)
	}

	seen := make(map[string]struct{}, len(target.Transactions))
	for _, txn := range target.Transactions {
		seen[txn.AccountID+"|"+txn.ImportHash] = struct{}{}
	}
	for _, txn := range source.Transactions {
		key := txn.AccountID + "|" + txn.ImportHash
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		target.Transactions = append(target.Transactions, txn)
	}
}
