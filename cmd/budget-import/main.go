package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeremy15n/ImproveBudget-sub000/internal/dedup"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/domain"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ingest/fingerprint"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/output"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/rules"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/scanner"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/store/sqlite"
	"github.com/jeremy15n/ImproveBudget-sub000/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	inputDir = flag.String("input", "", "Input directory containing statements (required)")
	dryRun   = flag.Bool("dry-run", false, "Show what would be imported without writing")
	verbose  = flag.Bool("verbose", false, "Show detailed import logs")

	dbFile     = flag.String("db", "", "SQLite database to import into")
	outputFile = flag.String("output", "", "Output JSON file (default: stdout, ignored with -db)")
	mergeMode  = flag.Bool("merge", false, "Merge with existing output file")

	rulesFile = flag.String("rules", "", "Category rules file (default: embedded rules)")
	stateFile = flag.String("state", "", "Deduplication state file for JSON mode (ignored with -db)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `budget-import - Bank statement importer

Usage:
  budget-import [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Import all statements into a local database
  budget-import -input ~/statements -db budget.db

  # Export parsed transactions as JSON instead
  budget-import -input ~/statements -output budget.json

  # Dry run with verbose output
  budget-import -input ~/statements -dry-run -verbose

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("budget-import version %s\n", version)
		os.Exit(0)
	}

	if *inputDir == "" {
		fmt.Fprintf(os.Stderr, "Error: -input flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if !*verbose {
		ui.Header("Importing Bank Statements")
		ui.Step(1, 3, "Scanning directory")
	} else {
		fmt.Fprintf(os.Stderr, "Scanning directory: %s\n", *inputDir)
	}

	files, err := scanner.New(*inputDir).Scan()
	if err != nil {
		return fmt.Errorf("failed to scan directory %s: %w", *inputDir, err)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Found %d statement files\n", len(files))
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "  - %s (institution: %s, account: %s)\n",
				f.Path, f.Institution, f.AccountHint)
		}
	} else {
		ui.Success(fmt.Sprintf("Found %d statement files", len(files)))
	}

	if *dryRun {
		fmt.Printf("Dry run complete. Would process %d files.\n", len(files))
		return nil
	}

	if len(files) == 0 {
		return fmt.Errorf("no statement files found in %s\n\nPlease check:\n  - Directory path is correct\n  - Files have supported extensions (.csv, .xlsx, .ofx, .qfx)\n  - You have read permissions on the directory and files\n\nRun with -verbose to see file discovery details", *inputDir)
	}

	if !*verbose {
		ui.Step(2, 3, "Loading category rules")
	}
	engine, err := loadRules()
	if err != nil {
		return err
	}

	pipeline := ingest.New(engine)

	if !*verbose {
		ui.Step(3, 3, "Importing statements")
	} else {
		fmt.Fprintln(os.Stderr, "\nImporting statements...")
	}

	var summary importSummary
	if *dbFile != "" {
		summary, err = importToStore(ctx, pipeline, files)
	} else {
		summary, err = importToExport(pipeline, files)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	ui.Success(fmt.Sprintf("Imported %d transactions from %d files", summary.accepted, len(files)))
	if summary.duplicates > 0 {
		ui.Info(fmt.Sprintf("%d duplicates skipped", summary.duplicates))
	}
	for _, failure := range summary.failures {
		ui.Warning(failure)
	}
	if len(summary.failures) > 0 {
		return fmt.Errorf("%d of %d files failed to import", len(summary.failures), len(files))
	}
	return nil
}

func loadRules() (*rules.Engine, error) {
	if *rulesFile != "" {
		engine, err := rules.LoadFromFile(*rulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules file: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d custom rules from %s\n", len(engine.GetRules()), *rulesFile)
		}
		return engine, nil
	}

	engine, err := rules.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d embedded rules\n", len(engine.GetRules()))
	}
	return engine, nil
}

type importSummary struct {
	accepted   int
	duplicates int
	failures   []string
}

// accountKey identifies the destination account a scanned file belongs to,
// derived from its directory layout.
func accountKey(file scanner.ScanResult) (name, institution string) {
	institution = file.Institution
	if institution == "" {
		institution = "Unknown"
	}
	name = institution
	if file.AccountHint != "" {
		name = institution + " " + file.AccountHint
	}
	return name, institution
}

// importToStore writes accepted transactions into a SQLite database,
// creating one account per (institution, account hint) directory pair.
func importToStore(ctx context.Context, pipeline *ingest.Pipeline, files []scanner.ScanResult) (importSummary, error) {
	var summary importSummary

	st, err := sqlite.Open(*dbFile)
	if err != nil {
		return summary, err
	}
	defer st.Close()

	accounts := make(map[string]string) // account name -> ID
	existing, err := st.ListAccounts(ctx)
	if err != nil {
		return summary, err
	}
	for _, account := range existing {
		accounts[account.Name] = account.ID
	}

	sets := make(map[string]fingerprint.Set) // account ID -> dedup window

	for i, file := range files {
		progress(i, len(files))

		name, institution := accountKey(file)
		accountID, ok := accounts[name]
		if !ok {
			account := &domain.Account{Name: name, Institution: institution, Type: domain.AccountTypeChecking}
			if err := st.CreateAccount(ctx, account); err != nil {
				return summary, fmt.Errorf("failed to create account %s: %w", name, err)
			}
			accounts[name] = account.ID
			accountID = account.ID
		}

		set, ok := sets[accountID]
		if !ok {
			hashes, err := st.RecentImportHashes(ctx, accountID, store.DefaultHashWindow)
			if err != nil {
				return summary, err
			}
			set = fingerprint.NewSet(hashes)
			sets[accountID] = set
		}

		result, err := importFile(pipeline, file.Path, accountID, set)
		if err != nil {
			summary.failures = append(summary.failures, fmt.Sprintf("%s: %v", file.Path, err))
			continue
		}

		written, err := st.InsertTransactions(ctx, result.Accepted)
		if err != nil {
			return summary, fmt.Errorf("failed to persist transactions from %s: %w", file.Path, err)
		}
		summary.accepted += written
		summary.duplicates += result.DuplicateCount + (len(result.Accepted) - written)
	}

	clearProgress(len(files))
	return summary, nil
}

// importToExport collects accepted transactions into a JSON export file,
// with an optional state file carrying dedup history between runs.
func importToExport(pipeline *ingest.Pipeline, files []scanner.ScanResult) (importSummary, error) {
	var summary importSummary
	export := &output.Export{}

	state, err := loadState()
	if err != nil {
		return summary, err
	}

	accounts := make(map[string]string) // account name -> ID
	sets := make(map[string]fingerprint.Set)

	for i, file := range files {
		progress(i, len(files))

		name, institution := accountKey(file)
		accountID, ok := accounts[name]
		if !ok {
			// Stable IDs keep merge mode idempotent across runs.
			accountID = slug(name)
			accounts[name] = accountID
			export.Accounts = append(export.Accounts, domain.Account{
				ID: accountID, Name: name, Institution: institution,
				Type: domain.AccountTypeChecking,
			})
		}

		set, ok := sets[accountID]
		if !ok {
			set = state.SetFor(accountID)
			sets[accountID] = set
		}

		result, err := importFile(pipeline, file.Path, accountID, set)
		if err != nil {
			summary.failures = append(summary.failures, fmt.Sprintf("%s: %v", file.Path, err))
			continue
		}

		now := time.Now()
		for _, txn := range result.Accepted {
			if err := state.Record(accountID, txn.ImportHash, txn.ID, now); err != nil {
				return summary, fmt.Errorf("failed to record import hash: %w", err)
			}
		}

		export.Transactions = append(export.Transactions, result.Accepted...)
		summary.accepted += len(result.Accepted)
		summary.duplicates += result.DuplicateCount
	}

	clearProgress(len(files))

	// State is saved before the output so a failed output write can be
	// retried without reprocessing transactions as new.
	if *stateFile != "" {
		if err := dedup.SaveState(state, *stateFile); err != nil {
			return summary, fmt.Errorf("failed to save state file before writing output: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Saved state with %d hashes to %s\n", state.TotalHashes(), *stateFile)
		}
	}

	opts := output.WriteOptions{MergeMode: *mergeMode, FilePath: *outputFile}
	if err := output.WriteToFile(export, opts); err != nil {
		return summary, fmt.Errorf("failed to write output: %w", err)
	}
	if *outputFile != "" {
		ui.Success(fmt.Sprintf("Output written to %s", *outputFile))
	}
	return summary, nil
}

// loadState opens the dedup state file, starting fresh when it does not
// exist yet. A state file that exists but cannot be loaded aborts the run;
// overwriting it would lose the dedup history.
func loadState() (*dedup.State, error) {
	if *stateFile == "" {
		return dedup.NewState(), nil
	}

	state, err := dedup.LoadState(*stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "State file not found, creating new state\n")
			}
			return dedup.NewState(), nil
		}
		return nil, fmt.Errorf("failed to load state file %q: %w\n\nThe state file exists but cannot be loaded. Deleting it will cause\nall transactions to be reprocessed as new. Back it up before resetting", *stateFile, err)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded state with %d hashes\n", state.TotalHashes())
	}
	return state, nil
}

func importFile(pipeline *ingest.Pipeline, path, accountID string, set fingerprint.Set) (*ingest.Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	kind := ingest.DetectKind(filepath.Base(path), content)
	if *verbose {
		fmt.Fprintf(os.Stderr, "  Importing %s as %s\n", path, kind)
	}
	return pipeline.Import(content, kind, accountID, set)
}

func progress(i, total int) {
	if *verbose {
		return
	}
	percentage := float64(i+1) / float64(total) * 100
	fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files (%.0f%%)...", i+1, total, percentage)
}

func clearProgress(total int) {
	if *verbose || total == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files (100%%) - Complete!\n", total, total)
}

// slug derives a stable account ID from its name.
func slug(name string) string {
	s := strings.ToLower(name)
	s = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, s)
	return strings.Trim(s, "-")
}
