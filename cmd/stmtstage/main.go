package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harmonsoft/stmtstage/internal/dedup"
	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/output"
	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/parsers/delimited"
	"github.com/harmonsoft/stmtstage/internal/parsers/ofx"
	"github.com/harmonsoft/stmtstage/internal/parsers/statement"
	"github.com/harmonsoft/stmtstage/internal/pipeline"
	"github.com/harmonsoft/stmtstage/internal/progress"
	"github.com/harmonsoft/stmtstage/internal/registry"
	"github.com/harmonsoft/stmtstage/internal/rules"
	"github.com/harmonsoft/stmtstage/internal/scanner"
	"github.com/harmonsoft/stmtstage/internal/store"
	"github.com/harmonsoft/stmtstage/internal/ui"
)

const (
	version = "0.1.0"
)

var (
	// Global flags
	versionFlag = flag.Bool("version", false, "Show version")

	// Core CLI flags
	inputPath = flag.String("input", "", "Statement file or directory to parse")
	dryRun    = flag.Bool("dry-run", false, "Show what would be parsed without parsing")
	verbose   = flag.Bool("verbose", false, "Show detailed parsing logs")

	// Output and merge flags
	outputFile = flag.String("output", "", "Output JSON file (default: stdout)")
	mergeMode  = flag.Bool("merge", false, "Merge with existing output file")

	// Parsing behavior flags
	stateFile   = flag.String("state", "", "Deduplication state file")
	rulesFile   = flag.String("rules", "", "Transaction kind rules file (YAML)")
	mappingFile = flag.String("mapping", "", "Explicit column mapping file (YAML) for delimited input")
	accountKind = flag.String("account", "", "Force account kind: checking,savings,brokerage,loan,creditCard")
	summaryOnly = flag.Bool("summary-only", false, "Stage only summary balances from PDF statements")

	formatFilter      = flag.String("format", "all", "Filter by format: ofx,delimited,pdf,all")
	institutionFilter = flag.String("institution", "", "Filter by institution name")

	// Staging store flags
	dbFile      = flag.String("db", "", "Sqlite staging database (also enables store subcommand flags)")
	listImports = flag.Bool("list", false, "List staged imports in the database and exit")
	commitID    = flag.String("commit", "", "Mark the given staged import committed and exit")
	deleteID    = flag.String("delete", "", "Delete the given uncommitted staged import and exit")
	includeTxn  = flag.String("include-txn", "", "Set the include flag on the given staged transaction and exit")
	excludeTxn  = flag.String("exclude-txn", "", "Clear the include flag on the given staged transaction and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `stmtstage - Stage financial statement files for import review

Usage:
  stmtstage [flags]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Parse all statements under a directory to stdout
  stmtstage -input ~/statements

  # Parse into a staging database with duplicate tracking
  stmtstage -input ~/statements -db staging.db -state state.json

  # Stage only the summary balances from a PDF statement
  stmtstage -input statement.pdf -summary-only -account creditCard

  # Review and commit staged work
  stmtstage -db staging.db -list
  stmtstage -db staging.db -exclude-txn <transaction-id>
  stmtstage -db staging.db -commit <import-id>

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("stmtstage version %s\n", version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	if op := storeOperation(); op != "" {
		return runStoreOperation(ctx, op)
	}

	if *inputPath == "" {
		flag.Usage()
		return fmt.Errorf("-input flag is required")
	}

	override, err := parseAccountKind(*accountKind)
	if err != nil {
		return err
	}

	if !*verbose {
		ui.Header("Staging Financial Statements")
		ui.Step(1, 4, "Scanning for statement files")
	} else {
		fmt.Fprintf(os.Stderr, "Scanning: %s\n", *inputPath)
	}

	files, err := scanInput(*inputPath)
	if err != nil {
		return err
	}
	files = filterFiles(files)

	if *verbose {
		fmt.Fprintf(os.Stderr, "Found %d statement files\n", len(files))
		for _, f := range files {
			inst := ""
			if f.Metadata != nil {
				inst = f.Metadata.Institution()
			}
			fmt.Fprintf(os.Stderr, "  - %s (institution: %s)\n", f.Path, inst)
		}
	} else {
		ui.Success(fmt.Sprintf("Found %d statement files", len(files)))
	}

	if *dryRun {
		fmt.Printf("Dry run complete. Would process %d files.\n", len(files))
		return nil
	}

	// Return error if no files found - prevents silent failures in scripts
	if len(files) == 0 {
		return fmt.Errorf("no statement files found at %s\n\nPlease check:\n  - The path is correct\n  - Files have supported extensions (.csv, .tsv, .txt, .ofx, .qfx, .pdf)\n  - You have read permissions\n\nRun with -verbose to see file discovery details", *inputPath)
	}

	if !*verbose {
		ui.Step(2, 4, "Loading rules and state")
	}

	state, err := loadState(*stateFile)
	if err != nil {
		return err
	}

	engine, err := loadRules(*rulesFile)
	if err != nil {
		return err
	}

	var mapping *delimited.ColumnMapping
	if *mappingFile != "" {
		mapping, err = delimited.LoadMapping(*mappingFile)
		if err != nil {
			return fmt.Errorf("failed to load column mapping: %w", err)
		}
	}

	var st *store.Store
	if *dbFile != "" {
		st, err = store.Open(*dbFile)
		if err != nil {
			return fmt.Errorf("failed to open staging database: %w", err)
		}
		defer st.Close()
	}

	reg := buildRegistry(mapping, engine)
	if *verbose {
		fmt.Fprintf(os.Stderr, "Registered parsers: %v\n", reg.ListParsers())
	}

	hub := progress.NewHub()
	defer hub.Close()
	done := watchProgress(hub, len(files))

	p, err := pipeline.New(reg, hub, pipeline.Options{
		SummaryOnly:     *summaryOnly,
		AccountOverride: override,
		DedupState:      state,
		Store:           st,
	})
	if err != nil {
		return err
	}

	if !*verbose {
		ui.Step(3, 4, "Parsing statements")
	}

	summary, err := p.ProcessFiles(ctx, files)
	<-done
	if err != nil {
		return err
	}

	reportSummary(summary)

	if summary.Parsed == 0 {
		return fmt.Errorf("all %d files failed to parse", summary.Failed)
	}

	// Save state before writing output: if the output write fails, a retry
	// re-flags this run's transactions as duplicates instead of staging them
	// twice.
	if state != nil && *stateFile != "" {
		if err := dedup.SaveState(state, *stateFile); err != nil {
			return fmt.Errorf("failed to save deduplication state (output not written): %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Saved state with %d hash keys to %s\n",
				len(state.HashKeys), *stateFile)
		}
	}

	if !*verbose {
		ui.Step(4, 4, "Writing staged imports")
	}

	if err := writeImports(summary); err != nil {
		return err
	}

	if *outputFile != "" {
		if *verbose {
			fmt.Fprintf(os.Stderr, "Output written to %s\n", *outputFile)
		} else {
			ui.Success(fmt.Sprintf("Output written to %s", *outputFile))
		}
	}
	if st != nil {
		msg := fmt.Sprintf("Staged %d imports in %s", summary.Parsed, *dbFile)
		if *verbose {
			fmt.Fprintf(os.Stderr, "%s\n", msg)
		} else {
			ui.Success(msg)
		}
	}

	return nil
}

// scanInput accepts either a directory, which is walked for statement files
// with path-derived metadata, or a single statement file.
func scanInput(path string) ([]scanner.ScanResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input %s: %w", path, err)
	}
	if info.IsDir() {
		files, err := scanner.New(path).Scan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
		}
		return files, nil
	}
	if !scanner.IsStatementFile(path) {
		return nil, fmt.Errorf("%s is not a supported statement file", path)
	}
	meta, err := parser.NewMetadata(path, time.Now())
	if err != nil {
		return nil, err
	}
	return []scanner.ScanResult{{Path: path, Metadata: meta}}, nil
}

// filterFiles applies the -format and -institution flags.
func filterFiles(files []scanner.ScanResult) []scanner.ScanResult {
	if *formatFilter == "all" && *institutionFilter == "" {
		return files
	}
	filtered := make([]scanner.ScanResult, 0, len(files))
	for _, f := range files {
		if !matchesFormat(f.Path, *formatFilter) {
			continue
		}
		if *institutionFilter != "" {
			inst := ""
			if f.Metadata != nil {
				inst = f.Metadata.Institution()
			}
			if !strings.EqualFold(inst, *institutionFilter) {
				continue
			}
		}
		filtered = append(filtered, f)
	}
	return filtered
}

func matchesFormat(path, format string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch format {
	case "all", "":
		return true
	case "ofx":
		return ext == ".ofx" || ext == ".qfx"
	case "delimited", "csv":
		return ext == ".csv" || ext == ".tsv" || ext == ".txt"
	case "pdf":
		return ext == ".pdf"
	default:
		return false
	}
}

func parseAccountKind(value string) (domain.AccountKind, error) {
	if value == "" {
		return "", nil
	}
	kind := domain.AccountKind(value)
	if !domain.ValidateAccountKind(kind) || kind == domain.AccountUnknown {
		return "", fmt.Errorf("invalid -account value %q (expected checking, savings, brokerage, loan, or creditCard)", value)
	}
	return kind, nil
}

// loadState loads the dedup state file. A missing file starts a fresh state;
// an unreadable or invalid one aborts the run, since parsing without the
// history would stage every prior transaction again.
func loadState(path string) (*dedup.State, error) {
	if path == "" {
		return nil, nil
	}
	state, err := dedup.LoadState(path)
	if err != nil {
		if os.IsNotExist(err) {
			if *verbose {
				fmt.Fprintf(os.Stderr, "State file not found, starting fresh\n")
			}
			return dedup.NewState(), nil
		}
		return nil, fmt.Errorf("failed to load state file %q: %w\n\nThe state file exists but cannot be loaded. Deleting it would cause\nall transactions to be restaged as new. Back it up before resetting:\n  cp %q %q.backup", path, err, path, path)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded state with %d hash keys\n", len(state.HashKeys))
	}
	return state, nil
}

func loadRules(path string) (*rules.Engine, error) {
	if path != "" {
		engine, err := rules.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules file: %w", err)
		}
		if *verbose {
			fmt.Fprintf(os.Stderr, "Loaded %d custom rules from %s\n", len(engine.GetRules()), path)
		}
		return engine, nil
	}
	engine, err := rules.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	return engine, nil
}

// buildRegistry wires the file parsers plus the one statement parser matching
// the summary-only mode.
func buildRegistry(mapping *delimited.ColumnMapping, engine *rules.Engine) *registry.Registry {
	reg := registry.New()
	reg.RegisterFile(ofx.NewParser())
	reg.RegisterFile(delimited.NewParser(mapping, engine))
	if *summaryOnly {
		reg.RegisterStatement(statement.NewSummaryParser(engine))
	} else {
		reg.RegisterStatement(statement.NewDetailParser(engine))
	}
	return reg
}

// watchProgress streams per-file progress to stderr until the terminal event
// arrives. The returned channel closes when the stream ends.
func watchProgress(hub *progress.Hub, total int) <-chan struct{} {
	sub := hub.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		processed := 0
		for ev := range sub.Events {
			switch ev.Type {
			case progress.EventTypeFileParsed:
				processed++
				if *verbose {
					fmt.Fprintf(os.Stderr, "  Parsed %s with %s (%d records)\n",
						ev.FilePath, ev.ParserID, ev.Staged)
				} else {
					fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files...", processed, total)
				}
			case progress.EventTypeFileFailed:
				processed++
				if *verbose {
					fmt.Fprintf(os.Stderr, "  Failed %s: %s\n", ev.FilePath, ev.Err)
				}
			case progress.EventTypeComplete:
				if !*verbose && processed > 0 {
					fmt.Fprintf(os.Stderr, "\r  Progress: %d/%d files - done\n", processed, total)
				}
				return
			}
		}
	}()
	return done
}

func reportSummary(summary *pipeline.BatchSummary) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "\nStaging complete:\n")
		fmt.Fprintf(os.Stderr, "  Files parsed: %d\n", summary.Parsed)
		fmt.Fprintf(os.Stderr, "  Files failed: %d\n", summary.Failed)
		fmt.Fprintf(os.Stderr, "  Transactions: %d\n", summary.Transactions)
		fmt.Fprintf(os.Stderr, "  Balances:     %d\n", summary.Balances)
		fmt.Fprintf(os.Stderr, "  Holdings:     %d\n", summary.Holdings)
	} else {
		ui.Info(fmt.Sprintf("Parsed %d files (%d failed): %d transactions, %d balances, %d holdings",
			summary.Parsed, summary.Failed, summary.Transactions, summary.Balances, summary.Holdings))
	}

	if summary.Duplicates > 0 {
		msg := fmt.Sprintf("Flagged %d duplicate transactions from earlier runs", summary.Duplicates)
		if *verbose {
			fmt.Fprintf(os.Stderr, "  %s\n", msg)
		} else {
			ui.Warning(msg)
		}
	}

	for _, result := range summary.Results {
		if result.Err != nil {
			ui.Error(fmt.Sprintf("%s: %v", result.FilePath, result.Err))
			continue
		}
		if result.Validation != nil && len(result.Validation.Warnings) > 0 {
			ui.Warning(fmt.Sprintf("%s: %d validation warnings", result.FilePath, len(result.Validation.Warnings)))
			if *verbose {
				for _, w := range result.Validation.Warnings {
					fmt.Fprintf(os.Stderr, "    - %s %s [%s]: %s\n", w.Entity, w.ID, w.Field, w.Message)
				}
			}
		}
	}
}

// writeImports writes each parsed import; with -output, imports after the
// first merge into the same file so a batch lands in one document.
func writeImports(summary *pipeline.BatchSummary) error {
	merge := *mergeMode
	for _, result := range summary.Results {
		if result.Err != nil || result.Import == nil {
			continue
		}
		opts := output.WriteOptions{MergeMode: merge, FilePath: *outputFile}
		if err := output.WriteImportToFile(result.Import, opts); err != nil {
			return fmt.Errorf("failed to write output for %s: %w", result.FilePath, err)
		}
		if *outputFile != "" {
			merge = true
		}
	}
	return nil
}

// storeOperation returns the name of the requested store subcommand flag, or
// empty when this is a parse run.
func storeOperation() string {
	switch {
	case *listImports:
		return "list"
	case *commitID != "":
		return "commit"
	case *deleteID != "":
		return "delete"
	case *includeTxn != "":
		return "include-txn"
	case *excludeTxn != "":
		return "exclude-txn"
	}
	return ""
}

func runStoreOperation(ctx context.Context, op string) error {
	if *dbFile == "" {
		return fmt.Errorf("-%s requires -db", op)
	}
	st, err := store.Open(*dbFile)
	if err != nil {
		return fmt.Errorf("failed to open staging database: %w", err)
	}
	defer st.Close()

	switch op {
	case "list":
		imports, err := st.ListImports(ctx)
		if err != nil {
			return err
		}
		if len(imports) == 0 {
			fmt.Println("No staged imports.")
			return nil
		}
		for _, imp := range imports {
			status := "staged"
			if imp.Committed {
				status = "committed"
			}
			fmt.Printf("%s  %-9s  %s  (%d txns, %d balances, %d holdings)\n",
				imp.ID, status, imp.SourceFile, imp.Transactions, imp.Balances, imp.Holdings)
		}
		return nil
	case "commit":
		if err := st.CommitImport(ctx, *commitID); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Committed import %s", *commitID))
		return nil
	case "delete":
		if err := st.DeleteImport(ctx, *deleteID); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Deleted import %s", *deleteID))
		return nil
	case "include-txn":
		if err := st.SetTransactionInclude(ctx, *includeTxn, true); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Transaction %s marked for inclusion", *includeTxn))
		return nil
	case "exclude-txn":
		if err := st.SetTransactionInclude(ctx, *excludeTxn, false); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Transaction %s excluded", *excludeTxn))
		return nil
	}
	return fmt.Errorf("unknown store operation %q", op)
}
