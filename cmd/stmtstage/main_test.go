package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harmonsoft/stmtstage/internal/dedup"
	"github.com/harmonsoft/stmtstage/internal/output"
	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/scanner"
	"github.com/harmonsoft/stmtstage/internal/store"
)

const testCSV = `Date,Description,Amount
01/05/2026,DIRECT DEPOSIT PAYROLL,2500.00
01/07/2026,ATM WITHDRAWAL MAIN ST,-60.00
01/15/2026,ONLINE TRANSFER TO SAVINGS,-400.00
`

// withFlags resets every flag global and returns a cleanup restoring the
// defaults, so tests can drive run() directly.
func withFlags(t *testing.T) func() {
	t.Helper()
	return func() {
		*inputPath = ""
		*dryRun = false
		*verbose = false
		*outputFile = ""
		*mergeMode = false
		*stateFile = ""
		*rulesFile = ""
		*mappingFile = ""
		*accountKind = ""
		*summaryOnly = false
		*formatFilter = "all"
		*institutionFilter = ""
		*dbFile = ""
		*listImports = false
		*commitID = ""
		*deleteID = ""
		*includeTxn = ""
		*excludeTxn = ""
	}
}

func writeStatement(t *testing.T, root, institution, account, name, content string) string {
	t.Helper()
	dir := filepath.Join(root, institution, account)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_MissingInput(t *testing.T) {
	defer withFlags(t)()

	err := run()
	if err == nil {
		t.Fatal("expected error when -input is missing")
	}
	if !strings.Contains(err.Error(), "-input flag is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_NonexistentInput(t *testing.T) {
	defer withFlags(t)()
	*inputPath = "/nonexistent/path/to/statements"

	err := run()
	if err == nil {
		t.Error("expected error for nonexistent input")
	}
}

func TestRun_DryRun(t *testing.T) {
	defer withFlags(t)()
	tmpDir := t.TempDir()
	writeStatement(t, tmpDir, "test_bank", "1234", "statement.csv", testCSV)

	*inputPath = tmpDir
	*dryRun = true

	if err := run(); err != nil {
		t.Errorf("dry run should succeed, got: %v", err)
	}
}

func TestRun_NoFilesFound(t *testing.T) {
	defer withFlags(t)()
	*inputPath = t.TempDir()

	err := run()
	if err == nil {
		t.Fatal("expected error when no statement files found")
	}
	if !strings.Contains(err.Error(), "no statement files found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_StagesCSVToOutputFile(t *testing.T) {
	defer withFlags(t)()
	tmpDir := t.TempDir()
	writeStatement(t, tmpDir, "test_bank", "1234", "statement.csv", testCSV)
	outPath := filepath.Join(tmpDir, "staged.json")

	*inputPath = tmpDir
	*outputFile = outPath

	if err := run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	imp, err := output.LoadImport(outPath)
	if err != nil {
		t.Fatalf("failed to load output: %v", err)
	}
	if len(imp.Transactions) != 3 {
		t.Errorf("expected 3 staged transactions, got %d", len(imp.Transactions))
	}
	if imp.Institution != "Test Bank" {
		t.Errorf("expected institution from directory layout, got %q", imp.Institution)
	}
}

func TestRun_SingleFileInput(t *testing.T) {
	defer withFlags(t)()
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "statement.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(tmpDir, "staged.json")

	*inputPath = path
	*outputFile = outPath

	if err := run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	imp, err := output.LoadImport(outPath)
	if err != nil {
		t.Fatalf("failed to load output: %v", err)
	}
	if len(imp.Transactions) != 3 {
		t.Errorf("expected 3 staged transactions, got %d", len(imp.Transactions))
	}
}

func TestRun_StateFlagsDuplicatesAcrossRuns(t *testing.T) {
	defer withFlags(t)()
	tmpDir := t.TempDir()
	writeStatement(t, tmpDir, "test_bank", "1234", "statement.csv", testCSV)
	statePath := filepath.Join(tmpDir, "state.json")

	*inputPath = tmpDir
	*stateFile = statePath
	*outputFile = filepath.Join(tmpDir, "first.json")

	if err := run(); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	state, err := dedup.LoadState(statePath)
	if err != nil {
		t.Fatalf("failed to load saved state: %v", err)
	}
	if len(state.HashKeys) != 3 {
		t.Errorf("expected 3 recorded hash keys, got %d", len(state.HashKeys))
	}

	*outputFile = filepath.Join(tmpDir, "second.json")
	if err := run(); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	imp, err := output.LoadImport(*outputFile)
	if err != nil {
		t.Fatalf("failed to load second output: %v", err)
	}
	for _, txn := range imp.Transactions {
		if txn.Include {
			t.Errorf("transaction %s should be flagged as a duplicate", txn.ID)
		}
	}
}

func TestRun_CorruptStateAborts(t *testing.T) {
	defer withFlags(t)()
	tmpDir := t.TempDir()
	writeStatement(t, tmpDir, "test_bank", "1234", "statement.csv", testCSV)
	statePath := filepath.Join(tmpDir, "state.json")
	if err := os.WriteFile(statePath, []byte("{not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	*inputPath = tmpDir
	*stateFile = statePath

	err := run()
	if err == nil {
		t.Fatal("expected error for corrupt state file")
	}
	if !strings.Contains(err.Error(), "failed to load state file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_StoreLifecycle(t *testing.T) {
	defer withFlags(t)()
	tmpDir := t.TempDir()
	writeStatement(t, tmpDir, "test_bank", "1234", "statement.csv", testCSV)
	dbPath := filepath.Join(tmpDir, "staging.db")

	*inputPath = tmpDir
	*dbFile = dbPath
	*outputFile = filepath.Join(tmpDir, "staged.json")

	if err := run(); err != nil {
		t.Fatalf("staging run failed: %v", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	imports, err := st.ListImports(context.Background())
	if err != nil {
		t.Fatalf("failed to list imports: %v", err)
	}
	if len(imports) != 1 {
		t.Fatalf("expected 1 staged import, got %d", len(imports))
	}
	if imports[0].Transactions != 3 {
		t.Errorf("expected 3 stored transactions, got %d", imports[0].Transactions)
	}
	importID := imports[0].ID
	saved, err := st.GetImport(context.Background(), importID)
	if err != nil {
		t.Fatalf("failed to load import: %v", err)
	}
	txnID := saved.Transactions[0].ID
	st.Close()

	reset := withFlags(t)
	reset()
	*dbFile = dbPath
	*excludeTxn = txnID
	if err := run(); err != nil {
		t.Fatalf("exclude-txn failed: %v", err)
	}

	reset()
	*dbFile = dbPath
	*commitID = importID
	if err := run(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// Committed imports reject further edits.
	reset()
	*dbFile = dbPath
	*includeTxn = txnID
	if err := run(); err == nil {
		t.Error("expected error editing a committed import")
	}

	reset()
	*dbFile = dbPath
	*deleteID = importID
	if err := run(); err == nil {
		t.Error("expected error deleting a committed import")
	}
}

func TestRun_StoreOpsRequireDB(t *testing.T) {
	defer withFlags(t)()
	*listImports = true

	err := run()
	if err == nil || !strings.Contains(err.Error(), "requires -db") {
		t.Errorf("expected -db requirement error, got: %v", err)
	}
}

func TestRun_InvalidAccountKind(t *testing.T) {
	defer withFlags(t)()
	*inputPath = t.TempDir()
	*accountKind = "mattress"

	err := run()
	if err == nil || !strings.Contains(err.Error(), "invalid -account value") {
		t.Errorf("expected account kind error, got: %v", err)
	}
}

func TestMatchesFormat(t *testing.T) {
	tests := []struct {
		path   string
		format string
		want   bool
	}{
		{"a.ofx", "ofx", true},
		{"a.qfx", "ofx", true},
		{"a.csv", "ofx", false},
		{"a.csv", "delimited", true},
		{"a.tsv", "csv", true},
		{"a.txt", "delimited", true},
		{"a.pdf", "pdf", true},
		{"a.pdf", "delimited", false},
		{"a.csv", "all", true},
		{"a.csv", "bogus", false},
	}
	for _, tt := range tests {
		if got := matchesFormat(tt.path, tt.format); got != tt.want {
			t.Errorf("matchesFormat(%q, %q) = %v, want %v", tt.path, tt.format, got, tt.want)
		}
	}
}

func TestFilterFilesByInstitution(t *testing.T) {
	defer withFlags(t)()
	*institutionFilter = "Test Bank"

	meta1, err := parser.NewMetadata("/a/statement.csv", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	meta1.SetInstitution("Test Bank")
	meta2, err := parser.NewMetadata("/b/statement.csv", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	meta2.SetInstitution("Other Bank")

	files := []scanner.ScanResult{
		{Path: "/a/statement.csv", Metadata: meta1},
		{Path: "/b/statement.csv", Metadata: meta2},
	}
	filtered := filterFiles(files)
	if len(filtered) != 1 || filtered[0].Path != "/a/statement.csv" {
		t.Errorf("expected only the Test Bank file, got %v", filtered)
	}
}

func TestParseAccountKind(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"", false},
		{"checking", false},
		{"creditCard", false},
		{"brokerage", false},
		{"unknown", true},
		{"CHECKING", true},
		{"piggybank", true},
	}
	for _, tt := range tests {
		_, err := parseAccountKind(tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAccountKind(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
		}
	}
}
