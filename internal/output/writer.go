// Package output serializes staged imports to JSON, to stdout or files,
// with an optional merge mode that folds new records into an existing file.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/harmonsoft/stmtstage/internal/domain"
)

// WriteOptions configures how the import is written.
type WriteOptions struct {
	MergeMode bool   // load existing file and merge records into it
	FilePath  string // output path (empty = stdout)
}

// WriteImport serializes a StagedImport to JSON with 2-space indentation.
func WriteImport(imp *domain.StagedImport, w io.Writer) error {
	if imp == nil {
		return fmt.Errorf("import cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(imp); err != nil {
		return fmt.Errorf("failed to encode import as JSON: %w", err)
	}
	return nil
}

// WriteImportToFile writes a StagedImport to file or stdout based on options.
func WriteImportToFile(imp *domain.StagedImport, opts WriteOptions) (err error) {
	if imp == nil {
		return fmt.Errorf("import cannot be nil")
	}

	if opts.MergeMode && opts.FilePath != "" {
		existing, err := LoadImport(opts.FilePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to load existing import for merge: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Warning: merge mode requested but %s does not exist, creating new file\n", opts.FilePath)
		} else {
			if err := mergeImports(existing, imp); err != nil {
				return fmt.Errorf("failed to merge imports: %w", err)
			}
			imp = existing
		}
	}

	if opts.FilePath == "" {
		return WriteImport(imp, os.Stdout)
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

	if err = WriteImport(imp, f); err != nil {
		return fmt.Errorf("failed to write import to %s: %w", opts.FilePath, err)
	}
	return nil
}

// LoadImport reads an existing staged-import JSON file for merge mode.
func LoadImport(filePath string) (*domain.StagedImport, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(filePath)
	if err != nil {
		// Unwrapped so the caller can check os.IsNotExist.
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", filePath, closeErr)
		}
	}()

	var imp domain.StagedImport
	if err := json.NewDecoder(f).Decode(&imp); err != nil {
		return nil, fmt.Errorf("failed to decode import JSON: %w", err)
	}
	return &imp, nil
}

// mergeImports folds source's records into target. Records whose IDs
// already exist in target are skipped so re-running a merge is idempotent;
// transactions whose hash key already exists are skipped as duplicates.
func mergeImports(target, source *domain.StagedImport) error {
	if target == nil || source == nil {
		return fmt.Errorf("imports cannot be nil")
	}

	txnIDs := make(map[string]bool, len(target.Transactions))
	hashKeys := make(map[string]bool, len(target.Transactions))
	for _, txn := range target.Transactions {
		txnIDs[txn.ID] = true
		if txn.HashKey != "" {
			hashKeys[txn.HashKey] = true
		}
	}
	for _, txn := range source.Transactions {
		if txnIDs[txn.ID] {
			continue
		}
		if txn.HashKey != "" && hashKeys[txn.HashKey] {
			fmt.Fprintf(os.Stderr, "Warning: skipping duplicate transaction %s (%s)\n", txn.ID, txn.Payee)
			continue
		}
		target.Transactions = append(target.Transactions, txn)
		txnIDs[txn.ID] = true
		if txn.HashKey != "" {
			hashKeys[txn.HashKey] = true
		}
	}

	balIDs := make(map[string]bool, len(target.Balances))
	for _, bal := range target.Balances {
		balIDs[bal.ID] = true
	}
	for _, bal := range source.Balances {
		if balIDs[bal.ID] {
			continue
		}
		target.Balances = append(target.Balances, bal)
		balIDs[bal.ID] = true
	}

	holdIDs := make(map[string]bool, len(target.Holdings))
	for _, h := range target.Holdings {
		holdIDs[h.ID] = true
	}
	for _, h := range source.Holdings {
		if holdIDs[h.ID] {
			continue
		}
		target.Holdings = append(target.Holdings, h)
		holdIDs[h.ID] = true
	}

	return nil
}
