// Package scanner walks a directory tree and finds statement files,
// inferring institution and account metadata from the directory layout.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harmonsoft/stmtstage/internal/parser"
)

// Scanner walks a directory tree and finds statement files.
type Scanner struct {
	rootDir string
}

// New creates a new scanner for the given root directory.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// ScanResult represents a found file with metadata.
type ScanResult struct {
	Path     string
	Metadata *parser.Metadata
}

// statementExtensions are the formats the pipeline can parse.
var statementExtensions = map[string]bool{
	".csv": true,
	".tsv": true,
	".txt": true,
	".ofx": true,
	".qfx": true,
	".pdf": true,
}

// Scan walks the directory tree and finds all statement files.
func (s *Scanner) Scan() ([]ScanResult, error) {
	var results []ScanResult

	rootDir := s.expandHome(s.rootDir)

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Hidden directories hold editor state and sync caches, not
			// statements.
			if name := info.Name(); name != "." && strings.HasPrefix(name, ".") && path != rootDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsStatementFile(path) {
			return nil
		}

		meta, err := s.extractMetadata(path, rootDir)
		if err != nil {
			return err
		}
		results = append(results, ScanResult{Path: path, Metadata: meta})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	return results, nil
}

// IsStatementFile checks if the file is a known statement format.
func IsStatementFile(path string) bool {
	return statementExtensions[strings.ToLower(filepath.Ext(path))]
}

// extractMetadata parses the directory structure for institution/account
// info. Path structure: {root}/{institution}/{account}/{period?}/file.ext.
// Files outside that layout get metadata with the optional fields empty.
func (s *Scanner) extractMetadata(filePath, rootDir string) (*parser.Metadata, error) {
	meta, err := parser.NewMetadata(filePath, time.Now())
	if err != nil {
		return nil, err
	}

	relPath, err := filepath.Rel(rootDir, filePath)
	if err != nil {
		relPath = filePath
	}
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	if len(parts) >= 2 {
		meta.SetInstitution(normalizeInstitutionName(parts[0]))
	}
	if len(parts) >= 3 {
		meta.SetAccountNumber(parts[1])
	}
	if len(parts) >= 4 && looksLikePeriod(parts[2]) {
		meta.SetPeriod(parts[2])
	}

	return meta, nil
}

// normalizeInstitutionName converts a directory name to a readable name:
// "american_express" becomes "American Express".
func normalizeInstitutionName(dirName string) string {
	name := strings.ReplaceAll(dirName, "_", " ")
	words := strings.Split(name, " ")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// looksLikePeriod checks if the string looks like a YYYY-MM period.
func looksLikePeriod(str string) bool {
	return len(str) >= 7 && str[4] == '-'
}

// expandHome expands a leading ~ to the home directory.
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
