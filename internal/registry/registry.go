// Package registry selects parsers for statement inputs: file parsers by
// path and header sniffing, statement parsers by table headers.
package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/harmonsoft/stmtstage/internal/parser"
)

// Registry holds all registered parsers.
type Registry struct {
	fileParsers      []parser.FileParser
	statementParsers []parser.StatementParser
}

// New creates an empty registry; callers register the parsers they want.
func New() *Registry {
	return &Registry{}
}

// RegisterFile adds a byte-stream format parser.
func (r *Registry) RegisterFile(p parser.FileParser) {
	r.fileParsers = append(r.fileParsers, p)
}

// RegisterStatement adds a row-consuming statement parser.
func (r *Registry) RegisterStatement(p parser.StatementParser) {
	r.statementParsers = append(r.statementParsers, p)
}

// FindFileParser returns the first file parser claiming this path. The
// first 512 bytes are read for header sniffing, which covers the magic
// markers of every supported format; files shorter than that pass whatever
// was read.
func (r *Registry) FindFileParser(path string) (parser.FileParser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	header = header[:n]

	for _, p := range r.fileParsers {
		if p.CanParse(path, header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no parser found for file: %s", path)
}

// FindStatementParser returns the first statement parser accepting these
// table headers.
func (r *Registry) FindStatementParser(headers []string) (parser.StatementParser, error) {
	for _, p := range r.statementParsers {
		if p.CanParse(headers) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no statement parser accepts headers %v", headers)
}

// ListParsers returns the names of every registered parser.
func (r *Registry) ListParsers() []string {
	names := make([]string, 0, len(r.fileParsers)+len(r.statementParsers))
	for _, p := range r.fileParsers {
		names = append(names, p.Name())
	}
	for _, p := range r.statementParsers {
		names = append(names, p.Name())
	}
	return names
}
