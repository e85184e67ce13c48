// Package parser defines the contracts between extraction and the format
// parsers: the canonical row interchange format, the StatementParser strategy
// interface, and the parse failure surface.
package parser

import (
	"context"
	"io"

	"github.com/harmonsoft/stmtstage/internal/domain"
)

// CanonicalHeaders names the five ordered fields of a canonical row as
// produced by extraction. Account label is one of the domain.AccountKind
// values, with "unknown" permitted.
var CanonicalHeaders = []string{"Date", "Description", "Amount", "Balance", "Account"}

// Table is the row interchange between extraction and format parsers:
// a header row naming the columns and the data records beneath it.
type Table struct {
	Headers []string
	Records [][]string
}

// Row is the typed view of a canonical five-field record.
// Date is MM/dd/yyyy once normalized; unresolved dates keep their original
// form. Amount and Balance are signed decimal strings with currency symbols,
// separators, and credit/debit markers removed. Balance may be empty.
type Row struct {
	Date        string
	Description string
	Amount      string
	Balance     string
	Account     domain.AccountKind
}

// Fields returns the row as the five ordered interchange strings.
func (r Row) Fields() []string {
	return []string{r.Date, r.Description, r.Amount, r.Balance, string(r.Account)}
}

// NewCanonicalTable builds a Table with canonical headers from typed rows.
func NewCanonicalTable(rows []Row) *Table {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.Fields())
	}
	return &Table{Headers: CanonicalHeaders, Records: records}
}

// IsCanonical reports whether the table carries exactly the canonical headers.
func (t *Table) IsCanonical() bool {
	if len(t.Headers) != len(CanonicalHeaders) {
		return false
	}
	for i, h := range t.Headers {
		if h != CanonicalHeaders[i] {
			return false
		}
	}
	return true
}

// CanonicalRows converts a canonical table's records back to typed rows.
// Short records are padded; the account field falls back to unknown when it
// is not a member of the closed set.
func (t *Table) CanonicalRows() []Row {
	rows := make([]Row, 0, len(t.Records))
	for _, rec := range t.Records {
		padded := make([]string, 5)
		copy(padded, rec)
		kind := domain.AccountKind(padded[4])
		if !domain.ValidateAccountKind(kind) {
			kind = domain.AccountUnknown
		}
		rows = append(rows, Row{
			Date:        padded[0],
			Description: padded[1],
			Amount:      padded[2],
			Balance:     padded[3],
			Account:     kind,
		})
	}
	return rows
}

// StatementParser is the strategy interface for row-consuming format parsers.
// CanParse must be a cheap, header-only compatibility check; Parse performs
// the full conversion and fails with *ParseFailureError when zero usable
// records result.
type StatementParser interface {
	// Name returns the parser identifier (e.g., "delimited", "pdf-detail").
	Name() string

	// CanParse checks header compatibility without touching record data.
	CanParse(headers []string) bool

	// Parse converts the table into a staged import.
	Parse(ctx context.Context, tbl *Table, meta *Metadata) (*domain.StagedImport, error)
}

// FileParser is the strategy interface for byte-stream formats (OFX/QFX)
// that never pass through the row interchange.
type FileParser interface {
	// Name returns the parser identifier (e.g., "ofx").
	Name() string

	// CanParse checks if this parser can handle the file based on its path
	// and the first bytes of content.
	CanParse(path string, header []byte) bool

	// Parse extracts a staged import from the raw stream.
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*domain.StagedImport, error)
}
