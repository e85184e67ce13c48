// Package statement provides the two parsers for rows recovered from
// page-oriented statement documents: a summary parser that stages only the
// synthesized balance rows, and a detail parser that stages every
// transaction row. Both consume the canonical five-field table.
package statement

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/extract"
	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/rules"
	stage "github.com/harmonsoft/stmtstage/internal/transform"
)

func newImport(parserID string, meta *parser.Metadata) (*domain.StagedImport, error) {
	slug := ""
	if meta.Institution() != "" {
		s, err := stage.SlugifyInstitution(meta.Institution())
		if err != nil {
			return nil, err
		}
		slug = s
	}
	imp, err := domain.NewStagedImport(stage.ImportID(slug, filepath.Base(meta.FilePath())), parserID, meta.FilePath())
	if err != nil {
		return nil, err
	}
	imp.Institution = meta.Institution()
	imp.AccountTypeHint = meta.AccountHint()
	return imp, nil
}

// SummaryParser stages the synthesized beginning/ending balance rows and
// ignores transaction detail. The document-level interest rate from the
// metadata is attached to the ending balance.
type SummaryParser struct {
	stager *stage.Stager
}

// NewSummaryParser creates the summary parser. The rules engine is unused
// for balances but kept so both statement parsers construct alike.
func NewSummaryParser(engine *rules.Engine) *SummaryParser {
	return &SummaryParser{stager: stage.NewStager(engine, true)}
}

// Name returns the parser identifier.
func (p *SummaryParser) Name() string {
	return "pdf-summary"
}

// CanParse accepts only the canonical header set.
func (p *SummaryParser) CanParse(headers []string) bool {
	return canonicalHeaders(headers)
}

// Parse stages one balance per synthetic row. Fails when the table carries
// no synthetic rows at all, since a summary import with nothing in it would
// silently hide an extraction failure.
func (p *SummaryParser) Parse(ctx context.Context, tbl *parser.Table, meta *parser.Metadata) (*domain.StagedImport, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	imp, err := newImport(p.Name(), meta)
	if err != nil {
		return nil, err
	}

	rows := tbl.CanonicalRows()
	var endingIdx = -1
	for _, row := range rows {
		if !extract.IsSyntheticRow(row) {
			continue
		}
		if row.Description == "Loan Payment" {
			txn, err := p.stager.Transaction(row)
			if err != nil {
				return nil, fmt.Errorf("loan payment row: %w", err)
			}
			imp.Transactions = append(imp.Transactions, *txn)
			continue
		}
		b, err := p.stager.Balance(row)
		if err != nil {
			return nil, fmt.Errorf("balance row %q: %w", row.Description, err)
		}
		imp.Balances = append(imp.Balances, *b)
		if row.Description == "Ending Balance" {
			endingIdx = len(imp.Balances) - 1
		}
	}

	if len(imp.Balances) == 0 {
		return nil, parser.NewParseFailure("no summary balances found; the document may need the detail parser or a different extraction mode")
	}

	if endingIdx >= 0 && meta.RateAPR() > 0 {
		imp.Balances[endingIdx].InterestRateAPR = meta.RateAPR()
		imp.Balances[endingIdx].InterestRateScale = meta.RateScale()
	}
	return imp, nil
}

// DetailParser stages every row as a transaction. Staged transactions
// default to excluded: page-oriented extraction is heuristic, so rows wait
// for reviewer confirmation instead of flowing straight through.
type DetailParser struct {
	stager *stage.Stager
}

// NewDetailParser creates the transaction-detail parser.
func NewDetailParser(engine *rules.Engine) *DetailParser {
	return &DetailParser{stager: stage.NewStager(engine, false)}
}

// Name returns the parser identifier.
func (p *DetailParser) Name() string {
	return "pdf-detail"
}

// CanParse accepts only the canonical header set.
func (p *DetailParser) CanParse(headers []string) bool {
	return canonicalHeaders(headers)
}

// Parse stages transactions from every row, synthetic summary rows
// included; the hash key keeps re-imports of the same period deduplicable.
func (p *DetailParser) Parse(ctx context.Context, tbl *parser.Table, meta *parser.Metadata) (*domain.StagedImport, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	imp, err := newImport(p.Name(), meta)
	if err != nil {
		return nil, err
	}

	dropped := 0
	for _, row := range tbl.CanonicalRows() {
		if extract.IsSyntheticRow(row) && row.Description != "Loan Payment" {
			b, err := p.stager.Balance(row)
			if err != nil {
				dropped++
				continue
			}
			imp.Balances = append(imp.Balances, *b)
			continue
		}
		txn, err := p.stager.Transaction(row)
		if err != nil {
			// Pass-through dates on reference and footnote lines land here.
			// Drop the row; one bad line must not lose the whole statement.
			dropped++
			continue
		}
		imp.Transactions = append(imp.Transactions, *txn)
	}

	if imp.Empty() {
		if dropped > 0 {
			return nil, parser.NewParseFailure("no rows to stage; all %d extracted rows were rejected during staging", dropped)
		}
		return nil, parser.NewParseFailure("no rows to stage; the document produced an empty table")
	}
	return imp, nil
}

func canonicalHeaders(headers []string) bool {
	t := parser.Table{Headers: headers}
	return t.IsCanonical()
}
