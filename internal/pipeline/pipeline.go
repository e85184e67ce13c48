// Package pipeline orchestrates parsing statement files into staged imports:
// parser selection, PDF text extraction, duplicate flagging, validation, and
// optional persistence, with progress events broadcast per file.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harmonsoft/stmtstage/internal/dedup"
	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/extract"
	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/pdftext"
	"github.com/harmonsoft/stmtstage/internal/progress"
	"github.com/harmonsoft/stmtstage/internal/registry"
	"github.com/harmonsoft/stmtstage/internal/scanner"
	"github.com/harmonsoft/stmtstage/internal/store"
	"github.com/harmonsoft/stmtstage/internal/validate"
)

// Options configures pipeline behavior beyond parser selection.
type Options struct {
	// SummaryOnly asks PDF extraction to keep only synthesized summary rows
	// when any are present.
	SummaryOnly bool

	// AccountOverride pins the account kind for every staged record parsed
	// from PDF documents.
	AccountOverride domain.AccountKind

	// DedupState, when set, flags transactions already seen in earlier runs
	// by clearing their include flag, and records the new ones.
	DedupState *dedup.State

	// Store, when set, persists every successfully validated import.
	Store *store.Store
}

// ParseResult is the outcome of parsing a single file.
type ParseResult struct {
	FilePath   string
	ParserID   string
	Import     *domain.StagedImport
	Validation *validate.ValidationResult
	Duplicates int
	Err        error
}

// BatchSummary aggregates the outcome of a ProcessFiles run.
type BatchSummary struct {
	Files        int
	Parsed       int
	Failed       int
	Transactions int
	Balances     int
	Holdings     int
	Duplicates   int
	Results      []*ParseResult
}

// Pipeline runs statement files through parsing, dedup, and validation.
type Pipeline struct {
	registry *registry.Registry
	hub      *progress.Hub
	opts     Options
}

// New creates a pipeline. The hub may be nil when no progress reporting is
// wanted.
func New(reg *registry.Registry, hub *progress.Hub, opts Options) (*Pipeline, error) {
	if reg == nil {
		return nil, fmt.Errorf("parser registry cannot be nil")
	}
	return &Pipeline{registry: reg, hub: hub, opts: opts}, nil
}

// ParseFile parses a single statement file into a staged import. The result
// carries a non-nil Err for per-file failures; a non-nil error return means
// the failure happened before a result could be built.
func (p *Pipeline) ParseFile(ctx context.Context, filePath string, meta *parser.Metadata) (*ParseResult, error) {
	if meta == nil {
		m, err := parser.NewMetadata(filePath, time.Now())
		if err != nil {
			return nil, err
		}
		meta = m
	}

	result := &ParseResult{FilePath: filePath}

	var imp *domain.StagedImport
	var err error
	if strings.EqualFold(filepath.Ext(filePath), ".pdf") {
		imp, result.ParserID, err = p.parsePDF(ctx, filePath, meta)
	} else {
		imp, result.ParserID, err = p.parseFile(ctx, filePath, meta)
	}
	if err != nil {
		result.Err = err
		return result, nil
	}
	result.Import = imp

	if p.opts.DedupState != nil {
		result.Duplicates = p.flagDuplicates(imp)
	}

	result.Validation = validate.ValidateImport(imp)
	if !result.Validation.Valid() {
		result.Err = fmt.Errorf("staged import %s failed validation with %d errors",
			imp.ID, len(result.Validation.Errors))
		return result, nil
	}

	if p.opts.Store != nil {
		if err := p.opts.Store.SaveImport(ctx, imp); err != nil {
			result.Err = fmt.Errorf("failed to persist import %s: %w", imp.ID, err)
		}
	}
	return result, nil
}

// parseFile routes non-PDF files through the registered file parsers.
func (p *Pipeline) parseFile(ctx context.Context, filePath string, meta *parser.Metadata) (*domain.StagedImport, string, error) {
	fp, err := p.registry.FindFileParser(filePath)
	if err != nil {
		return nil, "", err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fp.Name(), fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	imp, err := fp.Parse(ctx, file, meta)
	if err != nil {
		return nil, fp.Name(), err
	}
	return imp, fp.Name(), nil
}

// parsePDF extracts document text, runs the canonical table extraction, and
// hands the table to the matching statement parser. Document-level context
// discovered during extraction (rate, period) is carried on the metadata.
func (p *Pipeline) parsePDF(ctx context.Context, filePath string, meta *parser.Metadata) (*domain.StagedImport, string, error) {
	doc, err := pdftext.Document(filePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to extract text from %s: %w", filepath.Base(filePath), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	res, err := extract.Extract(doc, extract.Options{
		AccountOverride: p.opts.AccountOverride,
		SummaryOnly:     p.opts.SummaryOnly,
		Tokens:          pdftext.NewTokenSource(filePath),
	})
	if err != nil {
		return nil, "", err
	}

	if res.RateAPR > 0 {
		meta.SetRate(res.RateAPR, res.RateScale)
	}
	if meta.Period() == "" && res.Period != nil {
		meta.SetPeriod(fmt.Sprintf("%04d-%02d", res.Period.EndYear, res.Period.EndMonth))
	}

	table := res.Table()
	sp, err := p.registry.FindStatementParser(table.Headers)
	if err != nil {
		return nil, "", err
	}

	imp, err := sp.Parse(ctx, table, meta)
	if err != nil {
		return nil, sp.Name(), err
	}
	return imp, sp.Name(), nil
}

// flagDuplicates clears the include flag on transactions whose hash key was
// seen in a previous run and records the rest. Returns the duplicate count.
func (p *Pipeline) flagDuplicates(imp *domain.StagedImport) int {
	duplicates := 0
	now := time.Now()
	for i := range imp.Transactions {
		txn := &imp.Transactions[i]
		if txn.HashKey == "" {
			continue
		}
		if p.opts.DedupState.IsDuplicate(txn.HashKey) {
			txn.Include = false
			duplicates++
			continue
		}
		if err := p.opts.DedupState.Record(txn.HashKey, txn.ID, now); err != nil {
			// Record only rejects empty keys, which the guard above
			// already filters.
			continue
		}
	}
	return duplicates
}

// ProcessFiles runs every scanned file through ParseFile, broadcasting a
// progress event per file and a terminal event when the batch ends. Per-file
// failures do not abort the batch; context cancellation does.
func (p *Pipeline) ProcessFiles(ctx context.Context, files []scanner.ScanResult) (*BatchSummary, error) {
	summary := &BatchSummary{Files: len(files)}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			p.publish(progress.Event{Type: progress.EventTypeComplete, Err: err.Error()})
			return summary, fmt.Errorf("batch cancelled: %w", err)
		}

		p.publish(progress.Event{
			Type:     progress.EventTypeFileStarted,
			FilePath: file.Path,
		})

		result, err := p.ParseFile(ctx, file.Path, file.Metadata)
		if err != nil {
			result = &ParseResult{FilePath: file.Path, Err: err}
		}
		summary.Results = append(summary.Results, result)

		if result.Err != nil {
			summary.Failed++
			p.publish(progress.Event{
				Type:     progress.EventTypeFileFailed,
				FilePath: file.Path,
				ParserID: result.ParserID,
				Err:      result.Err.Error(),
			})
			continue
		}

		summary.Parsed++
		summary.Transactions += len(result.Import.Transactions)
		summary.Balances += len(result.Import.Balances)
		summary.Holdings += len(result.Import.Holdings)
		summary.Duplicates += result.Duplicates
		p.publish(progress.Event{
			Type:     progress.EventTypeFileParsed,
			FilePath: file.Path,
			ParserID: result.ParserID,
			Staged:   stagedCount(result.Import),
		})
	}

	p.publish(progress.Event{Type: progress.EventTypeComplete, Staged: summary.Transactions + summary.Balances + summary.Holdings})
	return summary, nil
}

func (p *Pipeline) publish(event progress.Event) {
	if p.hub != nil {
		p.hub.Publish(event)
	}
}

func stagedCount(imp *domain.StagedImport) int {
	return len(imp.Transactions) + len(imp.Balances) + len(imp.Holdings)
}
