package extract

import (
	"time"

	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/layout"
	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/patterns"
)

// defaultMinRows is the textual row count below which the layout fallback is
// attempted when a token source is available.
const defaultMinRows = 3

// layoutConfidenceFloor gates adoption of the layout fallback result.
const layoutConfidenceFloor = 0.5

// Options configures one extraction pass.
type Options struct {
	// AccountOverride pins the account kind for every emitted row and
	// suppresses header/context inference entirely.
	AccountOverride domain.AccountKind

	// SummaryOnly drops all non-synthetic rows when summary synthesis
	// produces at least one row.
	SummaryOnly bool

	// Tokens optionally supplies positioned text tokens for the layout
	// fallback. Nil disables the fallback.
	Tokens layout.TokenSource

	// MinRows is the textual row count that suppresses the layout fallback.
	// Zero means the default.
	MinRows int

	// Now anchors fallback-year plausibility. Zero means the current time.
	Now time.Time
}

// Result is the output of one extraction pass: the canonical table plus the
// document-level context a format parser may want (period, classification,
// extracted rate).
type Result struct {
	Rows       []parser.Row
	Period     *Period
	DocKind    domain.AccountKind
	RateAPR    float64
	RateScale  int
	UsedLayout bool
}

// Table returns the canonical five-field interchange table.
func (r *Result) Table() *parser.Table {
	return parser.NewCanonicalTable(r.Rows)
}

// Extract runs the full pipeline over raw document text: line normalization,
// the sequential context/reconstruction scan, the summary and rate post
// passes, the optional layout fallback, and the final label coercion pass.
// The pass is single-threaded and scanner-local; concurrent documents get
// independent Extract calls.
func Extract(doc string, opts Options) (*Result, error) {
	lines := NormalizeLines(doc)
	if len(lines) == 0 {
		return nil, parser.NewParseFailure(
			"no text could be extracted; the document may be password-protected or a scanned image")
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	docSig := scanDocument(lines)
	period := DetectPeriod(lines)
	fallbackYear := 0
	if period == nil {
		fallbackYear = MostPlausibleYear(lines, now)
	}

	rows := scanRows(lines, docSig, period, fallbackYear, opts.AccountOverride)

	minRows := opts.MinRows
	if minRows == 0 {
		minRows = defaultMinRows
	}

	usedLayout := false
	if len(rows) < minRows && opts.Tokens != nil {
		if layoutRows, ok := layoutFallback(opts.Tokens, docSig, period, fallbackYear, opts.AccountOverride); ok && len(layoutRows) > len(rows) {
			rows = layoutRows
			usedLayout = true
		}
	}

	synthetic := SynthesizeSummaries(lines, rows, period, docSig, opts.AccountOverride)
	if opts.SummaryOnly && len(synthetic) > 0 {
		rows = synthetic
	} else {
		rows = append(rows, synthetic...)
	}

	if len(rows) == 0 {
		return nil, parser.NewParseFailure(
			"no transactions or balances could be recognized; try switching to transaction mode or supplying an account type")
	}

	rate, scale, hasRate := ExtractRate(lines)
	if !hasRate {
		rate, scale = 0, 0
	}

	result := &Result{
		Rows:       coerceLabels(rows, docSig, opts.AccountOverride),
		Period:     period,
		DocKind:    documentKind(docSig, opts.AccountOverride),
		RateAPR:    rate,
		RateScale:  scale,
		UsedLayout: usedLayout,
	}
	return result, nil
}

// scanRows is the sequential pass: context tracking for non-date lines, row
// reconstruction for date-starting lines, full state reset at page breaks.
func scanRows(lines []string, docSig *docSignals, period *Period, fallbackYear int, override domain.AccountKind) []parser.Row {
	st := newScanState(override)
	var rows []parser.Row

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if line == PageBreak {
			st.reset()
			continue
		}

		if !patterns.StartsWithDate(line) {
			if !patterns.IsNoise(line) {
				st.observe(line, docSig)
			}
			continue
		}

		// Date-starting period/meta headers carry context, never rows.
		if isContextOnlyDateLine(line) {
			st.push(line)
			continue
		}

		row, consumed, ok := reconstructAt(lines, i)
		if !ok {
			continue
		}
		rows = append(rows, finishRow(row, st, period, fallbackYear))
		i += consumed - 1
	}
	return rows
}

// layoutFallback acquires positioned tokens, reconstructs rows by geometry,
// and normalizes them through the same amount/date/label path as the textual
// scan. Adoption requires the confidence floor.
func layoutFallback(src layout.TokenSource, docSig *docSignals, period *Period, fallbackYear int, override domain.AccountKind) ([]parser.Row, bool) {
	tokens, err := src.Tokens()
	if err != nil || len(tokens) == 0 {
		return nil, false
	}

	res := layout.Reconstruct(tokens)
	if res.Confidence < layoutConfidenceFloor || len(res.Rows) == 0 {
		return nil, false
	}

	label := override
	if label == "" || label == domain.AccountUnknown {
		label = docSig.DominantKind().label()
	}

	rows := make([]parser.Row, 0, len(res.Rows))
	for _, raw := range res.Rows {
		rows = append(rows, parser.Row{
			Date:        NormalizeDate(raw.Date, period, fallbackYear),
			Description: collapseSpaces(raw.Description),
			Amount:      NormalizeAmount(raw.Amount),
			Balance:     NormalizeAmount(raw.Balance),
			Account:     label,
		})
	}
	return rows, true
}

// coerceLabels is the final wholesale replacement pass: the override always
// wins, unknown labels inherit the document-level kind, and every label is a
// member of the closed set.
func coerceLabels(rows []parser.Row, docSig *docSignals, override domain.AccountKind) []parser.Row {
	docKind := documentKind(docSig, override)
	out := make([]parser.Row, len(rows))
	for i, row := range rows {
		switch {
		case override != "" && override != domain.AccountUnknown:
			row.Account = override
		case row.Account == domain.AccountUnknown && docKind != domain.AccountUnknown:
			row.Account = docKind
		case !domain.ValidateAccountKind(row.Account):
			row.Account = domain.AccountUnknown
		}
		out[i] = row
	}
	return out
}

// documentKind resolves the document-level classification.
func documentKind(docSig *docSignals, override domain.AccountKind) domain.AccountKind {
	if override != "" && override != domain.AccountUnknown {
		return override
	}
	return docSig.DominantKind().label()
}
