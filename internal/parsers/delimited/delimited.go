// Package delimited parses delimited-text statement exports (CSV, TSV,
// semicolon-separated) into staged imports. Column layout is resolved from
// an explicit mapping when supplied, otherwise by fuzzy header matching
// against common export vocabularies.
package delimited

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/extract"
	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/rules"
	stage "github.com/harmonsoft/stmtstage/internal/transform"
)

// ColumnMapping names the header of each logical column. Date, Description,
// and either Amount or the Debit/Credit pair are required for transactions;
// the rest are optional. Matching against headers is case-insensitive.
type ColumnMapping struct {
	Date        string `yaml:"date"`
	Description string `yaml:"description"`
	Amount      string `yaml:"amount"`
	Debit       string `yaml:"debit"`
	Credit      string `yaml:"credit"`
	Balance     string `yaml:"balance"`
	Account     string `yaml:"account"`
	Symbol      string `yaml:"symbol"`
	Quantity    string `yaml:"quantity"`
	Price       string `yaml:"price"`
}

// LoadMapping reads an explicit column mapping from a YAML file.
func LoadMapping(path string) (*ColumnMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column mapping: %w", err)
	}
	var m ColumnMapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse column mapping %q: %w", path, err)
	}
	return &m, nil
}

// Parser implements delimited-text parsing. Construct with NewParser; the
// zero value auto-maps columns and classifies kinds by keyword only.
type Parser struct {
	mapping *ColumnMapping
	stager  *stage.Stager
}

// NewParser creates a delimited parser. mapping may be nil to rely on header
// auto-mapping; engine may be nil to skip rules-based kind classification.
// Delimited exports come straight from the institution, so staged
// transactions default to included.
func NewParser(mapping *ColumnMapping, engine *rules.Engine) *Parser {
	return &Parser{
		mapping: mapping,
		stager:  stage.NewStager(engine, true),
	}
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "delimited"
}

// extensions this parser claims. .txt is included because several brokerages
// export tab-delimited activity under that extension.
var extensions = map[string]bool{
	".csv": true,
	".tsv": true,
	".txt": true,
}

// CanParse checks extension and that the first line splits on a known
// delimiter into at least two fields.
func (p *Parser) CanParse(path string, header []byte) bool {
	if !extensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	decoded, err := decode(header)
	if err != nil {
		return false
	}
	firstLine, _, _ := strings.Cut(string(decoded), "\n")
	return sniffDelimiter(firstLine) != 0
}

// Parse reads the full stream, resolves the column layout, and stages one
// record per usable data row.
func (p *Parser) Parse(ctx context.Context, r io.Reader, meta *parser.Metadata) (*domain.StagedImport, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited content: %w", err)
	}

	decoded, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode delimited content: %w", err)
	}

	firstLine, _, _ := strings.Cut(string(decoded), "\n")
	delim := sniffDelimiter(firstLine)
	if delim == 0 {
		return nil, parser.NewParseFailure("no delimiter found in %q; expected comma, tab, or semicolon separated data", firstLine)
	}

	csvReader := csv.NewReader(bytes.NewReader(decoded))
	csvReader.Comma = delim
	csvReader.LazyQuotes = true
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read delimited records: %w", err)
	}
	if len(records) < 2 {
		return nil, parser.NewParseFailure("delimited file has no data rows beneath the header")
	}

	tbl := &parser.Table{Headers: records[0], Records: records[1:]}
	idx, err := p.resolveColumns(tbl.Headers)
	if err != nil {
		return nil, err
	}

	imp, err := newImport(p.Name(), meta)
	if err != nil {
		return nil, err
	}
	for _, rec := range tbl.Records {
		if err := p.stageRecord(rec, idx, meta, imp); err != nil {
			return nil, err
		}
	}

	if imp.Empty() {
		return nil, parser.NewParseFailure("no usable rows in delimited file; check the column mapping")
	}
	return imp, nil
}

// newImport builds the empty staged import for a source file.
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

// decode returns UTF-8 text. Valid UTF-8 passes through; anything else is
// treated as Windows-1252, which also covers plain ASCII and Latin-1
// exports.
func decode(raw []byte) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(raw) {
		return raw, nil
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return nil, fmt.Errorf("windows-1252 decode: %w", err)
	}
	return decoded, nil
}

// sniffDelimiter picks the candidate delimiter occurring most often in the
// header line, preferring comma on ties. Returns 0 when none occur.
func sniffDelimiter(headerLine string) rune {
	best, bestCount := rune(0), 0
	for _, c := range []rune{',', '\t', ';'} {
		if n := strings.Count(headerLine, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// columnIndex holds resolved column positions; -1 marks an absent column.
type columnIndex struct {
	date, description, amount, debit, credit  int
	balance, account, symbol, quantity, price int
}

// autoMapFamilies are the header vocabularies tried in order for each
// logical column. Earlier entries win, so "transaction date" beats "posted".
var autoMapFamilies = map[string][]string{
	"date":        {"transaction date", "trans date", "posted date", "post date", "date", "posted"},
	"description": {"description", "payee", "memo", "details", "narrative", "transaction"},
	"amount":      {"amount", "value"},
	"debit":       {"debit", "withdrawals", "withdrawal", "money out"},
	"credit":      {"credit", "deposits", "deposit", "money in"},
	"balance":     {"balance", "running balance", "running bal"},
	"account":     {"account type", "account", "type"},
	"symbol":      {"symbol", "ticker", "security"},
	"quantity":    {"quantity", "shares", "units"},
	"price":       {"price", "share price"},
}

// resolveColumns maps logical columns to record positions, from the explicit
// mapping when present and header auto-mapping otherwise.
func (p *Parser) resolveColumns(headers []string) (*columnIndex, error) {
	idx := &columnIndex{
		date: -1, description: -1, amount: -1, debit: -1, credit: -1,
		balance: -1, account: -1, symbol: -1, quantity: -1, price: -1,
	}

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	find := func(explicit, logical string) int {
		if explicit != "" {
			want := strings.ToLower(strings.TrimSpace(explicit))
			for i, h := range normalized {
				if h == want {
					return i
				}
			}
			return -1
		}
		for _, keyword := range autoMapFamilies[logical] {
			for i, h := range normalized {
				if h == keyword || strings.Contains(h, keyword) {
					return i
				}
			}
		}
		return -1
	}

	var m ColumnMapping
	if p.mapping != nil {
		m = *p.mapping
	}

	idx.date = find(m.Date, "date")
	idx.description = find(m.Description, "description")
	idx.amount = find(m.Amount, "amount")
	idx.debit = find(m.Debit, "debit")
	idx.credit = find(m.Credit, "credit")
	idx.balance = find(m.Balance, "balance")
	idx.account = find(m.Account, "account")
	idx.symbol = find(m.Symbol, "symbol")
	idx.quantity = find(m.Quantity, "quantity")
	idx.price = find(m.Price, "price")

	if idx.date == -1 {
		return nil, &parser.MissingColumnError{Column: "date"}
	}
	if idx.description == -1 {
		return nil, &parser.MissingColumnError{Column: "description"}
	}
	if idx.amount == -1 && idx.debit == -1 && idx.credit == -1 && idx.balance == -1 {
		return nil, &parser.MissingColumnError{Column: "amount"}
	}
	return idx, nil
}

// field returns the trimmed cell at position i, or empty when out of range.
func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// stageRecord converts one data row. A row may yield a transaction, a
// balance, a holding, or nothing at all; blank rows are skipped silently.
func (p *Parser) stageRecord(rec []string, idx *columnIndex, meta *parser.Metadata, imp *domain.StagedImport) error {
	date := field(rec, idx.date)
	desc := field(rec, idx.description)
	if date == "" && desc == "" {
		return nil
	}

	canonical, err := canonicalDate(date)
	if err != nil {
		// Section headers and disclaimer rows inside exports carry no
		// parseable date. Skip rather than fail the whole file.
		return nil
	}

	account := accountFromField(field(rec, idx.account), meta)

	amount, hasAmount := mergedAmount(rec, idx)
	if hasAmount {
		// Exports render amounts every which way: "$2,500.00", "(45.00)",
		// "45.00 DR". Normalize before the stager's strict float parse.
		txn, err := p.stager.Transaction(parser.Row{
			Date:        canonical,
			Description: desc,
			Amount:      extract.NormalizeAmount(amount),
			Balance:     field(rec, idx.balance),
			Account:     account,
		})
		if err != nil {
			return fmt.Errorf("row %q: %w", desc, err)
		}
		imp.Transactions = append(imp.Transactions, *txn)
	} else if bal := field(rec, idx.balance); bal != "" {
		b, err := p.stager.Balance(parser.Row{
			Date:        canonical,
			Description: desc,
			Amount:      extract.NormalizeAmount(bal),
			Account:     account,
		})
		if err != nil {
			return fmt.Errorf("balance row %q: %w", desc, err)
		}
		imp.Balances = append(imp.Balances, *b)
	}

	if sym := field(rec, idx.symbol); sym != "" && idx.quantity != -1 {
		qty, err := strconv.ParseFloat(strings.ReplaceAll(field(rec, idx.quantity), ",", ""), 64)
		if err != nil || qty == 0 {
			return nil
		}
		mv := 0.0
		if price := field(rec, idx.price); price != "" {
			if pv, err := strconv.ParseFloat(strings.TrimPrefix(strings.ReplaceAll(price, ",", ""), "$"), 64); err == nil {
				mv = pv * qty
			}
		}
		h, err := p.stager.Holding(canonical, sym, qty, mv)
		if err != nil {
			return fmt.Errorf("holding row %q: %w", sym, err)
		}
		imp.Holdings = append(imp.Holdings, *h)
	}
	return nil
}

// mergedAmount resolves the signed amount string for a row: the amount
// column when present, otherwise the debit/credit pair with debit negated.
func mergedAmount(rec []string, idx *columnIndex) (string, bool) {
	if v := field(rec, idx.amount); v != "" {
		return v, true
	}
	debit := field(rec, idx.debit)
	credit := field(rec, idx.credit)
	switch {
	case debit != "" && debit != "0" && debit != "0.00":
		if strings.HasPrefix(debit, "-") || strings.HasPrefix(debit, "(") {
			return debit, true
		}
		return "-" + debit, true
	case credit != "":
		return credit, true
	default:
		return "", false
	}
}

// accountFromField resolves the row's account kind: the caller override
// first, then the account column value, otherwise unknown.
func accountFromField(value string, meta *parser.Metadata) domain.AccountKind {
	if hint := meta.AccountHint(); hint != "" {
		return hint
	}
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case strings.Contains(v, "check"):
		return domain.AccountChecking
	case strings.Contains(v, "sav"):
		return domain.AccountSavings
	case strings.Contains(v, "brokerage"), strings.Contains(v, "invest"):
		return domain.AccountBrokerage
	case strings.Contains(v, "loan"), strings.Contains(v, "mortgage"):
		return domain.AccountLoan
	case strings.Contains(v, "credit"):
		return domain.AccountCreditCard
	default:
		return domain.AccountUnknown
	}
}

// dateLayouts are the export date forms accepted, tried in order.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// canonicalDate parses an export date into the MM/dd/yyyy interchange form.
func canonicalDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("01/02/2006"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}
