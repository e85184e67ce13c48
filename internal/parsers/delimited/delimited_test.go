package delimited

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/parser"
)

func testMeta(t *testing.T, path string) *parser.Metadata {
	t.Helper()
	meta, err := parser.NewMetadata(path, time.Now())
	if err != nil {
		t.Fatalf("NewMetadata() error = %v", err)
	}
	return meta
}

func TestCanParse(t *testing.T) {
	p := NewParser(nil, nil)

	tests := []struct {
		name   string
		path   string
		header string
		want   bool
	}{
		{"csv with commas", "statement.csv", "Date,Description,Amount\n", true},
		{"tsv with tabs", "activity.tsv", "Date\tDescription\tAmount\n", true},
		{"txt tab-delimited", "export.txt", "Date\tPayee\tValue\n", true},
		{"wrong extension", "statement.pdf", "Date,Description,Amount\n", false},
		{"no delimiter", "notes.txt", "just some prose here\n", false},
		{"uppercase extension", "STATEMENT.CSV", "Date,Amount\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.CanParse(tt.path, []byte(tt.header))
			if got != tt.want {
				t.Errorf("CanParse(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParse_AutoMapped(t *testing.T) {
	input := `Date,Description,Amount,Balance
01/15/2026,DIRECT DEPOSIT ACME CORP,2500.00,3100.50
01/18/2026,GROCERY MART,-54.23,3046.27
01/20/2026,MONTHLY SERVICE FEE,-12.00,3034.27
`
	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "checking.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(imp.Transactions) != 3 {
		t.Fatalf("Parse() transactions = %d, want 3", len(imp.Transactions))
	}

	first := imp.Transactions[0]
	if first.DatePosted != "2026-01-15" {
		t.Errorf("DatePosted = %s, want 2026-01-15", first.DatePosted)
	}
	if first.Amount != 2500.00 {
		t.Errorf("Amount = %f, want 2500.00", first.Amount)
	}
	if first.Payee != "DIRECT DEPOSIT ACME CORP" {
		t.Errorf("Payee = %q", first.Payee)
	}
	if !first.Include {
		t.Error("delimited transactions should default to included")
	}
	if first.HashKey == "" {
		t.Error("HashKey should be populated")
	}

	if imp.Transactions[1].Amount != -54.23 {
		t.Errorf("Transactions[1].Amount = %f, want -54.23", imp.Transactions[1].Amount)
	}
	if imp.Transactions[2].Kind != domain.KindFee {
		t.Errorf("Transactions[2].Kind = %s, want fee", imp.Transactions[2].Kind)
	}
}

func TestParse_CurrencyFormattedAmounts(t *testing.T) {
	input := `Date,Description,Amount,Balance
01/15/2026,DIRECT DEPOSIT ACME CORP,"$2,500.00",
01/18/2026,RETURNED CHECK,(45.00),
01/20/2026,WIRE FEE,15.00 DR,
01/31/2026,Ending Balance,,"$1,750.00"
`
	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "checking.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(imp.Transactions) != 3 {
		t.Fatalf("Parse() transactions = %d, want 3", len(imp.Transactions))
	}
	wantAmounts := []float64{2500.00, -45.00, -15.00}
	for i, want := range wantAmounts {
		if imp.Transactions[i].Amount != want {
			t.Errorf("Transactions[%d].Amount = %f, want %f", i, imp.Transactions[i].Amount, want)
		}
	}

	if len(imp.Balances) != 1 {
		t.Fatalf("Parse() balances = %d, want 1", len(imp.Balances))
	}
	if imp.Balances[0].Balance != 1750.00 {
		t.Errorf("Balances[0].Balance = %f, want 1750.00", imp.Balances[0].Balance)
	}
}

func TestParse_DebitCreditMerge(t *testing.T) {
	input := `Posted Date,Details,Debit,Credit
02/01/2026,CARD PURCHASE COFFEE,4.75,
02/02/2026,REFUND RETURN,,19.99
02/03/2026,ATM WITHDRAWAL,100.00,
`
	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "card.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(imp.Transactions) != 3 {
		t.Fatalf("Parse() transactions = %d, want 3", len(imp.Transactions))
	}

	wantAmounts := []float64{-4.75, 19.99, -100.00}
	for i, want := range wantAmounts {
		if imp.Transactions[i].Amount != want {
			t.Errorf("Transactions[%d].Amount = %f, want %f", i, imp.Transactions[i].Amount, want)
		}
	}
}

func TestParse_ExplicitMapping(t *testing.T) {
	input := `When;What;How Much
2026-03-01;WIRE TRANSFER OUT;-1200.00
2026-03-05;PAYROLL;3400.00
`
	mapping := &ColumnMapping{Date: "When", Description: "What", Amount: "How Much"}
	p := NewParser(mapping, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "export.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(imp.Transactions) != 2 {
		t.Fatalf("Parse() transactions = %d, want 2", len(imp.Transactions))
	}
	if imp.Transactions[0].DatePosted != "2026-03-01" {
		t.Errorf("DatePosted = %s, want 2026-03-01", imp.Transactions[0].DatePosted)
	}
	if imp.Transactions[0].Kind != domain.KindTransfer {
		t.Errorf("Kind = %s, want transfer", imp.Transactions[0].Kind)
	}
}

func TestParse_MissingDateColumn(t *testing.T) {
	input := `Description,Amount
SOMETHING,10.00
`
	p := NewParser(nil, nil)
	_, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "bad.csv"))

	var missing *parser.MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("Parse() error = %v, want MissingColumnError", err)
	}
	if missing.Column != "date" {
		t.Errorf("missing column = %s, want date", missing.Column)
	}
}

func TestParse_MissingAmountColumns(t *testing.T) {
	input := `Date,Description
01/01/2026,SOMETHING
`
	p := NewParser(nil, nil)
	_, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "bad.csv"))

	var missing *parser.MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("Parse() error = %v, want MissingColumnError", err)
	}
	if missing.Column != "amount" {
		t.Errorf("missing column = %s, want amount", missing.Column)
	}
}

func TestParse_Holdings(t *testing.T) {
	input := `Date,Description,Amount,Symbol,Quantity,Price
06/30/2026,POSITION SNAPSHOT VTI,,VTI,120.5,265.40
06/30/2026,POSITION SNAPSHOT BND,,BND,300,72.10
`
	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "brokerage.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(imp.Holdings) != 2 {
		t.Fatalf("Parse() holdings = %d, want 2", len(imp.Holdings))
	}
	h := imp.Holdings[0]
	if h.Symbol != "VTI" {
		t.Errorf("Symbol = %s, want VTI", h.Symbol)
	}
	if h.Quantity != 120.5 {
		t.Errorf("Quantity = %f, want 120.5", h.Quantity)
	}
	if h.AsOfDate != "2026-06-30" {
		t.Errorf("AsOfDate = %s, want 2026-06-30", h.AsOfDate)
	}
	wantMV := 120.5 * 265.40
	if h.MarketValue < wantMV-0.01 || h.MarketValue > wantMV+0.01 {
		t.Errorf("MarketValue = %f, want %f", h.MarketValue, wantMV)
	}
}

func TestParse_BalanceOnlyRows(t *testing.T) {
	input := `Date,Description,Amount,Balance,Account
01/01/2026,Beginning Balance,,1500.00,checking
01/31/2026,Ending Balance,,1750.00,checking
`
	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "summary.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(imp.Transactions) != 0 {
		t.Errorf("Parse() transactions = %d, want 0", len(imp.Transactions))
	}
	if len(imp.Balances) != 2 {
		t.Fatalf("Parse() balances = %d, want 2", len(imp.Balances))
	}
	if imp.Balances[0].Balance != 1500.00 {
		t.Errorf("Balances[0].Balance = %f, want 1500.00", imp.Balances[0].Balance)
	}
	if imp.Balances[0].SourceAccountLabel != domain.AccountChecking {
		t.Errorf("SourceAccountLabel = %s, want checking", imp.Balances[0].SourceAccountLabel)
	}
}

func TestParse_AccountHintWins(t *testing.T) {
	input := `Date,Description,Amount,Account
01/05/2026,PAYMENT RECEIVED,-25.00,checking
`
	meta := testMeta(t, "card.csv")
	meta.SetAccountHint(domain.AccountCreditCard)

	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), meta)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if imp.AccountTypeHint != domain.AccountCreditCard {
		t.Errorf("AccountTypeHint = %s, want creditCard", imp.AccountTypeHint)
	}
}

func TestParse_SkipsUndatedRows(t *testing.T) {
	input := `Date,Description,Amount
Pending transactions,,
01/10/2026,COFFEE SHOP,-3.50
"",disclaimer text here,
`
	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "a.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(imp.Transactions) != 1 {
		t.Errorf("Parse() transactions = %d, want 1", len(imp.Transactions))
	}
}

func TestParse_Windows1252(t *testing.T) {
	// 0xC9 is É in Windows-1252 and invalid on its own in UTF-8.
	input := []byte("Date,Description,Amount\n01/02/2026,CAF\xc9 DU MONDE,-8.00\n")
	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(string(input)), testMeta(t, "latin.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(imp.Transactions) != 1 {
		t.Fatalf("Parse() transactions = %d, want 1", len(imp.Transactions))
	}
	if imp.Transactions[0].Payee != "CAFÉ DU MONDE" {
		t.Errorf("Payee = %q, want CAFÉ DU MONDE", imp.Transactions[0].Payee)
	}
}

func TestParse_UTF8BOM(t *testing.T) {
	input := "\xEF\xBB\xBFDate,Description,Amount\n01/02/2026,SHOP,-5.00\n"
	p := NewParser(nil, nil)
	imp, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t, "bom.csv"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(imp.Transactions) != 1 {
		t.Errorf("Parse() transactions = %d, want 1", len(imp.Transactions))
	}
}

func TestParse_EmptyFile(t *testing.T) {
	p := NewParser(nil, nil)
	_, err := p.Parse(context.Background(), strings.NewReader("Date,Amount\n"), testMeta(t, "empty.csv"))

	var failure *parser.ParseFailureError
	if !errors.As(err, &failure) {
		t.Errorf("Parse() error = %v, want ParseFailureError", err)
	}
}

func TestParse_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewParser(nil, nil)
	_, err := p.Parse(ctx, strings.NewReader("Date,Amount\n01/01/2026,1.00\n"), testMeta(t, "a.csv"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Parse() error = %v, want context.Canceled", err)
	}
}

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   rune
	}{
		{"comma", "a,b,c", ','},
		{"tab", "a\tb\tc", '\t'},
		{"semicolon", "a;b;c", ';'},
		{"comma wins tie", "a,b;c,d", ','},
		{"none", "plain text", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffDelimiter(tt.header); got != tt.want {
				t.Errorf("sniffDelimiter(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestLoadMapping(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "mapping.yaml")
	yaml := `
date: "Posting Date"
description: "Transaction Detail"
debit: "Withdrawals"
credit: "Deposits"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	m, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping() error = %v", err)
	}
	if m.Date != "Posting Date" {
		t.Errorf("m.Date = %q, want Posting Date", m.Date)
	}
	if m.Credit != "Deposits" {
		t.Errorf("m.Credit = %q, want Deposits", m.Credit)
	}

	if _, err := LoadMapping(filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("LoadMapping() expected error for missing file")
	}
}

func TestCanonicalDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"01/15/2026", "01/15/2026", false},
		{"1/5/2026", "01/05/2026", false},
		{"2026-01-15", "01/15/2026", false},
		{"Jan 15, 2026", "01/15/2026", false},
		{"01/15/26", "01/15/2026", false},
		{"not a date", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := canonicalDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("canonicalDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("canonicalDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
