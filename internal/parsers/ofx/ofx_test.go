package ofx

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/parser"
)

const bankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260201120000
<LANGUAGE>ENG
<FI>
<ORG>FAKEBANK
<FID>1001
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>9876543210
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260101
<DTEND>20260131
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260105
<TRNAMT>2500.00
<FITID>T-1001
<NAME>DIRECT DEPOSIT ACME
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260108
<TRNAMT>-54.23
<FITID>T-1002
<NAME>GROCERY MART
<MEMO>POS PURCHASE
</STMTTRN>
<STMTTRN>
<TRNTYPE>FEE
<DTPOSTED>20260131
<TRNAMT>-12.00
<FITID>T-1003
<NAME>MONTHLY SERVICE FEE
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>3945.77
<DTASOF>20260131
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

const creditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260201120000
<LANGUAGE>ENG
<FI>
<ORG>FAKECARD
<FID>2002
</FI>
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20260101
<DTEND>20260131
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260110
<TRNAMT>-89.99
<FITID>C-2001
<NAME>ONLINE RETAILER
</STMTTRN>
<STMTTRN>
<TRNTYPE>PAYMENT
<DTPOSTED>20260120
<TRNAMT>300.00
<FITID>C-2002
<NAME>PAYMENT THANK YOU
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>950.00
<DTASOF>20260131
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>
`

func testMeta(t *testing.T, path string) *parser.Metadata {
	t.Helper()
	meta, err := parser.NewMetadata(path, time.Now())
	if err != nil {
		t.Fatalf("NewMetadata() error = %v", err)
	}
	return meta
}

func TestCanParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name   string
		path   string
		header string
		want   bool
	}{
		{"ofx v1 header", "statement.ofx", "OFXHEADER:100\nDATA:OFXSGML", true},
		{"qfx extension", "download.qfx", "OFXHEADER:100", true},
		{"ofx v2 xml", "statement.ofx", `<?xml version="1.0"?><?OFX OFXHEADER="200"?>`, true},
		{"bare ofx tag", "statement.ofx", "<OFX><SIGNONMSGSRSV1>", true},
		{"wrong extension", "statement.csv", "OFXHEADER:100", false},
		{"no marker", "statement.ofx", "Date,Description,Amount", false},
		{"case insensitive extension", "STATEMENT.OFX", "OFXHEADER:100", true},
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

func TestParse_BankStatement(t *testing.T) {
	p := NewParser()
	imp, err := p.Parse(context.Background(), strings.NewReader(bankOFX), testMeta(t, "checking.ofx"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if imp.ParserID != "ofx" {
		t.Errorf("ParserID = %q, want ofx", imp.ParserID)
	}
	if imp.Institution != "FAKEBANK" {
		t.Errorf("Institution = %q, want FAKEBANK", imp.Institution)
	}
	if imp.AccountTypeHint != domain.AccountChecking {
		t.Errorf("AccountTypeHint = %s, want checking", imp.AccountTypeHint)
	}

	if len(imp.Transactions) != 3 {
		t.Fatalf("Parse() transactions = %d, want 3", len(imp.Transactions))
	}

	first := imp.Transactions[0]
	if first.DatePosted != "2026-01-05" {
		t.Errorf("DatePosted = %s, want 2026-01-05", first.DatePosted)
	}
	if first.Amount != 2500.00 {
		t.Errorf("Amount = %f, want 2500.00", first.Amount)
	}
	if first.ExternalID != "T-1001" {
		t.Errorf("ExternalID = %s, want T-1001", first.ExternalID)
	}
	if first.Kind != domain.KindDeposit {
		t.Errorf("Kind = %s, want deposit", first.Kind)
	}
	if !first.Include {
		t.Error("OFX transactions should default to included")
	}
	if first.HashKey == "" {
		t.Error("HashKey should be populated")
	}

	if imp.Transactions[1].Memo != "POS PURCHASE" {
		t.Errorf("Transactions[1].Memo = %q, want POS PURCHASE", imp.Transactions[1].Memo)
	}
	if imp.Transactions[2].Kind != domain.KindFee {
		t.Errorf("Transactions[2].Kind = %s, want fee", imp.Transactions[2].Kind)
	}

	if len(imp.Balances) != 1 {
		t.Fatalf("Parse() balances = %d, want 1", len(imp.Balances))
	}
	bal := imp.Balances[0]
	if bal.Balance != 3945.77 {
		t.Errorf("Balance = %f, want 3945.77", bal.Balance)
	}
	if bal.AsOfDate != "2026-01-31" {
		t.Errorf("AsOfDate = %s, want 2026-01-31", bal.AsOfDate)
	}
}

func TestParse_CreditCardStatement(t *testing.T) {
	p := NewParser()
	imp, err := p.Parse(context.Background(), strings.NewReader(creditCardOFX), testMeta(t, "card.qfx"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if imp.AccountTypeHint != domain.AccountCreditCard {
		t.Errorf("AccountTypeHint = %s, want creditCard", imp.AccountTypeHint)
	}
	if len(imp.Transactions) != 2 {
		t.Fatalf("Parse() transactions = %d, want 2", len(imp.Transactions))
	}
	if imp.Transactions[0].Amount != -89.99 {
		t.Errorf("Amount = %f, want -89.99", imp.Transactions[0].Amount)
	}
	if imp.Transactions[1].Kind != domain.KindWithdrawal {
		t.Errorf("payment Kind = %s, want withdrawal", imp.Transactions[1].Kind)
	}

	// Issuer reports the amount owed as a positive ledger balance; the
	// staged balance must come out negative.
	if len(imp.Balances) != 1 {
		t.Fatalf("Parse() balances = %d, want 1", len(imp.Balances))
	}
	if imp.Balances[0].Balance != -950.00 {
		t.Errorf("Balance = %f, want -950.00", imp.Balances[0].Balance)
	}
	if imp.Balances[0].SourceAccountLabel != domain.AccountCreditCard {
		t.Errorf("SourceAccountLabel = %s, want creditCard", imp.Balances[0].SourceAccountLabel)
	}
}

func TestParse_MetadataInstitutionWins(t *testing.T) {
	meta := testMeta(t, "checking.ofx")
	meta.SetInstitution("My Credit Union")

	p := NewParser()
	imp, err := p.Parse(context.Background(), strings.NewReader(bankOFX), meta)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if imp.Institution != "My Credit Union" {
		t.Errorf("Institution = %q, want My Credit Union", imp.Institution)
	}
}

func TestParse_AccountHintOverride(t *testing.T) {
	meta := testMeta(t, "checking.ofx")
	meta.SetAccountHint(domain.AccountSavings)

	p := NewParser()
	imp, err := p.Parse(context.Background(), strings.NewReader(bankOFX), meta)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if imp.AccountTypeHint != domain.AccountSavings {
		t.Errorf("AccountTypeHint = %s, want savings", imp.AccountTypeHint)
	}
}

func TestParse_InvalidContent(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(context.Background(), strings.NewReader("not an ofx file"), testMeta(t, "bad.ofx"))
	if err == nil {
		t.Error("Parse() expected error for invalid content")
	}
}

func TestParse_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewParser()
	_, err := p.Parse(ctx, strings.NewReader(bankOFX), testMeta(t, "checking.ofx"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Parse() error = %v, want context.Canceled", err)
	}
}
