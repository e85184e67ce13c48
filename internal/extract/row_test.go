package extract

import (
	"testing"

	"github.com/harmonsoft/stmtstage/internal/domain"
)

func TestReconstructSingleLine(t *testing.T) {
	row, consumed, ok := reconstructAt([]string{"01/05 DIRECT DEPOSIT PAYROLL 2,500.00"}, 0)
	if !ok || consumed != 1 {
		t.Fatalf("ok=%v consumed=%d", ok, consumed)
	}
	if row.date != "01/05" || row.desc != "DIRECT DEPOSIT PAYROLL" || row.amount != "2,500.00" || row.balance != "" {
		t.Errorf("row = %+v", row)
	}
}

func TestReconstructSingleLineWithBalance(t *testing.T) {
	row, _, ok := reconstructAt([]string{"01/05 DEBIT CARD PURCHASE 45.00 1,255.00"}, 0)
	if !ok {
		t.Fatal("expected a match")
	}
	if row.amount != "45.00" || row.balance != "1,255.00" {
		t.Errorf("amount=%q balance=%q, want adjacent amount/balance split", row.amount, row.balance)
	}
}

func TestReconstructPostDatePreferred(t *testing.T) {
	row, _, ok := reconstructAt([]string{"01/03 01/05 AMAZON MARKETPLACE 25.00"}, 0)
	if !ok {
		t.Fatal("expected a match")
	}
	if row.date != "01/05" {
		t.Errorf("date = %q, want the post date 01/05", row.date)
	}
	if row.desc != "AMAZON MARKETPLACE" {
		t.Errorf("desc = %q", row.desc)
	}
}

func TestReconstructMoneyMidDescriptionRejected(t *testing.T) {
	lines := []string{"01/05 CHECK FOR 50.00 CLEARED LATER", "some next line"}
	if _, _, ok := reconstructAt(lines, 0); ok {
		t.Error("money embedded mid-description is not a structured row")
	}
}

func TestReconstructTwoLine(t *testing.T) {
	lines := []string{"01/07 ATM WITHDRAWAL", "60.00"}
	row, consumed, ok := reconstructAt(lines, 0)
	if !ok || consumed != 2 {
		t.Fatalf("ok=%v consumed=%d", ok, consumed)
	}
	if row.desc != "ATM WITHDRAWAL" || row.amount != "60.00" {
		t.Errorf("row = %+v", row)
	}
}

func TestReconstructMultiLineWrappedDescription(t *testing.T) {
	lines := []string{
		"01/12 MOBILE DEPOSIT",
		"CHECK 4021",
		"100.00",
	}
	row, consumed, ok := reconstructAt(lines, 0)
	if !ok || consumed != 3 {
		t.Fatalf("ok=%v consumed=%d", ok, consumed)
	}
	if row.desc != "MOBILE DEPOSIT CHECK 4021" || row.amount != "100.00" {
		t.Errorf("row = %+v", row)
	}
}

func TestReconstructMultiLineAmountAndBalance(t *testing.T) {
	lines := []string{
		"01/09 CARD PAYMENT",
		"35.00 1,220.00",
	}
	row, _, ok := reconstructAt(lines, 0)
	if !ok {
		t.Fatal("expected a match")
	}
	if row.amount != "35.00" || row.balance != "1,220.00" {
		t.Errorf("amount=%q balance=%q", row.amount, row.balance)
	}
}

func TestReconstructMultiLineAbortsOnTotals(t *testing.T) {
	lines := []string{
		"01/05 SERVICE CHARGE NOTICE",
		"Total fees this period 15.00",
	}
	if _, _, ok := reconstructAt(lines, 0); ok {
		t.Error("a totals line must never complete a reconstruction")
	}
}

func TestReconstructMultiLineAbortsOnNextDate(t *testing.T) {
	lines := []string{
		"01/05 PENDING REVIEW",
		"01/06 NEXT ITEM 10.00",
	}
	if _, _, ok := reconstructAt(lines, 0); ok {
		t.Error("a following date line ends the candidate without a row")
	}
}

func TestReconstructMultiLineContinuesPastLetteredMoney(t *testing.T) {
	lines := []string{
		"01/15 WIRE TRANSFER",
		"INVOICE 22.50 ADJUSTMENT APPLIED",
		"250.00",
	}
	row, consumed, ok := reconstructAt(lines, 0)
	if !ok || consumed != 3 {
		t.Fatalf("ok=%v consumed=%d", ok, consumed)
	}
	if row.desc != "WIRE TRANSFER INVOICE 22.50 ADJUSTMENT APPLIED" {
		t.Errorf("desc = %q", row.desc)
	}
	if row.amount != "250.00" {
		t.Errorf("amount = %q, lettered money lines are description text", row.amount)
	}
}

func TestSplitLeadingDate(t *testing.T) {
	date, rest, ok := splitLeadingDate("  01/05/2026 COFFEE SHOP")
	if !ok || date != "01/05/2026" || rest != "COFFEE SHOP" {
		t.Errorf("got (%q, %q, %v)", date, rest, ok)
	}
	date, rest, ok = splitLeadingDate("Jan 5, 2026 COFFEE SHOP")
	if !ok || date != "Jan 5, 2026" || rest != "COFFEE SHOP" {
		t.Errorf("month-name form: got (%q, %q, %v)", date, rest, ok)
	}
	if _, _, ok = splitLeadingDate("COFFEE SHOP 01/05"); ok {
		t.Error("date must open the line")
	}
}

func TestIsExcludedLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Total Deposits 3,200.00", true},
		{"Subtotal 120.00", true},
		{"Account Number: 1234", true},
		{"Statement Period 01/01/2026 through 01/31/2026", true},
		{"through 01/31/2026", true},
		{"Deposits and Additions", true},
		{"Withdrawals", true},
		{"01/05 COFFEE SHOP 4.50", false},
		{"MOBILE DEPOSIT", false},
	}
	for _, tt := range tests {
		if got := isExcludedLine(tt.line); got != tt.want {
			t.Errorf("isExcludedLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestFinishRowAppliesFlowAndContext(t *testing.T) {
	st := newScanState("")
	st.flow = flowWithdrawal
	st.account = acctChecking

	row := finishRow(rawRow{date: "01/05", desc: " ATM   FEE ", amount: "3.00"}, st, nil, 2026)
	if row.Date != "01/05/2026" {
		t.Errorf("date = %q", row.Date)
	}
	if row.Description != "ATM FEE" {
		t.Errorf("description = %q, want collapsed spaces", row.Description)
	}
	if row.Amount != "-3.00" {
		t.Errorf("amount = %q, want the withdrawal sign applied", row.Amount)
	}
	if row.Account != domain.AccountChecking {
		t.Errorf("account = %q", row.Account)
	}
}
