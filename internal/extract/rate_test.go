package extract

import "testing"

func TestExtractRatePurchaseAPRWins(t *testing.T) {
	lines := []string{
		"Purchase APR 24.99%",
		"some filler text",
		"Cash Advance APR 29.99%",
		"more filler text",
		"Penalty APR 34.99%",
	}
	rate, scale, ok := ExtractRate(lines)
	if !ok {
		t.Fatal("expected a rate")
	}
	if rate != 24.99 {
		t.Errorf("rate = %v, want 24.99", rate)
	}
	if scale != 2 {
		t.Errorf("scale = %v, want 2", scale)
	}
}

func TestExtractRateRejectsRewards(t *testing.T) {
	lines := []string{"Earn 1.5% cash back on all purchases"}
	if _, _, ok := ExtractRate(lines); ok {
		t.Error("rewards percentages should never surface as a rate")
	}
}

func TestExtractRateRejectsForeignTransactionFee(t *testing.T) {
	lines := []string{"A foreign transaction fee of 3% applies"}
	if _, _, ok := ExtractRate(lines); ok {
		t.Error("FX fee percentages should never surface as a rate")
	}
}

func TestExtractRateRejectsNoInterestOffers(t *testing.T) {
	lines := []string{"Enjoy no interest for 12 months at 0% then 26.99%"}
	rate, _, ok := ExtractRate(lines)
	if ok {
		t.Errorf("no-interest offer window should reject all candidates, got %v", rate)
	}
}

func TestExtractRateValueBounds(t *testing.T) {
	if _, _, ok := ExtractRate([]string{"Interest rate 0.05%"}); ok {
		t.Error("sub-half-percent values are implausible APRs")
	}
	if _, _, ok := ExtractRate([]string{"Interest rate 95%"}); ok {
		t.Error("values above 60 are implausible APRs")
	}
}

func TestExtractRateBankingYieldRejected(t *testing.T) {
	lines := []string{"Savings Annual Percentage Yield 4.35%"}
	if _, _, ok := ExtractRate(lines); ok {
		t.Error("deposit APY should not surface as a liability rate")
	}
}

func TestExtractRateLoanNoteRate(t *testing.T) {
	lines := []string{"Note rate on your mortgage principal 6.125%"}
	rate, scale, ok := ExtractRate(lines)
	if !ok {
		t.Fatal("expected the loan note rate")
	}
	if rate != 6.125 || scale != 3 {
		t.Errorf("got %v scale %d, want 6.125 scale 3", rate, scale)
	}
}

func TestExtractRateInterestChargesTable(t *testing.T) {
	lines := []string{
		"Intro offer was 0% previously",
		"Interest Charge Calculation",
		"Annual Percentage Rate (APR)",
		"Balance Subject to Interest Rate",
		"Purchases 24.99% 312.50 6.51",
		"Cash Advances 29.99% 0.00 0.00",
	}
	rate, scale, ok := ExtractRate(lines)
	if !ok {
		t.Fatal("expected a rate from the interest charges table")
	}
	if rate != 24.99 {
		t.Errorf("table sub-scan should take the purchases row, got %v", rate)
	}
	if scale != 2 {
		t.Errorf("scale = %d, want 2", scale)
	}
}

func TestExtractRateRangeUpperBoundDemoted(t *testing.T) {
	lines := []string{
		"Variable purchase APR 18.24% to 28.24%",
		"filler line",
		"Purchase APR 21.99%",
	}
	rate, _, ok := ExtractRate(lines)
	if !ok {
		t.Fatal("expected a rate")
	}
	if rate == 28.24 {
		t.Error("the upper end of a quoted range should lose to a flat quote")
	}
}

func TestExtractRateNone(t *testing.T) {
	if _, _, ok := ExtractRate([]string{"no percentages anywhere"}); ok {
		t.Error("expected no rate")
	}
}

func TestDecimalScale(t *testing.T) {
	tests := []struct {
		s    string
		want int
	}{
		{"24.99", 2},
		{"6.125", 3},
		{"5", 0},
	}
	for _, tt := range tests {
		if got := decimalScale(tt.s); got != tt.want {
			t.Errorf("decimalScale(%q) = %d, want %d", tt.s, got, tt.want)
		}
	}
}
