package extract

import (
	"strings"
	"time"

	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/patterns"
)

// Label families for the beginning/ending balance post-pass. Matched with
// flexible inter-word whitespace so non-breaking-space renderers still hit.
var (
	beginningLabels = []string{
		"beginning balance", "opening balance", "previous balance",
		"prior balance", "starting balance",
	}
	endingLabels = []string{
		"ending balance", "current balance", "closing balance", "new balance",
		"principal balance", "outstanding balance", "unpaid balance",
		"remaining balance", "unpaid principal balance", "balance as of",
	}
	loanPaymentLabels = []string{
		"regular payment", "payment amount", "total amount due", "monthly payment",
	}
	periodTableCues = []string{"year to date", "ytd", "this period", "year-to-date"}
)

func init() {
	patterns.RegisterPhrases(beginningLabels...)
	patterns.RegisterPhrases(endingLabels...)
	patterns.RegisterPhrases(loanPaymentLabels...)
}

// accountBuckets accumulates the resolved beginning/ending amounts per
// account kind discovered by the summary scan.
type accountBuckets struct {
	begin map[acctKind]string
	end   map[acctKind]string
}

// SynthesizeSummaries runs the summary balance post-pass over the full line
// set (balance tables frequently sit outside the transactional body) and
// returns synthetic beginning/ending rows per account. Liability kinds have
// their balances forced negative; on a credit-card document, balances
// attributed to unknown are reassigned to creditCard and lower-confidence
// deposit/investment buckets are discarded as noise.
func SynthesizeSummaries(lines []string, rows []parser.Row, period *Period, doc *docSignals, override domain.AccountKind) []parser.Row {
	buckets := collectBalanceBuckets(lines, doc, override)
	pruneBuckets(buckets, doc, override)

	beginDate, endDate := summaryDates(rows, period)

	kinds := orderedKinds(buckets)
	var synthetic []parser.Row
	for _, kind := range kinds {
		label := kind.label()
		if override != "" && override != domain.AccountUnknown {
			label = override
		}
		if amt, ok := buckets.begin[kind]; ok {
			synthetic = append(synthetic, parser.Row{
				Date:        beginDate,
				Description: "Beginning Balance",
				Amount:      forceLiabilitySign(amt, label),
				Account:     label,
			})
		}
		if amt, ok := buckets.end[kind]; ok {
			synthetic = append(synthetic, parser.Row{
				Date:        endDate,
				Description: "Ending Balance",
				Amount:      forceLiabilitySign(amt, label),
				Account:     label,
			})
		}
	}

	if doc.IsLoan() || override == domain.AccountLoan {
		if row, ok := synthesizeLoanPayment(lines, endDate, override); ok {
			synthetic = append(synthetic, row)
		}
	}

	return synthetic
}

// collectBalanceBuckets locates label phrases and captures the nearest money
// token, preferring the leftmost token inside period/YTD tables (the current-
// period column leads) and the rightmost otherwise.
func collectBalanceBuckets(lines []string, doc *docSignals, override domain.AccountKind) *accountBuckets {
	buckets := &accountBuckets{
		begin: make(map[acctKind]string),
		end:   make(map[acctKind]string),
	}

	for i, line := range lines {
		if line == PageBreak {
			continue
		}
		lower := strings.ToLower(line)

		isBegin := containsAnyPhrase(lower, beginningLabels)
		isEnd := !isBegin && containsAnyPhrase(lower, endingLabels)
		if !isBegin && !isEnd {
			continue
		}

		amount, ok := nearestAmount(lines, i)
		if !ok {
			continue
		}

		kind := acctUnknown
		if override != "" && override != domain.AccountUnknown {
			kind = kindFromLabel(override)
		} else {
			kind = inferAccountAt(lines, i, doc)
		}

		// First resolution wins per account and family; later repeats of the
		// same label (carried-forward tables, page footers) do not overwrite.
		if isBegin {
			if _, seen := buckets.begin[kind]; !seen {
				buckets.begin[kind] = amount
			}
		} else {
			if _, seen := buckets.end[kind]; !seen {
				buckets.end[kind] = amount
			}
		}
	}
	return buckets
}

// nearestAmount extracts the money token answering a label at idx: trailing
// tokens on the same line first, then up to two following amount-only lines.
func nearestAmount(lines []string, idx int) (string, bool) {
	line := lines[idx]
	if money := patterns.FindMoney(line); len(money) > 0 {
		if insidePeriodTable(lines, idx) {
			return money[0], true
		}
		return money[len(money)-1], true
	}
	for j := idx + 1; j < len(lines) && j <= idx+2; j++ {
		if lines[j] == PageBreak {
			break
		}
		if patterns.IsMoneyOnly(lines[j]) {
			return lines[j], true
		}
		if patterns.StartsWithDate(lines[j]) {
			break
		}
	}
	return "", false
}

// insidePeriodTable reports whether the label line sits in a period/YTD
// table, where the leftmost money column is the current-period value.
func insidePeriodTable(lines []string, idx int) bool {
	lo := idx - 3
	if lo < 0 {
		lo = 0
	}
	for i := lo; i <= idx; i++ {
		if lines[i] == PageBreak {
			continue
		}
		if containsAnyFold(strings.ToLower(lines[i]), periodTableCues) {
			return true
		}
	}
	return false
}

// pruneBuckets applies the document-level cross-contamination rules: a
// credit-card document keeps only credit-card buckets, reassigning unknown
// and dropping spuriously-detected deposit/investment kinds.
func pruneBuckets(buckets *accountBuckets, doc *docSignals, override domain.AccountKind) {
	if override != "" && override != domain.AccountUnknown {
		return
	}
	if !doc.IsCreditCard() {
		return
	}
	for _, m := range []map[acctKind]string{buckets.begin, buckets.end} {
		if amt, ok := m[acctUnknown]; ok {
			if _, exists := m[acctCreditCard]; !exists {
				m[acctCreditCard] = amt
			}
			delete(m, acctUnknown)
		}
		delete(m, acctSavings)
		delete(m, acctChecking)
		delete(m, acctInvestment)
	}
}

// summaryDates picks the dates for synthetic rows: the period bounds when
// detected, otherwise one day before the earliest transactional date and the
// latest transactional date.
func summaryDates(rows []parser.Row, period *Period) (string, string) {
	if period != nil {
		return period.StartDate().Format("01/02/2006"), period.EndDate().Format("01/02/2006")
	}

	var earliest, latest time.Time
	for _, row := range rows {
		t, ok := parseCanonicalDate(row.Date)
		if !ok {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
		if latest.IsZero() || t.After(latest) {
			latest = t
		}
	}
	if earliest.IsZero() {
		return "", ""
	}
	return earliest.AddDate(0, 0, -1).Format("01/02/2006"), latest.Format("01/02/2006")
}

// synthesizeLoanPayment emits a synthetic loan-payment row when a loan
// document quotes a scheduled payment amount.
func synthesizeLoanPayment(lines []string, endDate string, override domain.AccountKind) (parser.Row, bool) {
	label := domain.AccountLoan
	if override != "" && override != domain.AccountUnknown {
		label = override
	}
	for i, line := range lines {
		if line == PageBreak {
			continue
		}
		if !containsAnyPhrase(strings.ToLower(line), loanPaymentLabels) {
			continue
		}
		amount, ok := nearestAmount(lines, i)
		if !ok {
			continue
		}
		normalized := NormalizeAmount(amount)
		if normalized == "" || normalized == "0.00" {
			continue
		}
		return parser.Row{
			Date:        endDate,
			Description: "Loan Payment",
			Amount:      normalized,
			Account:     label,
		}, true
	}
	return parser.Row{}, false
}

// forceLiabilitySign normalizes the amount and forces it negative for
// liability account kinds regardless of the sign recovered from text.
func forceLiabilitySign(raw string, label domain.AccountKind) string {
	amount := NormalizeAmount(raw)
	if label.IsLiability() && amount != "" && !strings.HasPrefix(amount, "-") {
		amount = "-" + amount
	}
	return amount
}

func containsAnyPhrase(lower string, phrases []string) bool {
	for _, p := range phrases {
		if patterns.ContainsPhrase(lower, p) {
			return true
		}
	}
	return false
}

// orderedKinds returns the kinds present in either bucket in a stable order.
func orderedKinds(buckets *accountBuckets) []acctKind {
	order := []acctKind{acctChecking, acctSavings, acctInvestment, acctLoan, acctCreditCard, acctUnknown}
	var present []acctKind
	for _, k := range order {
		_, inBegin := buckets.begin[k]
		_, inEnd := buckets.end[k]
		if inBegin || inEnd {
			present = append(present, k)
		}
	}
	return present
}

// IsSyntheticRow reports whether a canonical row was produced by summary
// synthesis rather than reconstruction.
func IsSyntheticRow(row parser.Row) bool {
	switch row.Description {
	case "Beginning Balance", "Ending Balance", "Loan Payment":
		return true
	}
	return false
}
