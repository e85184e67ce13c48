package extract

import (
	"strings"

	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/patterns"
)

// acctKind is the scanner-internal account context. It is a superset view of
// domain.AccountKind: investment is tracked separately while scanning and
// coerced to the brokerage label on emitted rows.
type acctKind int

const (
	acctUnknown acctKind = iota
	acctChecking
	acctSavings
	acctInvestment
	acctLoan
	acctCreditCard
)

// label maps the scanner-internal kind to the closed wire label set.
func (k acctKind) label() domain.AccountKind {
	switch k {
	case acctChecking:
		return domain.AccountChecking
	case acctSavings:
		return domain.AccountSavings
	case acctInvestment:
		return domain.AccountBrokerage
	case acctLoan:
		return domain.AccountLoan
	case acctCreditCard:
		return domain.AccountCreditCard
	default:
		return domain.AccountUnknown
	}
}

func kindFromLabel(l domain.AccountKind) acctKind {
	switch l {
	case domain.AccountChecking:
		return acctChecking
	case domain.AccountSavings:
		return acctSavings
	case domain.AccountBrokerage:
		return acctInvestment
	case domain.AccountLoan:
		return acctLoan
	case domain.AccountCreditCard:
		return acctCreditCard
	default:
		return acctUnknown
	}
}

// Strong keyword sets per kind for the document-wide aggregation scan.
// Matched case-insensitively with flexible whitespace.
var (
	creditCardSignals = []string{
		"minimum payment", "credit limit", "cash advance", "payment due date",
		"visa", "mastercard", "american express", "discover card",
		"annual percentage rate", "new balance",
	}
	loanSignals = []string{
		"principal balance", "mortgage", "escrow", "loan number",
		"amortization", "unpaid principal", "maturity date",
	}
	investmentSignals = []string{
		"brokerage", "portfolio", "holdings", "securities",
		"ira", "401k", "dividends and interest", "market value",
		"fidelity", "vanguard", "schwab",
	}
	savingsSignals  = []string{"savings account", "savings summary", "annual percentage yield", "apy"}
	checkingSignals = []string{"checking account", "checking summary"}
)

// falsePositiveIdioms mention an account kind incidentally ("transfer from a
// checking account", "automatic payment from savings") and must not flip the
// scan context.
var falsePositiveIdioms = []string{
	"from a checking", "from a savings", "from your checking", "from your savings",
	"transfer", "automatic", "autopay", "direct deposit from",
}

func init() {
	var all []string
	all = append(all, creditCardSignals...)
	all = append(all, loanSignals...)
	all = append(all, investmentSignals...)
	all = append(all, savingsSignals...)
	all = append(all, checkingSignals...)
	patterns.RegisterPhrases(all...)
}

// docSignals is the result of the document-wide aggregation scan: per-kind
// strong keyword counts used to bias ambiguous per-line inference and prune
// cross-contaminated balance buckets.
type docSignals struct {
	creditCard int
	loan       int
	investment int
	savings    int
	checking   int
}

// IsCreditCard reports a document-level credit card classification.
func (d *docSignals) IsCreditCard() bool {
	return d.creditCard >= 2 && d.creditCard > d.loan && d.creditCard >= d.investment
}

// IsLoan reports a document-level loan classification.
func (d *docSignals) IsLoan() bool {
	return d.loan >= 2 && d.loan > d.creditCard && d.loan >= d.investment
}

// IsInvestment reports a document-level investment classification.
func (d *docSignals) IsInvestment() bool {
	return d.investment >= 3 && d.investment > d.creditCard && d.investment > d.loan
}

// DominantKind returns the document-level account kind, or acctUnknown when
// no kind dominates.
func (d *docSignals) DominantKind() acctKind {
	switch {
	case d.IsCreditCard():
		return acctCreditCard
	case d.IsLoan():
		return acctLoan
	case d.IsInvestment():
		return acctInvestment
	case d.savings > 0 && d.savings >= d.checking:
		return acctSavings
	case d.checking > 0:
		return acctChecking
	default:
		return acctUnknown
	}
}

// scanDocument aggregates strong keyword signals across the entire document.
func scanDocument(lines []string) *docSignals {
	d := &docSignals{}
	for _, line := range lines {
		if line == PageBreak {
			continue
		}
		lower := strings.ToLower(line)
		d.creditCard += countPhrases(lower, creditCardSignals)
		d.loan += countPhrases(lower, loanSignals)
		d.investment += countPhrases(lower, investmentSignals)
		d.savings += countPhrases(lower, savingsSignals)
		d.checking += countPhrases(lower, checkingSignals)
	}
	return d
}

func countPhrases(lower string, phrases []string) int {
	n := 0
	for _, p := range phrases {
		if patterns.ContainsPhrase(lower, p) {
			n++
		}
	}
	return n
}

// summaryTerms are the account-summary terminology that upgrades a bare kind
// keyword into a strong header signal.
var summaryTerms = []string{"summary", "account", "number", "statement", "activity"}

// detectAccountHeader classifies a non-date line as an account-kind signal.
// Strong signals name the kind alongside summary terminology; weak signals
// (a bare keyword on a short or mostly-uppercase line with no digits) are
// accepted only when nothing stronger is present on the line and the
// document is not already flagged credit-card or loan.
func detectAccountHeader(line string, doc *docSignals) (acctKind, bool) {
	lower := strings.ToLower(line)

	if containsAnyFold(lower, falsePositiveIdioms) {
		return acctUnknown, false
	}

	kind := keywordKind(lower)
	if kind == acctUnknown {
		return acctUnknown, false
	}

	if containsAnyFold(lower, summaryTerms) {
		return kind, true
	}

	// Weak acceptance path.
	if strings.ContainsAny(line, "0123456789") {
		return acctUnknown, false
	}
	if len(line) > 40 && !mostlyUppercase(line) {
		return acctUnknown, false
	}
	if (kind == acctChecking || kind == acctSavings) && (doc.IsCreditCard() || doc.IsLoan()) {
		// A deposit-account keyword inside a liability statement is almost
		// always incidental prose, not a section flip.
		return acctUnknown, false
	}
	if kind == acctInvestment && (doc.IsCreditCard() || doc.IsLoan()) {
		return acctUnknown, false
	}
	return kind, false
}

// keywordKind finds the most specific kind keyword on the line; investment,
// loan, and credit-card vocabulary outranks the generic deposit keywords.
func keywordKind(lower string) acctKind {
	switch {
	case strings.Contains(lower, "credit card") || patterns.ContainsPhrase(lower, "minimum payment", "credit limit"):
		return acctCreditCard
	case strings.Contains(lower, "loan") || strings.Contains(lower, "mortgage"):
		return acctLoan
	case strings.Contains(lower, "brokerage") || strings.Contains(lower, "investment") ||
		strings.Contains(lower, "ira ") || strings.HasSuffix(lower, "ira"):
		return acctInvestment
	case strings.Contains(lower, "savings"):
		return acctSavings
	case strings.Contains(lower, "checking"):
		return acctChecking
	default:
		return acctUnknown
	}
}

func mostlyUppercase(s string) bool {
	letters, upper := 0, 0
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			letters++
		} else if r >= 'A' && r <= 'Z' {
			letters++
			upper++
		}
	}
	return letters > 0 && upper*3 >= letters*2
}

// localWindow is the number of lines scanned on each side when inferring the
// account kind that owns a specific line index.
const localWindow = 20

// inferAccountAt resolves the account kind owning the line at idx by
// scanning a bounded window backward then forward, stopping at page
// boundaries. Used to assign detected balance phrases to an account.
func inferAccountAt(lines []string, idx int, doc *docSignals) acctKind {
	for i := idx; i >= 0 && i >= idx-localWindow; i-- {
		if lines[i] == PageBreak {
			break
		}
		if kind, strong := detectAccountHeader(lines[i], doc); strong {
			return kind
		}
	}
	for i := idx + 1; i < len(lines) && i <= idx+localWindow; i++ {
		if lines[i] == PageBreak {
			break
		}
		if kind, strong := detectAccountHeader(lines[i], doc); strong {
			return kind
		}
	}
	// Fall back to weak signals in the backward window only.
	for i := idx; i >= 0 && i >= idx-localWindow; i-- {
		if lines[i] == PageBreak {
			break
		}
		if kind, _ := detectAccountHeader(lines[i], doc); kind != acctUnknown {
			return kind
		}
	}
	return acctUnknown
}
