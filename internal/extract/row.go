package extract

import (
	"strings"
	"unicode"

	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/patterns"
)

// rawRow is a reconstructed row before date/amount normalization.
type rawRow struct {
	date    string
	desc    string
	amount  string
	balance string
}

// maxContinuation bounds how many wrapped description lines a multi-line
// reconstruction will absorb before giving up.
const maxContinuation = 5

// reconstructAt attempts to build a row from the date-starting line at index
// i, trying strategies in strict priority order: multi-line reconstruction,
// single-line structured match, then the two-line amount-only fallback.
// Returns the row, the number of lines consumed, and whether any strategy
// succeeded. A miss is not an error; narrative lines vastly outnumber
// transactional ones.
func reconstructAt(lines []string, i int) (rawRow, int, bool) {
	if row, consumed, ok := reconstructMultiLine(lines, i); ok {
		return row, consumed, true
	}
	if row, ok := matchSingleLine(lines[i]); ok {
		return row, 1, true
	}
	if row, ok := matchTwoLine(lines, i); ok {
		return row, 2, true
	}
	return rawRow{}, 0, false
}

// reconstructMultiLine recovers rows whose descriptions wrap across lines:
// the date line's trailing text starts the description and subsequent
// non-date lines extend it until an amount terminates the row. Totals,
// section, period, and account-meta lines abort the reconstruction so they
// can never become spurious descriptions.
func reconstructMultiLine(lines []string, i int) (rawRow, int, bool) {
	date, rest, ok := splitLeadingDate(lines[i])
	if !ok {
		return rawRow{}, 0, false
	}

	// A second leading date is a post date; prefer it as canonical.
	if date2, rest2, ok2 := splitLeadingDate(rest); ok2 {
		date, rest = date2, rest2
	}

	// If the date line already carries an amount the single-line strategy
	// owns it; multi-line only handles wrapped descriptions.
	if len(patterns.FindMoney(rest)) > 0 {
		return rawRow{}, 0, false
	}

	desc := strings.TrimSpace(rest)
	if desc == "" {
		return rawRow{}, 0, false
	}

	for j := i + 1; j < len(lines) && j <= i+maxContinuation; j++ {
		line := lines[j]
		if line == PageBreak || patterns.StartsWithDate(line) {
			return rawRow{}, 0, false
		}
		if isExcludedLine(line) {
			return rawRow{}, 0, false
		}
		if patterns.IsMoneyOnly(line) {
			return rawRow{date: date, desc: desc, amount: line}, j - i + 1, true
		}
		if money := patterns.FindMoney(line); len(money) > 0 {
			idx := strings.Index(line, money[0])
			prefix := line[:idx]
			if !containsLetter(prefix) {
				row := rawRow{date: date, desc: desc, amount: money[0]}
				if len(money) > 1 {
					row.balance = money[len(money)-1]
				}
				if trimmed := strings.TrimSpace(prefix); trimmed != "" {
					row.desc = desc + " " + trimmed
				}
				return row, j - i + 1, true
			}
			// Letters precede the money token: treat the whole line as a
			// wrapped description continuation and keep scanning.
		}
		if patterns.IsNoise(line) {
			return rawRow{}, 0, false
		}
		desc = desc + " " + line
	}
	return rawRow{}, 0, false
}

// matchSingleLine matches the whole line as `date [postDate] description
// amount [balance]`.
func matchSingleLine(line string) (rawRow, bool) {
	date, rest, ok := splitLeadingDate(line)
	if !ok {
		return rawRow{}, false
	}
	if date2, rest2, ok2 := splitLeadingDate(rest); ok2 {
		date, rest = date2, rest2
	}

	money := patterns.FindMoney(rest)
	if len(money) == 0 {
		return rawRow{}, false
	}

	// The amount (and optional balance) must close out the line; money
	// embedded mid-description ("CHECK #123 FOR 50.00 FEE...") is not a
	// structured match.
	last := money[len(money)-1]
	if !strings.HasSuffix(strings.TrimSpace(rest), strings.TrimSpace(last)) {
		return rawRow{}, false
	}

	row := rawRow{date: date}
	switch {
	case len(money) >= 2 && adjacentTokens(rest, money[len(money)-2], last):
		row.amount = money[len(money)-2]
		row.balance = last
		row.desc = descBefore(rest, money[len(money)-2])
	default:
		row.amount = last
		row.desc = descBefore(rest, last)
	}

	if strings.TrimSpace(row.desc) == "" {
		return rawRow{}, false
	}
	row.desc = strings.TrimSpace(row.desc)
	return row, true
}

// matchTwoLine handles `date [postDate] description` followed by an
// amount-only line; the pair merges into one row consuming both lines.
func matchTwoLine(lines []string, i int) (rawRow, bool) {
	if i+1 >= len(lines) {
		return rawRow{}, false
	}
	date, rest, ok := splitLeadingDate(lines[i])
	if !ok {
		return rawRow{}, false
	}
	if date2, rest2, ok2 := splitLeadingDate(rest); ok2 {
		date, rest = date2, rest2
	}
	if len(patterns.FindMoney(rest)) > 0 {
		return rawRow{}, false
	}
	desc := strings.TrimSpace(rest)
	if desc == "" {
		return rawRow{}, false
	}
	next := lines[i+1]
	if next == PageBreak || !patterns.IsMoneyOnly(next) {
		return rawRow{}, false
	}
	return rawRow{date: date, desc: desc, amount: next}, true
}

// splitLeadingDate extracts the date token opening the line and returns the
// remainder.
func splitLeadingDate(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if m := patterns.DateStart.FindString(line); m != "" {
		return m, strings.TrimSpace(line[len(m):]), true
	}
	if m := patterns.MonthNameStart.FindString(line); m != "" {
		return m, strings.TrimSpace(line[len(m):]), true
	}
	return "", "", false
}

// descBefore returns the text preceding the first occurrence of the amount
// token.
func descBefore(rest, amount string) string {
	if idx := strings.Index(rest, amount); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// adjacentTokens reports whether the two money tokens are separated only by
// whitespace, the signature of an amount column followed by a balance column.
func adjacentTokens(line, first, second string) bool {
	i := strings.Index(line, first)
	if i < 0 {
		return false
	}
	j := strings.Index(line[i+len(first):], second)
	if j < 0 {
		return false
	}
	between := line[i+len(first) : i+len(first)+j]
	return strings.TrimSpace(between) == ""
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Lines that look like totals, date-range headers, statement-period
// continuations, or account-meta lines are excluded from reconstruction
// capture; they must never become transactions or descriptions.
var (
	totalsWords = []string{
		"total", "subtotal", "totals for", "daily balance", "balance forward",
	}
	accountMetaWords = []string{
		"account number", "primary account", "account no", "member number",
		"routing number", "sort code",
	}
	periodWords = []string{"statement period", "billing period", "billing cycle", "for the period"}
)

// isExcludedLine reports whether a line is a totals, section, period, or
// account-meta line that aborts a multi-line reconstruction.
func isExcludedLine(line string) bool {
	lower := strings.ToLower(line)
	if containsAnyFold(lower, totalsWords) ||
		containsAnyFold(lower, accountMetaWords) ||
		containsAnyFold(lower, periodWords) {
		return true
	}
	if _, _, ok := patterns.SplitRange(line); ok {
		return true
	}
	if strings.HasPrefix(lower, "through ") || strings.HasPrefix(lower, "thru ") {
		return true
	}
	if matchesHeader(lower, depositHeaders) || matchesHeader(lower, withdrawalHeaders) {
		return true
	}
	return false
}

// isContextOnlyDateLine reports whether a date-starting line is actually a
// period or meta header (e.g., "01/01/2026 through 01/31/2026") that must be
// treated as context, never reconstructed into a row.
func isContextOnlyDateLine(line string) bool {
	return isExcludedLine(line)
}

// finishRow normalizes a reconstructed raw row into a canonical parser.Row,
// applying the flow convention sign authority and the active account label.
func finishRow(row rawRow, st *scanState, period *Period, fallbackYear int) parser.Row {
	amount := applyFlow(NormalizeAmount(row.amount), st.flow)
	balance := ""
	if row.balance != "" {
		balance = NormalizeAmount(row.balance)
	}
	return parser.Row{
		Date:        NormalizeDate(row.date, period, fallbackYear),
		Description: collapseSpaces(row.desc),
		Amount:      amount,
		Balance:     balance,
		Account:     st.currentLabel(),
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
