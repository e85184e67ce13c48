package extract

import (
	"strings"

	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/patterns"
)

// flowKind is the deposit/withdrawal sign bias imposed by a section header.
type flowKind int

const (
	flowNone flowKind = iota
	flowDeposit
	flowWithdrawal
)

// sectionKind tracks which statement section the scanner is inside.
type sectionKind int

const (
	sectionUnknown sectionKind = iota
	sectionAccountSummary
	sectionCashFlow
	sectionHoldings
	sectionActivity
)

// contextBufferCap bounds the rolling buffer of recent non-date lines kept
// for soft inference.
const contextBufferCap = 12

// scanState is the scanner-local context threaded through one sequential
// pass: current account kind, flow direction, section, and a rolling buffer
// of recent contextual lines. It is never shared across documents. Reset
// replaces the whole state at page boundaries; a caller-supplied account
// override always wins and suppresses account transitions.
type scanState struct {
	account  acctKind
	flow     flowKind
	section  sectionKind
	recent   []string
	override acctKind
	pinned   bool
}

func newScanState(override domain.AccountKind) *scanState {
	st := &scanState{}
	if override != "" && override != domain.AccountUnknown {
		st.override = kindFromLabel(override)
		st.pinned = true
	}
	st.reset()
	return st
}

// reset restores the just-initialized state. Invoked at every page boundary.
// The account override survives resets by construction.
func (st *scanState) reset() {
	st.flow = flowNone
	st.section = sectionUnknown
	st.recent = st.recent[:0]
	if st.pinned {
		st.account = st.override
	} else {
		st.account = acctUnknown
	}
}

// currentLabel returns the wire label for the active account context.
func (st *scanState) currentLabel() domain.AccountKind {
	if st.pinned {
		return st.override.label()
	}
	return st.account.label()
}

// push appends a contextual line to the bounded rolling buffer.
func (st *scanState) push(line string) {
	if len(st.recent) == contextBufferCap {
		copy(st.recent, st.recent[1:])
		st.recent = st.recent[:contextBufferCap-1]
	}
	st.recent = append(st.recent, line)
}

var (
	depositHeaders = []string{
		"deposits", "deposits and additions", "deposits and other credits",
		"credits", "additions", "payments and other credits",
	}
	withdrawalHeaders = []string{
		"withdrawals", "withdrawals and subtractions", "withdrawals and other debits",
		"debits", "subtractions", "purchases and adjustments",
	}
	sectionHeaders = map[string]sectionKind{
		"account summary":     sectionAccountSummary,
		"summary of accounts": sectionAccountSummary,
		"holdings":            sectionHoldings,
		"portfolio summary":   sectionHoldings,
		"account activity":    sectionActivity,
		"transaction detail":  sectionActivity,
		"activity detail":     sectionActivity,
		"cash flow":           sectionCashFlow,
	}
)

// observe updates section, flow, and account signals from a contextual
// (non-date) line, then pushes it onto the rolling buffer.
func (st *scanState) observe(line string, doc *docSignals) {
	lower := strings.ToLower(line)

	// Flow headers are short section titles, not prose; require the line to
	// be reasonably header-like to avoid "total deposits this period" prose.
	if len(line) <= 48 {
		switch {
		case matchesHeader(lower, withdrawalHeaders):
			st.flow = flowWithdrawal
			st.section = sectionActivity
		case matchesHeader(lower, depositHeaders):
			st.flow = flowDeposit
			st.section = sectionActivity
		}
	}

	for phrase, kind := range sectionHeaders {
		if patterns.ContainsPhrase(lower, phrase) {
			st.section = kind
			break
		}
	}

	if !st.pinned {
		if kind, strong := detectAccountHeader(line, doc); kind != acctUnknown {
			if strong || st.account == acctUnknown {
				st.account = kind
			}
		}
	}

	st.push(line)
}

// matchesHeader reports whether the line is one of the given section titles,
// allowing a leading "total" or trailing colon but no other surrounding text.
func matchesHeader(lower string, headers []string) bool {
	candidate := strings.TrimSuffix(strings.TrimSpace(lower), ":")
	for _, h := range headers {
		if candidate == h {
			return true
		}
		if strings.HasPrefix(candidate, h+" ") && !strings.Contains(candidate, "total") {
			return true
		}
	}
	return false
}
