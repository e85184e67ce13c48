// Package transform converts canonical rows into staged records: date and
// amount parsing, transaction-kind classification, hash keys, and record IDs.
// Both PDF-derived parsers and the delimited parser stage through here so the
// conversion rules live in one place.
package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harmonsoft/stmtstage/internal/dedup"
	"github.com/harmonsoft/stmtstage/internal/domain"
	"github.com/harmonsoft/stmtstage/internal/parser"
	"github.com/harmonsoft/stmtstage/internal/rules"
)

// Stager converts canonical rows to staged records under one include policy.
type Stager struct {
	engine  *rules.Engine
	include bool
}

// NewStager creates a stager. A nil rules engine falls back to the built-in
// keyword heuristics for kind classification. include sets the default
// Include flag on staged transactions; conservative parsers pass false.
func NewStager(engine *rules.Engine, include bool) *Stager {
	return &Stager{engine: engine, include: include}
}

// Transaction converts a canonical row into a staged transaction. The row's
// MM/dd/yyyy date becomes ISO; rows whose date never resolved are rejected
// so the reviewer sees them missing rather than misdated.
func (s *Stager) Transaction(row parser.Row) (*domain.StagedTransaction, error) {
	date, err := canonicalToISO(row.Date)
	if err != nil {
		return nil, fmt.Errorf("unresolvable date %q: %w", row.Date, err)
	}

	amount, err := parseAmount(row.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", row.Amount, err)
	}

	payee := strings.TrimSpace(row.Description)
	if payee == "" {
		return nil, fmt.Errorf("row has no description")
	}

	txn, err := domain.NewStagedTransaction(NewID("txn"), date, payee, amount, s.classify(payee, amount, row.Account))
	if err != nil {
		return nil, err
	}
	txn.Include = s.include
	txn.HashKey = dedup.HashKey(date, amount, payee, txn.Memo, txn.Symbol, txn.Quantity)
	return txn, nil
}

// Balance converts a synthetic summary row into a staged balance.
func (s *Stager) Balance(row parser.Row) (*domain.StagedBalance, error) {
	date, err := canonicalToISO(row.Date)
	if err != nil {
		return nil, fmt.Errorf("unresolvable date %q: %w", row.Date, err)
	}
	amount, err := parseAmount(row.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", row.Amount, err)
	}
	return domain.NewStagedBalance(NewID("bal"), date, amount, row.Account)
}

// Holding builds a staged holding from explicit fields (delimited sources
// carry holdings as symbol/quantity columns rather than canonical rows).
func (s *Stager) Holding(date, symbol string, quantity, marketValue float64) (*domain.StagedHolding, error) {
	iso, err := canonicalToISO(date)
	if err != nil {
		return nil, fmt.Errorf("unresolvable date %q: %w", date, err)
	}
	h, err := domain.NewStagedHolding(NewID("hld"), iso, strings.ToUpper(strings.TrimSpace(symbol)), quantity)
	if err != nil {
		return nil, err
	}
	h.MarketValue = marketValue
	h.Include = s.include
	return h, nil
}

// classify resolves the transaction kind: the rules engine first, then the
// built-in keyword heuristics, finally the sign of the amount.
func (s *Stager) classify(payee string, amount float64, account domain.AccountKind) domain.TransactionKind {
	if s.engine != nil {
		if kind, ok := s.engine.Classify(payee); ok {
			return kind
		}
	}

	lower := strings.ToLower(payee)
	switch {
	case strings.Contains(lower, "dividend"):
		return domain.KindDividend
	case strings.Contains(lower, "interest"):
		return domain.KindInterest
	case strings.Contains(lower, "transfer"):
		return domain.KindTransfer
	case strings.Contains(lower, "fee") || strings.Contains(lower, "service charge"):
		return domain.KindFee
	case strings.Contains(lower, "adjustment"):
		return domain.KindAdjustment
	case account == domain.AccountBrokerage && strings.Contains(lower, "buy"):
		return domain.KindBuy
	case account == domain.AccountBrokerage && strings.Contains(lower, "sell"):
		return domain.KindSell
	case amount > 0:
		return domain.KindDeposit
	case amount < 0:
		return domain.KindWithdrawal
	default:
		return domain.KindBank
	}
}

// canonicalToISO converts an MM/dd/yyyy canonical date to ISO YYYY-MM-DD.
func canonicalToISO(date string) (string, error) {
	t, err := time.Parse("01/02/2006", strings.TrimSpace(date))
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}

// parseAmount parses a normalized signed decimal string.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	return strconv.ParseFloat(s, 64)
}
