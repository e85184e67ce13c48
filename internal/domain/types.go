// Package domain defines the staging model emitted by statement parsers:
// transactions, holdings, and balance snapshots pending review before commit.
package domain

import (
	"fmt"
	"time"
)

// AccountKind is the closed set of account labels carried on canonical rows
// and staged records. Unknown is a valid member, not an error state.
type AccountKind string

const (
	AccountUnknown    AccountKind = "unknown"
	AccountChecking   AccountKind = "checking"
	AccountSavings    AccountKind = "savings"
	AccountBrokerage  AccountKind = "brokerage"
	AccountLoan       AccountKind = "loan"
	AccountCreditCard AccountKind = "creditCard"
)

// TransactionKind classifies a staged transaction for downstream review.
type TransactionKind string

const (
	KindBank       TransactionKind = "bank"
	KindDeposit    TransactionKind = "deposit"
	KindWithdrawal TransactionKind = "withdrawal"
	KindBuy        TransactionKind = "buy"
	KindSell       TransactionKind = "sell"
	KindDividend   TransactionKind = "dividend"
	KindFee        TransactionKind = "fee"
	KindInterest   TransactionKind = "interest"
	KindTransfer   TransactionKind = "transfer"
	KindAdjustment TransactionKind = "adjustment"
)

var (
	validAccountKinds = map[AccountKind]struct{}{
		AccountUnknown: {}, AccountChecking: {}, AccountSavings: {},
		AccountBrokerage: {}, AccountLoan: {}, AccountCreditCard: {},
	}

	validTransactionKinds = map[TransactionKind]struct{}{
		KindBank: {}, KindDeposit: {}, KindWithdrawal: {}, KindBuy: {},
		KindSell: {}, KindDividend: {}, KindFee: {}, KindInterest: {},
		KindTransfer: {}, KindAdjustment: {},
	}
)

// ValidateAccountKind checks if the account kind is a member of the closed set.
func ValidateAccountKind(k AccountKind) bool {
	_, ok := validAccountKinds[k]
	return ok
}

// ValidateTransactionKind checks if the transaction kind is valid.
func ValidateTransactionKind(k TransactionKind) bool {
	_, ok := validTransactionKinds[k]
	return ok
}

// IsLiability reports whether balances for this account kind represent money
// owed. Synthesized balances for liability kinds are always forced negative.
func (k AccountKind) IsLiability() bool {
	return k == AccountLoan || k == AccountCreditCard
}

// StagedTransaction is a transaction pending review before ledger commit.
// Sign convention:
//
//	Positive = inflow (deposits, credits)
//	Negative = outflow (withdrawals, charges)
//
// Parsers must normalize to this convention regardless of source representation.
type StagedTransaction struct {
	ID         string          `json:"id"`
	DatePosted string          `json:"datePosted"` // ISO format YYYY-MM-DD
	Amount     float64         `json:"amount"`
	Payee      string          `json:"payee"`
	Memo       string          `json:"memo,omitempty"`
	ExternalID string          `json:"externalId,omitempty"`
	Symbol     string          `json:"symbol,omitempty"`
	Quantity   float64         `json:"quantity,omitempty"`
	Price      float64         `json:"price,omitempty"`
	Fees       float64         `json:"fees,omitempty"`
	Kind       TransactionKind `json:"kind"`
	// HashKey is a stable fingerprint of date+amount+payee+memo+symbol+quantity
	// used for deduplication against previously committed history.
	HashKey string `json:"hashKey"`
	// Include defaults to the caller's policy. Conservative parsers stage
	// transactions excluded, requiring explicit confirmation before commit.
	Include bool `json:"include"`
}

// StagedBalance is a balance snapshot pending review. Liability balances are
// negative: a quoted "balance due" still represents money owed.
type StagedBalance struct {
	ID                 string      `json:"id"`
	AsOfDate           string      `json:"asOfDate"` // ISO format YYYY-MM-DD
	Balance            float64     `json:"balance"`
	InterestRateAPR    float64     `json:"interestRateApr,omitempty"`
	InterestRateScale  int         `json:"interestRateScale,omitempty"`
	SourceAccountLabel AccountKind `json:"sourceAccountLabel,omitempty"`
}

// StagedHolding is a position snapshot pending review.
type StagedHolding struct {
	ID          string  `json:"id"`
	AsOfDate    string  `json:"asOfDate"`
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	MarketValue float64 `json:"marketValue,omitempty"`
	Include     bool    `json:"include"`
}

// StagedImport is the full output of one parse invocation. Ownership passes
// to the caller, which persists or discards it.
type StagedImport struct {
	ID              string              `json:"id"`
	ParserID        string              `json:"parserId"`
	SourceFile      string              `json:"sourceFile"`
	Institution     string              `json:"institution,omitempty"`
	AccountTypeHint AccountKind         `json:"accountTypeHint,omitempty"`
	Transactions    []StagedTransaction `json:"transactions"`
	Holdings        []StagedHolding     `json:"holdings"`
	Balances        []StagedBalance     `json:"balances"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// NewStagedImport creates an empty staged import with initialized slices.
func NewStagedImport(id, parserID, sourceFile string) (*StagedImport, error) {
	if id == "" {
		return nil, fmt.Errorf("import ID cannot be empty")
	}
	if parserID == "" {
		return nil, fmt.Errorf("parser ID cannot be empty")
	}
	return &StagedImport{
		ID:           id,
		ParserID:     parserID,
		SourceFile:   sourceFile,
		Transactions: []StagedTransaction{},
		Holdings:     []StagedHolding{},
		Balances:     []StagedBalance{},
		CreatedAt:    time.Now(),
	}, nil
}

// Empty reports whether the import carries no staged records at all.
func (s *StagedImport) Empty() bool {
	return len(s.Transactions) == 0 && len(s.Holdings) == 0 && len(s.Balances) == 0
}

// NewStagedTransaction creates a validated staged transaction.
func NewStagedTransaction(id, datePosted, payee string, amount float64, kind TransactionKind) (*StagedTransaction, error) {
	if id == "" {
		return nil, fmt.Errorf("transaction ID cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", datePosted); err != nil {
		return nil, fmt.Errorf("invalid date format: %w", err)
	}
	if payee == "" {
		return nil, fmt.Errorf("payee cannot be empty")
	}
	if !ValidateTransactionKind(kind) {
		return nil, fmt.Errorf("invalid transaction kind: %s", kind)
	}

	return &StagedTransaction{
		ID:         id,
		DatePosted: datePosted,
		Amount:     amount,
		Payee:      payee,
		Kind:       kind,
	}, nil
}

// NewStagedBalance creates a validated staged balance.
func NewStagedBalance(id, asOfDate string, balance float64, source AccountKind) (*StagedBalance, error) {
	if id == "" {
		return nil, fmt.Errorf("balance ID cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", asOfDate); err != nil {
		return nil, fmt.Errorf("invalid as-of date: %w", err)
	}
	if source != "" && !ValidateAccountKind(source) {
		return nil, fmt.Errorf("invalid account kind: %s", source)
	}
	if source.IsLiability() && balance > 0 {
		balance = -balance
	}

	return &StagedBalance{
		ID:                 id,
		AsOfDate:           asOfDate,
		Balance:            balance,
		SourceAccountLabel: source,
	}, nil
}

// NewStagedHolding creates a validated staged holding.
func NewStagedHolding(id, asOfDate, symbol string, quantity float64) (*StagedHolding, error) {
	if id == "" {
		return nil, fmt.Errorf("holding ID cannot be empty")
	}
	if _, err := time.Parse("2006-01-02", asOfDate); err != nil {
		return nil, fmt.Errorf("invalid as-of date: %w", err)
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}

	return &StagedHolding{
		ID:       id,
		AsOfDate: asOfDate,
		Symbol:   symbol,
		Quantity: quantity,
	}, nil
}
