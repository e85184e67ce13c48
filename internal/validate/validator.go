// Package validate checks staged imports before persistence: field
// constraints, sign conventions, and cross-record consistency. Errors block
// storage; warnings surface to the reviewer but do not.
package validate

import (
	"fmt"
	"time"

	"github.com/harmonsoft/stmtstage/internal/domain"
)

// ValidationResult contains all validation errors and warnings for an import.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError represents a validation error.
type ValidationError struct {
	Entity  string // "import", "transaction", "balance", "holding"
	ID      string
	Field   string
	Value   string
	Message string
}

// ValidationWarning represents a non-critical validation issue.
type ValidationWarning struct {
	Entity  string
	ID      string
	Field   string
	Value   string
	Message string
}

// Valid reports whether the result carries no errors.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// isoDate reports whether s is a valid YYYY-MM-DD date.
func isoDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// ValidateImport performs comprehensive validation of a StagedImport,
// checking individual record constraints and cross-record consistency.
func ValidateImport(imp *domain.StagedImport) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationWarning{},
	}

	if imp.ID == "" {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "import",
			Field:   "ID",
			Message: "import ID cannot be empty",
		})
	}
	if imp.ParserID == "" {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "import",
			ID:      imp.ID,
			Field:   "ParserID",
			Message: "parser ID cannot be empty",
		})
	}
	if imp.AccountTypeHint != "" && !domain.ValidateAccountKind(imp.AccountTypeHint) {
		result.Errors = append(result.Errors, ValidationError{
			Entity:  "import",
			ID:      imp.ID,
			Field:   "AccountTypeHint",
			Value:   string(imp.AccountTypeHint),
			Message: "invalid account kind",
		})
	}
	if imp.Empty() {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Entity:  "import",
			ID:      imp.ID,
			Message: "import carries no staged records",
		})
	}

	validateTransactions(imp, result)
	validateBalances(imp, result)
	validateHoldings(imp, result)

	return result
}

func validateTransactions(imp *domain.StagedImport, result *ValidationResult) {
	ids := make(map[string]bool)
	hashKeys := make(map[string]int)

	for _, txn := range imp.Transactions {
		if txn.ID == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				Field:   "ID",
				Message: "transaction ID cannot be empty",
			})
		} else {
			if ids[txn.ID] {
				result.Errors = append(result.Errors, ValidationError{
					Entity:  "transaction",
					ID:      txn.ID,
					Field:   "ID",
					Value:   txn.ID,
					Message: "duplicate transaction ID",
				})
			}
			ids[txn.ID] = true
		}

		if !isoDate(txn.DatePosted) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "DatePosted",
				Value:   txn.DatePosted,
				Message: "date must be YYYY-MM-DD",
			})
		}
		if txn.Payee == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "Payee",
				Message: "payee cannot be empty",
			})
		}
		if !domain.ValidateTransactionKind(txn.Kind) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "Kind",
				Value:   string(txn.Kind),
				Message: "invalid transaction kind",
			})
		}
		if txn.HashKey == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "HashKey",
				Message: "hash key missing; duplicate detection would silently pass this record",
			})
		} else {
			hashKeys[txn.HashKey]++
		}

		if txn.Amount == 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "Amount",
				Value:   "0",
				Message: "zero amount",
			})
		}
		if (txn.Kind == domain.KindBuy || txn.Kind == domain.KindSell) && txn.Symbol == "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "transaction",
				ID:      txn.ID,
				Field:   "Symbol",
				Message: fmt.Sprintf("%s transaction without a symbol", txn.Kind),
			})
		}
	}

	for key, count := range hashKeys {
		if count > 1 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "transaction",
				Field:   "HashKey",
				Value:   key,
				Message: fmt.Sprintf("hash key shared by %d transactions within one import", count),
			})
		}
	}
}

func validateBalances(imp *domain.StagedImport, result *ValidationResult) {
	for _, bal := range imp.Balances {
		if bal.ID == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "balance",
				Field:   "ID",
				Message: "balance ID cannot be empty",
			})
		}
		if !isoDate(bal.AsOfDate) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "balance",
				ID:      bal.ID,
				Field:   "AsOfDate",
				Value:   bal.AsOfDate,
				Message: "date must be YYYY-MM-DD",
			})
		}
		if bal.SourceAccountLabel != "" && !domain.ValidateAccountKind(bal.SourceAccountLabel) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "balance",
				ID:      bal.ID,
				Field:   "SourceAccountLabel",
				Value:   string(bal.SourceAccountLabel),
				Message: "invalid account kind",
			})
		}
		if bal.SourceAccountLabel.IsLiability() && bal.Balance > 0 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "balance",
				ID:      bal.ID,
				Field:   "Balance",
				Value:   fmt.Sprintf("%.2f", bal.Balance),
				Message: fmt.Sprintf("%s balance must not be positive", bal.SourceAccountLabel),
			})
		}
		if bal.InterestRateAPR < 0 || bal.InterestRateAPR > 100 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "balance",
				ID:      bal.ID,
				Field:   "InterestRateAPR",
				Value:   fmt.Sprintf("%.4f", bal.InterestRateAPR),
				Message: "interest rate out of range [0,100]",
			})
		}
	}
}

func validateHoldings(imp *domain.StagedImport, result *ValidationResult) {
	for _, h := range imp.Holdings {
		if h.ID == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "holding",
				Field:   "ID",
				Message: "holding ID cannot be empty",
			})
		}
		if !isoDate(h.AsOfDate) {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "holding",
				ID:      h.ID,
				Field:   "AsOfDate",
				Value:   h.AsOfDate,
				Message: "date must be YYYY-MM-DD",
			})
		}
		if h.Symbol == "" {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "holding",
				ID:      h.ID,
				Field:   "Symbol",
				Message: "symbol cannot be empty",
			})
		}
		if h.Quantity == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Entity:  "holding",
				ID:      h.ID,
				Field:   "Quantity",
				Value:   "0",
				Message: "quantity cannot be zero",
			})
		}
		if h.MarketValue < 0 {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Entity:  "holding",
				ID:      h.ID,
				Field:   "MarketValue",
				Value:   fmt.Sprintf("%.2f", h.MarketValue),
				Message: "negative market value",
			})
		}
	}
}
