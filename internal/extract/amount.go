package extract

import (
	"regexp"
	"strings"
)

var (
	debitMarker  = regexp.MustCompile(`(?i)\b(?:DR|DEBIT)\b\.?`)
	creditMarker = regexp.MustCompile(`(?i)\b(?:CR|CREDIT)\b\.?`)
	trailingNeg  = regexp.MustCompile(`-\s*$`)
)

// NormalizeAmount canonicalizes raw amount text into a signed decimal string:
// currency symbols and thousands separators are stripped, then textual and
// structural negativity hints (parentheses, trailing minus, leading minus,
// DR/DEBIT) are folded into a single leading minus. CR/CREDIT overrides a
// negative hint. Normalization is idempotent: an already-normalized string
// passes through unchanged.
func NormalizeAmount(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	negative := false
	positive := false

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
		s = strings.TrimSpace(s)
	}
	if debitMarker.MatchString(s) {
		negative = true
		s = debitMarker.ReplaceAllString(s, "")
	}
	if creditMarker.MatchString(s) {
		positive = true
		s = creditMarker.ReplaceAllString(s, "")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if trailingNeg.MatchString(s) {
		negative = true
		s = strings.TrimSpace(trailingNeg.ReplaceAllString(s, ""))
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	if s == "" {
		return ""
	}
	if negative && !positive {
		return "-" + s
	}
	return s
}

// applyFlow imposes the active flow convention on a normalized amount. The
// convention is a second sign authority layered after token-level detection:
// inside a withdrawals section every amount is negative; inside a deposits
// section every amount is positive.
func applyFlow(amount string, flow flowKind) string {
	if amount == "" {
		return amount
	}
	switch flow {
	case flowWithdrawal:
		if !strings.HasPrefix(amount, "-") {
			return "-" + amount
		}
	case flowDeposit:
		return strings.TrimPrefix(amount, "-")
	}
	return amount
}
