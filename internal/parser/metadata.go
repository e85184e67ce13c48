package parser

import (
	"fmt"
	"time"

	"github.com/harmonsoft/stmtstage/internal/domain"
)

// Metadata carries context about the document being parsed: where it came
// from, what institution it belongs to, and any caller-supplied account-kind
// override. Create instances with NewMetadata; optional fields are set after
// construction. Empty institution/account values mean the source path did
// not match the organized directory layout, which is not an error.
type Metadata struct {
	filePath      string
	institution   string
	accountNumber string
	period        string
	accountHint   domain.AccountKind
	rateAPR       float64
	rateScale     int
	detectedAt    time.Time
}

// NewMetadata creates metadata with validated required fields.
func NewMetadata(filePath string, detectedAt time.Time) (*Metadata, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filePath:   filePath,
		detectedAt: detectedAt,
	}, nil
}

// FilePath returns the source file path.
func (m *Metadata) FilePath() string { return m.filePath }

// Institution returns the institution name inferred from the directory
// layout, or empty when unorganized.
func (m *Metadata) Institution() string { return m.institution }

// AccountNumber returns the account number inferred from the directory
// layout, or empty when unorganized.
func (m *Metadata) AccountNumber() string { return m.accountNumber }

// Period returns the period directory component, or empty.
func (m *Metadata) Period() string { return m.period }

// AccountHint returns the caller-supplied account-kind override, or empty.
// When set, the override always wins over inferred classification.
func (m *Metadata) AccountHint() domain.AccountKind { return m.accountHint }

// DetectedAt returns when the file was discovered.
func (m *Metadata) DetectedAt() time.Time { return m.detectedAt }

// SetInstitution sets the institution name.
func (m *Metadata) SetInstitution(institution string) {
	m.institution = institution
}

// SetAccountNumber sets the account number.
func (m *Metadata) SetAccountNumber(accountNumber string) {
	m.accountNumber = accountNumber
}

// SetPeriod sets the period.
func (m *Metadata) SetPeriod(period string) {
	m.period = period
}

// SetAccountHint sets the account-kind override.
func (m *Metadata) SetAccountHint(kind domain.AccountKind) {
	m.accountHint = kind
}

// RateAPR returns the interest rate extracted from the document, or 0.
func (m *Metadata) RateAPR() float64 { return m.rateAPR }

// RateScale returns the decimal scale of the extracted interest rate.
func (m *Metadata) RateScale() int { return m.rateScale }

// SetRate attaches a document-level interest rate for balance staging.
func (m *Metadata) SetRate(apr float64, scale int) {
	m.rateAPR = apr
	m.rateScale = scale
}
