package parser

import "fmt"

// ParseFailureError is the user-facing failure surface: the parse produced
// nothing usable and the message tells the reviewer what to try next
// (switch extraction mode, supply a column mapping, re-render via OCR).
type ParseFailureError struct {
	Message string
}

func (e *ParseFailureError) Error() string {
	return e.Message
}

// NewParseFailure creates a parse failure with a human-readable diagnostic.
func NewParseFailure(format string, args ...interface{}) *ParseFailureError {
	return &ParseFailureError{Message: fmt.Sprintf(format, args...)}
}

// MissingColumnError is the structured failure for delimited input: a
// required column could not be resolved, either from an explicit mapping or
// by header auto-mapping. Distinct from ParseFailureError so callers can
// prompt for a mapping rather than display a generic diagnostic.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("no column could be mapped for %q; supply an explicit column mapping", e.Column)
}
