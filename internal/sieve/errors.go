package sieve

import (
	"errors"
	"fmt"
)

// InvalidFormulaError reports a formula that cannot be built into a sieve.
//
// Raised when a modulus is not positive, a residue lies outside
// [0, modulus), the combination tree is malformed, or the text notation
// does not parse.
type InvalidFormulaError struct {
	// Formula is the offending formula text (may be empty for structured input).
	Formula string

	// Pos is the 1-based column of a text parse error, or 0 when not applicable.
	Pos int

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *InvalidFormulaError) Error() string {
	switch {
	case e.Pos > 0 && e.Formula != "":
		return fmt.Sprintf("invalid sieve formula %q at column %d: %s", e.Formula, e.Pos, e.Message)
	case e.Formula != "":
		return fmt.Sprintf("invalid sieve formula %q: %s", e.Formula, e.Message)
	default:
		return fmt.Sprintf("invalid sieve formula: %s", e.Message)
	}
}

// IsInvalidFormula returns true if err is (or wraps) an InvalidFormulaError.
func IsInvalidFormula(err error) bool {
	var fe *InvalidFormulaError
	return errors.As(err, &fe)
}
