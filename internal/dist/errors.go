package dist

import (
	"errors"
	"fmt"
)

// InvalidParameterError reports a distribution parameter outside its domain.
// It is only ever returned while building a Spec or Field.
type InvalidParameterError struct {
	// Kind is the distribution family being built.
	Kind Kind

	// Param names the offending parameter (e.g. "rate", "stddev").
	Param string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *InvalidParameterError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("invalid parameter: %s %s", e.Param, e.Message)
	}
	if e.Param == "" {
		return fmt.Sprintf("invalid %s distribution: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("invalid %s distribution: %s %s", e.Kind, e.Param, e.Message)
}

// IsInvalidParameter returns true if err is (or wraps) an InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var pe *InvalidParameterError
	return errors.As(err, &pe)
}

func invalid(kind Kind, param, format string, args ...any) error {
	return &InvalidParameterError{Kind: kind, Param: param, Message: fmt.Sprintf(format, args...)}
}
