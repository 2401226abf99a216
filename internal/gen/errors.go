package gen

import (
	"errors"
	"fmt"
)

// ErrEndOfStream is returned by Next once a finite generator has emitted
// its last event. It is a normal completion, not a failure.
var ErrEndOfStream = errors.New("end of stream")

// SieveExhaustionError is returned when a generator cannot find a value (or
// position) its sieve accepts within the configured retry bound.
type SieveExhaustionError struct {
	// Generator is the generator name.
	Generator string

	// Attempts is the number of candidates drawn before giving up.
	Attempts int

	// Local is the generator-local timestamp the value was drawn for.
	Local float64
}

// Error implements the error interface.
func (e *SieveExhaustionError) Error() string {
	return fmt.Sprintf("generator %q: sieve rejected %d candidates at t=%.6f", e.Generator, e.Attempts, e.Local)
}

// IsSieveExhaustion returns true if err is (or wraps) a SieveExhaustionError.
func IsSieveExhaustion(err error) bool {
	var se *SieveExhaustionError
	return errors.As(err, &se)
}
