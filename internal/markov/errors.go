package markov

import (
	"errors"
	"fmt"
)

// InvalidStateError is returned by Advance when the current state has no
// outgoing weight. Only states flagged terminal can reach this at runtime.
type InvalidStateError struct {
	// State is the symbol of the dead-end state.
	State string
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("markov state %q has no outgoing transitions", e.State)
}

// IsInvalidState returns true if err is (or wraps) an InvalidStateError.
func IsInvalidState(err error) bool {
	var se *InvalidStateError
	return errors.As(err, &se)
}
