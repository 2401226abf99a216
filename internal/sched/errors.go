package sched

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Add after Stop.
var ErrStopped = errors.New("scheduler stopped")

// DuplicateNameError is returned by Add when a live generator already uses
// the name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("generator %q is already registered", e.Name)
}

// SchedulerOverflowError reports that the lookahead buffer reached its cap
// with events still due. The consumer is stalled; the scheduler stops
// pulling generators until the buffer is drained.
type SchedulerOverflowError struct {
	// Cap is the configured buffer capacity.
	Cap int

	// Poll is the consumer poll time that triggered the overflow.
	Poll float64
}

// Error implements the error interface.
func (e *SchedulerOverflowError) Error() string {
	return fmt.Sprintf("lookahead buffer full (%d events) at poll t=%.6f: consumer stalled", e.Cap, e.Poll)
}

// IsOverflow returns true if err is (or wraps) a SchedulerOverflowError.
func IsOverflow(err error) bool {
	var oe *SchedulerOverflowError
	return errors.As(err, &oe)
}
