package engine

import (
	"errors"
	"fmt"
)

// ErrStopped is returned for commands submitted after the engine stopped.
var ErrStopped = errors.New("engine stopped")

// ErrUnknownGenerator is returned by Remove for a name that is not live.
var ErrUnknownGenerator = errors.New("unknown generator")

// CommandError reports a control command the engine could not apply.
type CommandError struct {
	// Command is the command name: add, remove, replace or stop.
	Command string

	// Generator names the generator involved, if any.
	Generator string

	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Generator != "" {
		return fmt.Sprintf("%s %s: %v", e.Command, e.Generator, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// IsUnknownGenerator returns true if err reports a generator that is not
// live. Uses errors.Is to handle wrapped errors.
func IsUnknownGenerator(err error) bool {
	return errors.Is(err, ErrUnknownGenerator)
}
