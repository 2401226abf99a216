package sched

import (
	"log/slog"
)

// Warning describes a generator the scheduler evicted.
type Warning struct {
	// Handle and Generator identify the evicted generator.
	Handle    Handle
	Generator string

	// Poll is the latest consumer poll time when the failure was seen.
	Poll float64

	// Err is the generator's error (SieveExhaustionError,
	// markov.InvalidStateError, or anything unexpected).
	Err error
}

// Sink receives generator-level warnings. Implementations must not block;
// they are called from the scheduler's goroutine.
type Sink interface {
	Warn(w Warning)
}

// FuncSink adapts a function to Sink.
type FuncSink func(Warning)

// Warn implements Sink.
func (f FuncSink) Warn(w Warning) { f(w) }

// SlogSink logs warnings at Warn level. A nil Logger uses slog.Default().
type SlogSink struct {
	Logger *slog.Logger
}

// Warn implements Sink.
func (s SlogSink) Warn(w Warning) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("generator evicted",
		"generator", w.Generator,
		"handle", w.Handle,
		"poll", w.Poll,
		"error", w.Err,
	)
}

// Recorder collects warnings in memory.
type Recorder struct {
	Warnings []Warning
}

// Warn implements Sink.
func (r *Recorder) Warn(w Warning) { r.Warnings = append(r.Warnings, w) }

// Names returns the evicted generator names in order.
func (r *Recorder) Names() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.Generator
	}
	return out
}

// Tee fans a warning out to several sinks.
func Tee(sinks ...Sink) Sink {
	return FuncSink(func(w Warning) {
		for _, s := range sinks {
			if s != nil {
				s.Warn(w)
			}
		}
	})
}
