package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/sieve"
)

// maxTraceLines bounds the stream excerpt in an AssertionError.
const maxTraceLines = 20

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Events   []ir.Event // Events around the failure, for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for i, ev := range e.Events {
			if i == maxTraceLines {
				fmt.Fprintf(&buf, "  ... %d more\n", len(e.Events)-i)
				break
			}
			fmt.Fprintf(&buf, "  #%d %s\n", ev.Seq, ev)
		}
	}

	return buf.String()
}

// checkAssertion dispatches one assertion.
func checkAssertion(res *Result, a Assertion) error {
	switch a.Type {
	case AssertCount:
		return assertCount(res.Events, a)
	case AssertOrdered:
		return assertOrdered(res.Events)
	case AssertEvicted:
		return assertEvicted(res.Evicted, a)
	case AssertValuesIn:
		return assertValuesIn(res.Events, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertCount checks the number of events, for one generator or overall.
func assertCount(events []ir.Event, a Assertion) error {
	matching := filter(events, a.Generator)
	n := len(matching)

	subject := "events"
	if a.Generator != "" {
		subject = fmt.Sprintf("events from %s", a.Generator)
	}

	switch {
	case a.Count != nil && n != *a.Count:
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, subject),
			Actual:   fmt.Sprintf("%d %s", n, subject),
			Events:   matching,
		}
	case a.Min != nil && n < *a.Min:
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("at least %d %s", *a.Min, subject),
			Actual:   fmt.Sprintf("%d %s", n, subject),
			Events:   matching,
		}
	case a.Max != nil && n > *a.Max:
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("at most %d %s", *a.Max, subject),
			Actual:   fmt.Sprintf("%d %s", n, subject),
			Events:   matching,
		}
	}
	return nil
}

// assertOrdered checks that timestamps never decrease and seq numbers run
// 1, 2, 3, ... without gaps.
func assertOrdered(events []ir.Event) error {
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			return &AssertionError{
				Type:     AssertOrdered,
				Expected: fmt.Sprintf("seq %d at position %d", i+1, i),
				Actual:   fmt.Sprintf("seq %d", ev.Seq),
				Events:   window(events, i),
			}
		}
		if i > 0 && ev.Timestamp < events[i-1].Timestamp {
			return &AssertionError{
				Type:     AssertOrdered,
				Expected: fmt.Sprintf("timestamp >= %.6f at seq %d", events[i-1].Timestamp, ev.Seq),
				Actual:   fmt.Sprintf("timestamp %.6f", ev.Timestamp),
				Events:   window(events, i),
			}
		}
	}
	return nil
}

// assertEvicted checks the eviction list exactly, order included.
func assertEvicted(evicted []string, a Assertion) error {
	if slices.Equal(evicted, a.Generators) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEvicted,
		Expected: fmt.Sprintf("evicted %v", a.Generators),
		Actual:   fmt.Sprintf("evicted %v", evicted),
	}
}

// assertValuesIn checks every value a generator produced.
func assertValuesIn(events []ir.Event, a Assertion) error {
	s := a.compiled
	if s == nil && a.Sieve != "" {
		var err error
		if s, err = sieve.BuildString(a.Sieve); err != nil {
			return err
		}
	}

	for _, ev := range filter(events, a.Generator) {
		var why string
		switch {
		case len(a.Values) > 0 && !slices.Contains(a.Values, ev.Value):
			why = fmt.Sprintf("not in %v", a.Values)
		case a.Range != nil && (ev.Value < a.Range.Low || ev.Value > a.Range.High):
			why = fmt.Sprintf("outside %d..%d", a.Range.Low, a.Range.High)
		case s != nil && !s.Accepts(ev.Value):
			why = fmt.Sprintf("rejected by sieve %s", a.Sieve)
		default:
			continue
		}
		return &AssertionError{
			Type:     AssertValuesIn,
			Expected: fmt.Sprintf("values of %s allowed", a.Generator),
			Actual:   fmt.Sprintf("value %d at seq %d %s", ev.Value, ev.Seq, why),
			Events:   []ir.Event{ev},
		}
	}
	return nil
}

func filter(events []ir.Event, generator string) []ir.Event {
	if generator == "" {
		return events
	}
	var out []ir.Event
	for _, ev := range events {
		if ev.Generator == generator {
			out = append(out, ev)
		}
	}
	return out
}

// window returns a few events either side of i.
func window(events []ir.Event, i int) []ir.Event {
	lo := max(0, i-3)
	hi := min(len(events), i+4)
	return events[lo:hi]
}
