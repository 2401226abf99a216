package ir

import (
	"fmt"
	"math"
)

// Kind distinguishes the two event families understood by transports.
type Kind string

const (
	// KindNote is a note event: Value is a MIDI pitch, Velocity its velocity.
	KindNote Kind = "note"
	// KindControl is a control event: Value is a CC number, Velocity its level.
	KindControl Kind = "control"
)

// ValidKinds defines the allowed event kinds.
var ValidKinds = map[Kind]bool{
	KindNote:    true,
	KindControl: true,
}

// ParseKind converts a config string into a Kind. The empty string means note.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindNote, nil
	}
	k := Kind(s)
	if !ValidKinds[k] {
		return "", fmt.Errorf("invalid event kind %q: must be note or control", s)
	}
	return k, nil
}

// Event is a single time-stamped musical event.
//
// Generators produce events in their local time (Local). The scheduler maps
// Local through the generator's time map onto the output timeline and fills
// Timestamp, Seq and Generator before the event leaves the engine.
type Event struct {
	// Seq is the emission sequence number assigned by the scheduler.
	Seq int64 `json:"seq"`

	// Timestamp is the output time in seconds (non-decreasing within a stream).
	Timestamp float64 `json:"timestamp"`

	// Local is the generator-local time in seconds before time mapping.
	Local float64 `json:"local"`

	// Generator is the name of the generator that produced the event.
	Generator string `json:"generator"`

	Kind     Kind    `json:"kind"`
	Value    int     `json:"value"`
	Velocity int     `json:"velocity"`
	Duration float64 `json:"duration"`
	Channel  int     `json:"channel"`

	// Symbol is the Markov state symbol for markov-driven events.
	Symbol string `json:"symbol,omitempty"`
}

// Micros converts seconds to integer microseconds (rounded half away from zero).
func Micros(seconds float64) int64 {
	return int64(math.Round(seconds * 1e6))
}

// String renders the event as a single human-readable line.
func (e Event) String() string {
	s := fmt.Sprintf("[%9.4f] %-12s %-7s ch=%02d value=%03d vel=%03d dur=%.3fs",
		e.Timestamp, e.Generator, e.Kind, e.Channel, e.Value, e.Velocity, e.Duration)
	if e.Symbol != "" {
		s += " sym=" + e.Symbol
	}
	return s
}

// CanonicalMap converts the event into a float-free map for canonical JSON.
func (e Event) CanonicalMap() map[string]any {
	m := map[string]any{
		"seq":         e.Seq,
		"t_us":        Micros(e.Timestamp),
		"local_us":    Micros(e.Local),
		"generator":   e.Generator,
		"kind":        string(e.Kind),
		"value":       e.Value,
		"velocity":    e.Velocity,
		"duration_us": Micros(e.Duration),
		"channel":     e.Channel,
	}
	if e.Symbol != "" {
		m["symbol"] = e.Symbol
	}
	return m
}
