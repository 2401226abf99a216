package gen

import (
	"math"

	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/sieve"
)

// SieveRhythm places onsets on the positions a rhythm sieve accepts: the
// event for grid position p sounds at p*step seconds. Values come from a
// field, filtered by the optional value sieve.
type SieveRhythm struct {
	common
	rhythm *sieve.Sieve
	step   float64
	value  dist.Field

	// cursor is the next grid position to test.
	cursor int
}

// NewSieveRhythm builds a rhythm generator with the given grid step in
// seconds.
func NewSieveRhythm(name string, rhythm *sieve.Sieve, step float64, value dist.Field, opts ...Option) (*SieveRhythm, error) {
	c, err := newCommon(name, opts)
	if err != nil {
		return nil, err
	}
	if rhythm == nil {
		return nil, invalid("sieve", "rhythm sieve is required")
	}
	if math.IsNaN(step) || math.IsInf(step, 0) || step <= 0 {
		return nil, invalid("step", "must be positive and finite, got %g", step)
	}
	return &SieveRhythm{common: c, rhythm: rhythm, step: step, value: value}, nil
}

// Next implements Generator. It fails with SieveExhaustionError when the
// rhythm sieve has no further position, or when finding it would take more
// than the search limit.
func (g *SieveRhythm) Next() (ir.Event, error) {
	pos, ok := g.rhythm.NextFrom(g.cursor, g.search)
	if !ok {
		return ir.Event{}, &SieveExhaustionError{Generator: g.name, Attempts: g.search, Local: float64(g.cursor) * g.step}
	}
	t := float64(pos) * g.step

	v, rng, ok := g.pickValue(g.value, t, g.rng)
	if !ok {
		g.rng = rng
		return ir.Event{}, &SieveExhaustionError{Generator: g.name, Attempts: g.retries + 1, Local: t}
	}
	ev := g.event(t, v)
	g.rng = g.finish(&ev, g.velocity, rng)
	g.cursor = pos + 1
	g.last = t
	return ev, nil
}

// Cursor returns the next grid position to be tested.
func (g *SieveRhythm) Cursor() int { return g.cursor }
