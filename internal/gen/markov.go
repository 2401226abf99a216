package gen

import (
	"fmt"
	"math"

	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/markov"
)

// MarkovDriven lets a Markov chain choose the material of each event (or of
// each screen). The current state's Material sets the event density
// (Poisson timing), the pitch range and the velocity range.
//
// With a zero screen length the chain advances before every event and the
// event carries the new state's symbol. With a positive screen length the
// state holds for a whole screen and the chain advances at each screen
// boundary, the way Analogique A is built from 1.1 s screens.
type MarkovDriven struct {
	common
	model  *markov.Model
	screen float64
	states map[string]stateFields

	// clock is the local time the point process continues from; it jumps
	// to the screen boundary when the state changes.
	clock     float64
	screenEnd float64
}

type stateFields struct {
	timing   dist.Field
	value    dist.Field
	velocity dist.Field
}

// NewMarkovDriven builds a generator over model. Every state must have a
// material with positive density. The model is owned by the generator
// from here on.
func NewMarkovDriven(name string, model *markov.Model, materials map[string]markov.Material, screen float64, opts ...Option) (*MarkovDriven, error) {
	c, err := newCommon(name, opts)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, invalid("markov", "model is required")
	}
	if math.IsNaN(screen) || math.IsInf(screen, 0) || screen < 0 {
		return nil, invalid("screen", "must be non-negative and finite, got %g", screen)
	}

	states := make(map[string]stateFields, len(materials))
	for _, s := range model.States() {
		mat, ok := materials[s]
		if !ok {
			return nil, invalid("materials", "state %q has no material", s)
		}
		f, err := fieldsFor(mat)
		if err != nil {
			return nil, fmt.Errorf("material for state %q: %w", s, err)
		}
		states[s] = f
	}

	g := &MarkovDriven{common: c, model: model, screen: screen, states: states}
	if screen > 0 {
		g.screenEnd = screen
	}
	return g, nil
}

// fieldsFor turns inclusive integer ranges into uniform draws over
// [low-0.5, high+0.5) so every integer in range is equally likely after
// rounding.
func fieldsFor(mat markov.Material) (stateFields, error) {
	timing, err := dist.NewPoisson(mat.Density)
	if err != nil {
		return stateFields{}, err
	}
	value, err := dist.NewUniform(float64(mat.Pitch.Low)-0.5, float64(mat.Pitch.High)+0.5)
	if err != nil {
		return stateFields{}, err
	}
	velocity, err := dist.NewUniform(float64(mat.Velocity.Low)-0.5, float64(mat.Velocity.High)+0.5)
	if err != nil {
		return stateFields{}, err
	}
	return stateFields{
		timing:   dist.NewField(timing),
		value:    dist.NewField(value),
		velocity: dist.NewField(velocity),
	}, nil
}

// Next implements Generator. A dead-end state surfaces as
// markov.InvalidStateError.
func (g *MarkovDriven) Next() (ir.Event, error) {
	rng := g.rng
	var t float64

	if g.screen <= 0 {
		sym, next, err := g.model.Advance(rng)
		if err != nil {
			return ir.Event{}, err
		}
		rng = next
		var dt float64
		dt, rng = g.states[sym].timing.Sample(rng)
		t = step(g.last, dt)
	} else {
		for {
			var dt float64
			dt, rng = g.states[g.model.Current()].timing.Sample(rng)
			t = step(math.Max(g.last, g.clock), dt)
			if t < g.screenEnd {
				break
			}
			_, next, err := g.model.Advance(rng)
			if err != nil {
				g.rng = rng
				return ir.Event{}, err
			}
			rng = next
			g.clock = g.screenEnd
			g.screenEnd += g.screen
		}
	}

	sym := g.model.Current()
	fields := g.states[sym]
	v, rng, ok := g.pickValue(fields.value, t, rng)
	if !ok {
		g.rng = rng
		return ir.Event{}, &SieveExhaustionError{Generator: g.name, Attempts: g.retries + 1, Local: t}
	}
	ev := g.event(t, v)
	ev.Symbol = sym
	rng = g.finish(&ev, fields.velocity, rng)

	g.rng = rng
	g.last = t
	g.clock = t
	return ev, nil
}

// State returns the current Markov state symbol.
func (g *MarkovDriven) State() string { return g.model.Current() }
