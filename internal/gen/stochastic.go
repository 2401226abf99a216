package gen

import (
	"math"

	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/ir"
)

// Stochastic is a point-process generator. Each event draws an
// inter-arrival duration from the timing field, then a value from the value
// field that the sieve must accept. Rejected values are redrawn; timing is
// never redrawn.
//
// A thinned Stochastic replaces the timing field with a density curve:
// onsets follow an inhomogeneous Poisson process, sampled by Lewis-Shedler
// thinning against a constant bound rate.
type Stochastic struct {
	common
	timing dist.Field
	value  dist.Field

	// density, maxRate and bound are set for thinned generators.
	density *Density
	maxRate float64
	bound   dist.Spec
	done    bool
}

// NewStochastic builds a stochastic generator. timing yields inter-arrival
// durations in seconds (typically Poisson); value yields pitches or
// controller numbers.
func NewStochastic(name string, timing, value dist.Field, opts ...Option) (*Stochastic, error) {
	c, err := newCommon(name, opts)
	if err != nil {
		return nil, err
	}
	return &Stochastic{common: c, timing: timing, value: value}, nil
}

// NewThinned builds a stochastic generator whose event rate follows
// density. maxRate must bound the density everywhere; zero means its peak.
// Once the density falls to zero for good the stream ends.
func NewThinned(name string, density Density, maxRate float64, value dist.Field, opts ...Option) (*Stochastic, error) {
	c, err := newCommon(name, opts)
	if err != nil {
		return nil, err
	}
	if density.Peak() == 0 {
		return nil, invalid("density", "is required")
	}
	if maxRate == 0 {
		maxRate = density.Peak()
	}
	if math.IsNaN(maxRate) || math.IsInf(maxRate, 0) || maxRate < density.Peak() {
		return nil, invalid("max_rate", "must be finite and at least the peak density %g, got %g", density.Peak(), maxRate)
	}
	bound, err := dist.NewPoisson(maxRate)
	if err != nil {
		return nil, err
	}
	return &Stochastic{common: c, value: value, density: &density, maxRate: maxRate, bound: bound}, nil
}

// Next implements Generator.
func (g *Stochastic) Next() (ir.Event, error) {
	var t float64
	rng := g.rng
	if g.density != nil {
		if g.done {
			return ir.Event{}, ErrEndOfStream
		}
		var ok bool
		t, rng, ok = g.thin(rng)
		if !ok {
			g.rng, g.done = rng, true
			return ir.Event{}, ErrEndOfStream
		}
	} else {
		var dt float64
		dt, rng = g.timing.SampleAt(math.Max(g.last, 0), &g.hold.timing, rng)
		t = step(g.last, dt)
	}

	v, rng, ok := g.pickValue(g.value, t, rng)
	if !ok {
		g.rng = rng
		return ir.Event{}, &SieveExhaustionError{Generator: g.name, Attempts: g.retries + 1, Local: t}
	}
	ev := g.event(t, v)
	g.rng = g.finish(&ev, g.velocity, rng)
	g.last = t
	return ev, nil
}

// thin draws candidate onsets at the bound rate and keeps each with
// probability density(t)/bound. ok is false once the density is silent.
func (g *Stochastic) thin(rng dist.RNG) (float64, dist.RNG, bool) {
	t := g.last
	for {
		if g.density.silentFrom(math.Max(t, 0)) {
			return 0, rng, false
		}
		var w, u float64
		w, rng = dist.Sample(g.bound, rng)
		t = step(t, w)
		u, rng = rng.Float64()
		if u*g.maxRate < g.density.Rate(t) {
			return t, rng, true
		}
	}
}
