// Package tempo maps generator-local time onto output time.
//
// Every Map is strictly increasing, so a generator's ordered local stream
// stays ordered after mapping. Curves read local seconds as beats at 60 BPM.
package tempo

import (
	"fmt"
	"math"
	"sort"

	"github.com/roach88/stochos/internal/dist"
)

const paramKind dist.Kind = "tempo"

// Map converts a generator-local timestamp (seconds) to output seconds.
type Map interface {
	Apply(local float64) float64
}

// Identity leaves timestamps unchanged.
type Identity struct{}

// Apply implements Map.
func (Identity) Apply(local float64) float64 { return local }

// Linear scales local time and shifts it: Offset + Scale*local.
type Linear struct {
	Scale  float64
	Offset float64
}

// NewLinear validates Scale > 0 and Offset >= 0.
func NewLinear(scale, offset float64) (Linear, error) {
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return Linear{}, invalid("scale", "must be positive and finite, got %g", scale)
	}
	if math.IsNaN(offset) || math.IsInf(offset, 0) || offset < 0 {
		return Linear{}, invalid("offset", "must be non-negative and finite, got %g", offset)
	}
	return Linear{Scale: scale, Offset: offset}, nil
}

// Apply implements Map.
func (l Linear) Apply(local float64) float64 { return l.Offset + l.Scale*local }

// Breakpoint pins a tempo at a beat position.
type Breakpoint struct {
	Beat float64 `json:"beat" yaml:"beat" validate:"gte=0"`
	BPM  float64 `json:"bpm" yaml:"bpm" validate:"gt=0"`
}

// Curve is a piecewise-linear tempo ramp. Between breakpoints the BPM moves
// linearly with beat position; before the first and after the last it holds.
type Curve struct {
	points []Breakpoint
	// offsets[i] is the output time at points[i].Beat.
	offsets []float64
}

// NewCurve validates breakpoints (positive BPM, strictly increasing beats)
// and precomputes the output time at each breakpoint.
func NewCurve(points []Breakpoint) (*Curve, error) {
	if len(points) == 0 {
		return nil, invalid("points", "must not be empty")
	}
	for i, p := range points {
		if math.IsNaN(p.BPM) || math.IsInf(p.BPM, 0) || p.BPM <= 0 {
			return nil, invalid(fmt.Sprintf("points[%d].bpm", i), "must be positive and finite, got %g", p.BPM)
		}
		if math.IsNaN(p.Beat) || math.IsInf(p.Beat, 0) || p.Beat < 0 {
			return nil, invalid(fmt.Sprintf("points[%d].beat", i), "must be non-negative and finite, got %g", p.Beat)
		}
		if i > 0 && p.Beat <= points[i-1].Beat {
			return nil, invalid(fmt.Sprintf("points[%d].beat", i), "must be greater than %g", points[i-1].Beat)
		}
	}

	c := &Curve{points: append([]Breakpoint(nil), points...), offsets: make([]float64, len(points))}
	// Time before the first breakpoint runs at its constant tempo.
	c.offsets[0] = points[0].Beat * 60 / points[0].BPM
	for i := 1; i < len(points); i++ {
		c.offsets[i] = c.offsets[i-1] + segment(points[i-1], points[i], points[i].Beat)
	}
	return c, nil
}

// Apply implements Map.
func (c *Curve) Apply(local float64) float64 {
	pts := c.points
	if local <= pts[0].Beat {
		return local * 60 / pts[0].BPM
	}
	// i is the first breakpoint strictly after local.
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Beat > local })
	if i == len(pts) {
		last := pts[len(pts)-1]
		return c.offsets[len(pts)-1] + (local-last.Beat)*60/last.BPM
	}
	return c.offsets[i-1] + segment(pts[i-1], pts[i], local)
}

// BPM returns the tempo at a beat position.
func (c *Curve) BPM(beat float64) float64 {
	pts := c.points
	if beat <= pts[0].Beat {
		return pts[0].BPM
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Beat > beat })
	if i == len(pts) {
		return pts[len(pts)-1].BPM
	}
	a, b := pts[i-1], pts[i]
	return a.BPM + (b.BPM-a.BPM)*(beat-a.Beat)/(b.Beat-a.Beat)
}

// segment integrates 60/bpm(x) from a.Beat to beat, with bpm linear
// between a and b.
func segment(a, b Breakpoint, beat float64) float64 {
	db := beat - a.Beat
	k := (b.BPM - a.BPM) / (b.Beat - a.Beat)
	if math.Abs(k) < 1e-12 {
		return db * 60 / a.BPM
	}
	bpm := a.BPM + k*db
	return 60 / k * math.Log(bpm/a.BPM)
}

// Config is the declarative form of a Map.
type Config struct {
	Kind   string       `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=identity linear curve"`
	Scale  float64      `json:"scale,omitempty" yaml:"scale,omitempty"`
	Offset float64      `json:"offset,omitempty" yaml:"offset,omitempty"`
	Points []Breakpoint `json:"points,omitempty" yaml:"points,omitempty" validate:"omitempty,dive"`
}

// Build returns the Map. An empty Kind is the identity; a linear map with
// zero Scale defaults to 1.
func (c Config) Build() (Map, error) {
	switch c.Kind {
	case "", "identity":
		return Identity{}, nil
	case "linear":
		scale := c.Scale
		if scale == 0 {
			scale = 1
		}
		return NewLinear(scale, c.Offset)
	case "curve":
		return NewCurve(c.Points)
	default:
		return nil, invalid("kind", "unknown tempo map %q", c.Kind)
	}
}

// Compose applies inner first, then outer.
func Compose(outer, inner Map) Map {
	return composed{outer: outer, inner: inner}
}

type composed struct{ outer, inner Map }

func (c composed) Apply(local float64) float64 { return c.outer.Apply(c.inner.Apply(local)) }

func invalid(param, format string, args ...any) error {
	return &dist.InvalidParameterError{Kind: paramKind, Param: param, Message: fmt.Sprintf(format, args...)}
}
