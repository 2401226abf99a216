package gen

import (
	"fmt"
	"math"

	"github.com/roach88/stochos/internal/ir"
)

// Cue is one scripted event of a Sequence.
type Cue struct {
	At       float64 `json:"at" yaml:"at" validate:"gte=0"`
	Value    int     `json:"value" yaml:"value" validate:"gte=0,lte=127"`
	Velocity int     `json:"velocity,omitempty" yaml:"velocity,omitempty" validate:"gte=0,lte=127"`
	Duration float64 `json:"duration,omitempty" yaml:"duration,omitempty" validate:"gte=0"`
}

// Sequence emits fixed cues in order, then ErrEndOfStream.
type Sequence struct {
	common
	cues []Cue
	next int
}

// NewSequence builds a scripted generator. Cue times must be non-negative
// and strictly increasing. A zero velocity or duration uses the default.
func NewSequence(name string, cues []Cue, opts ...Option) (*Sequence, error) {
	c, err := newCommon(name, opts)
	if err != nil {
		return nil, err
	}
	for i, cue := range cues {
		param := fmt.Sprintf("cues[%d]", i)
		if math.IsNaN(cue.At) || math.IsInf(cue.At, 0) || cue.At < 0 {
			return nil, invalid(param, "time must be non-negative and finite, got %g", cue.At)
		}
		if i > 0 && cue.At <= cues[i-1].At {
			return nil, invalid(param, "time %g must be after %g", cue.At, cues[i-1].At)
		}
		if cue.Value < 0 || cue.Value > 127 {
			return nil, invalid(param, "value must be in 0..127, got %d", cue.Value)
		}
	}
	return &Sequence{common: c, cues: append([]Cue(nil), cues...)}, nil
}

// Next implements Generator.
func (g *Sequence) Next() (ir.Event, error) {
	if g.next >= len(g.cues) {
		return ir.Event{}, ErrEndOfStream
	}
	cue := g.cues[g.next]
	g.next++

	ev := g.event(cue.At, cue.Value)
	g.rng = g.finish(&ev, g.velocity, g.rng)
	if cue.Velocity > 0 {
		ev.Velocity = cue.Velocity
	}
	if cue.Duration > 0 {
		ev.Duration = math.Max(cue.Duration, MinDuration)
	}
	g.last = cue.At
	return ev, nil
}

// Remaining returns the number of cues not yet emitted.
func (g *Sequence) Remaining() int { return len(g.cues) - g.next }
