package dist

import (
	"fmt"
	"math"
)

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether v lies in the interval.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// Clamp limits v to the interval.
func (r Range) Clamp(v float64) float64 { return math.Min(math.Max(v, r.Min), r.Max) }

// FieldConfig is the declarative form of a Field.
type FieldConfig struct {
	Config `yaml:",inline"`

	Offset float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
	Scale  float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
	Jitter float64 `json:"jitter,omitempty" yaml:"jitter,omitempty" validate:"gte=0"`
	Clip   *Range  `json:"clip,omitempty" yaml:"clip,omitempty"`

	// Hold keeps a drawn value for this many seconds (sample and hold).
	Hold float64 `json:"hold,omitempty" yaml:"hold,omitempty" validate:"gte=0"`
}

// Field maps a distribution onto a musical parameter:
// Offset + Scale*draw, plus uniform jitter in [-Jitter, Jitter), then an
// optional clip. Fields are immutable once built; the sample-and-hold state
// of a field with a hold time lives in a caller-owned Hold.
type Field struct {
	spec   Spec
	offset float64
	scale  float64
	jitter float64
	clip   *Range
	hold   float64
}

// Hold is the sample-and-hold state of one Field. The zero value holds
// nothing.
type Hold struct {
	value float64
	at    float64
	set   bool
}

// Release drops the held value so the next SampleAt draws afresh.
func (h *Hold) Release() { h.set = false }

// Build validates the config and returns the Field. A zero Scale means 1.
func (c FieldConfig) Build() (Field, error) {
	spec, err := c.Config.Build()
	if err != nil {
		return Field{}, err
	}
	scale := c.Scale
	if scale == 0 {
		scale = 1
	}
	for _, p := range []struct {
		name string
		v    float64
	}{{"offset", c.Offset}, {"scale", scale}, {"jitter", c.Jitter}, {"hold", c.Hold}} {
		if err := finite(spec.kind, p.name, p.v); err != nil {
			return Field{}, err
		}
	}
	if c.Jitter < 0 {
		return Field{}, invalid(spec.kind, "jitter", "must not be negative, got %g", c.Jitter)
	}
	if c.Hold < 0 {
		return Field{}, invalid(spec.kind, "hold", "must not be negative, got %g", c.Hold)
	}
	f := Field{spec: spec, offset: c.Offset, scale: scale, jitter: c.Jitter, hold: c.Hold}
	if c.Clip != nil {
		if c.Clip.Min > c.Clip.Max {
			return Field{}, invalid(spec.kind, "clip", "min %g exceeds max %g", c.Clip.Min, c.Clip.Max)
		}
		clip := *c.Clip
		f.clip = &clip
	}
	return f, nil
}

// NewField wraps a spec with identity scaling and no jitter or clip.
func NewField(spec Spec) Field {
	return Field{spec: spec, scale: 1}
}

// Spec returns the underlying distribution.
func (f Field) Spec() Spec { return f.spec }

// Hold returns the hold time in seconds, 0 when the field draws every time.
func (f Field) Hold() float64 { return f.hold }

// Sample draws a parameter value and returns the successor random state.
// The hold time is ignored.
func (f Field) Sample(rng RNG) (float64, RNG) {
	v, rng := Sample(f.spec, rng)
	return f.shape(f.offset+f.scale*v, rng)
}

// SampleAt draws a parameter value at local time now. Within the hold time
// of the last fresh draw recorded in h the held value is reused; jitter and
// clip still apply to it. Without a hold time it is Sample.
func (f Field) SampleAt(now float64, h *Hold, rng RNG) (float64, RNG) {
	if f.hold <= 0 || h == nil {
		return f.Sample(rng)
	}
	if !h.set || now-h.at >= f.hold {
		var v float64
		v, rng = Sample(f.spec, rng)
		*h = Hold{value: f.offset + f.scale*v, at: now, set: true}
	}
	return f.shape(h.value, rng)
}

// shape applies jitter and clip.
func (f Field) shape(v float64, rng RNG) (float64, RNG) {
	if f.jitter > 0 {
		var u float64
		u, rng = rng.Float64()
		v += (2*u - 1) * f.jitter
	}
	if f.clip != nil {
		v = f.clip.Clamp(v)
	}
	return v, rng
}

// String renders the field for diagnostics.
func (f Field) String() string {
	s := f.spec.String()
	if f.scale != 1 || f.offset != 0 {
		s = fmt.Sprintf("%g+%g*%s", f.offset, f.scale, s)
	}
	if f.jitter > 0 {
		s += fmt.Sprintf("±%g", f.jitter)
	}
	if f.clip != nil {
		s += fmt.Sprintf(" clip[%g,%g]", f.clip.Min, f.clip.Max)
	}
	if f.hold > 0 {
		s += fmt.Sprintf(" hold %gs", f.hold)
	}
	return s
}
