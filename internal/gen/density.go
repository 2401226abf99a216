package gen

import (
	"math"
	"sort"
)

// DensityPoint is one breakpoint of a density curve: Rate events per
// second at local time At.
type DensityPoint struct {
	At   float64 `json:"at" yaml:"at" validate:"gte=0"`
	Rate float64 `json:"rate" yaml:"rate" validate:"gte=0"`
}

// Density is an event rate over generator-local time, linear between
// breakpoints and constant before the first and after the last.
type Density struct {
	points []DensityPoint
	peak   float64

	// silence is the time from which the rate stays zero, +Inf if never.
	silence float64
}

// NewDensity validates breakpoints (strictly increasing times, finite
// non-negative rates, at least one positive).
func NewDensity(points []DensityPoint) (Density, error) {
	if len(points) == 0 {
		return Density{}, invalid("density", "needs at least one point")
	}
	var peak float64
	for i, p := range points {
		switch {
		case math.IsNaN(p.At) || math.IsInf(p.At, 0) || p.At < 0:
			return Density{}, invalid("density", "point %d: time must be non-negative and finite, got %g", i, p.At)
		case math.IsNaN(p.Rate) || math.IsInf(p.Rate, 0) || p.Rate < 0:
			return Density{}, invalid("density", "point %d: rate must be non-negative and finite, got %g", i, p.Rate)
		case i > 0 && p.At <= points[i-1].At:
			return Density{}, invalid("density", "point %d: times must increase", i)
		}
		peak = math.Max(peak, p.Rate)
	}
	if peak == 0 {
		return Density{}, invalid("density", "every rate is zero")
	}
	silence := math.Inf(1)
	for i := len(points) - 1; i >= 0 && points[i].Rate == 0; i-- {
		silence = points[i].At
	}
	return Density{points: append([]DensityPoint(nil), points...), peak: peak, silence: silence}, nil
}

// Rate returns the density at local time t.
func (d Density) Rate(t float64) float64 {
	ps := d.points
	if len(ps) == 0 {
		return 0
	}
	i := sort.Search(len(ps), func(i int) bool { return ps[i].At > t })
	switch i {
	case 0:
		return ps[0].Rate
	case len(ps):
		return ps[len(ps)-1].Rate
	}
	a, b := ps[i-1], ps[i]
	return a.Rate + (b.Rate-a.Rate)*(t-a.At)/(b.At-a.At)
}

// Peak returns the largest rate of the curve.
func (d Density) Peak() float64 { return d.peak }

// silentFrom reports whether the density is zero for every time >= t.
func (d Density) silentFrom(t float64) bool { return t >= d.silence }
