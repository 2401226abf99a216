package dist

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Kind identifies a distribution family.
type Kind string

const (
	KindUniform     Kind = "uniform"
	KindPoisson     Kind = "poisson"
	KindBeta        Kind = "beta"
	KindGaussian    Kind = "gaussian"
	KindConstant    Kind = "constant"
	KindCategorical Kind = "categorical"
)

// ValidKinds lists every distribution family, in documentation order.
var ValidKinds = []Kind{KindUniform, KindPoisson, KindBeta, KindGaussian, KindConstant, KindCategorical}

// Spec is a validated, immutable distribution. The zero value is invalid;
// build one with the New* constructors or Config.Build.
type Spec struct {
	kind Kind

	// a and b hold the two family parameters:
	// uniform (low, high), poisson (rate, -), beta (alpha, beta),
	// gaussian (mean, stddev), constant (value, -).
	a, b float64

	values []float64
	cum    []float64
}

// NewUniform returns a uniform distribution over [low, high).
// low == high is allowed and always yields low.
func NewUniform(low, high float64) (Spec, error) {
	if err := finite(KindUniform, "low", low); err != nil {
		return Spec{}, err
	}
	if err := finite(KindUniform, "high", high); err != nil {
		return Spec{}, err
	}
	if low > high {
		return Spec{}, invalid(KindUniform, "low", "%g must not exceed high %g", low, high)
	}
	return Spec{kind: KindUniform, a: low, b: high}, nil
}

// NewPoisson returns a Poisson point process with the given rate in events
// per second. Samples are inter-arrival durations with mean 1/rate.
func NewPoisson(rate float64) (Spec, error) {
	if err := finite(KindPoisson, "rate", rate); err != nil {
		return Spec{}, err
	}
	if rate <= 0 {
		return Spec{}, invalid(KindPoisson, "rate", "must be positive, got %g", rate)
	}
	return Spec{kind: KindPoisson, a: rate}, nil
}

// NewBeta returns a Beta(alpha, beta) distribution on [0, 1].
func NewBeta(alpha, beta float64) (Spec, error) {
	if err := finite(KindBeta, "alpha", alpha); err != nil {
		return Spec{}, err
	}
	if err := finite(KindBeta, "beta", beta); err != nil {
		return Spec{}, err
	}
	if alpha <= 0 {
		return Spec{}, invalid(KindBeta, "alpha", "must be positive, got %g", alpha)
	}
	if beta <= 0 {
		return Spec{}, invalid(KindBeta, "beta", "must be positive, got %g", beta)
	}
	return Spec{kind: KindBeta, a: alpha, b: beta}, nil
}

// NewGaussian returns an unbounded normal distribution. A zero stddev
// always yields the mean.
func NewGaussian(mean, stddev float64) (Spec, error) {
	if err := finite(KindGaussian, "mean", mean); err != nil {
		return Spec{}, err
	}
	if err := finite(KindGaussian, "stddev", stddev); err != nil {
		return Spec{}, err
	}
	if stddev < 0 {
		return Spec{}, invalid(KindGaussian, "stddev", "must not be negative, got %g", stddev)
	}
	return Spec{kind: KindGaussian, a: mean, b: stddev}, nil
}

// NewConstant returns a degenerate distribution. Sampling it does not
// consume random state.
func NewConstant(v float64) (Spec, error) {
	if err := finite(KindConstant, "value", v); err != nil {
		return Spec{}, err
	}
	return Spec{kind: KindConstant, a: v}, nil
}

// NewCategorical returns a discrete distribution over values. With no
// weights every value is equally likely.
func NewCategorical(values, weights []float64) (Spec, error) {
	if len(values) == 0 {
		return Spec{}, invalid(KindCategorical, "values", "must not be empty")
	}
	for i, v := range values {
		if err := finite(KindCategorical, fmt.Sprintf("values[%d]", i), v); err != nil {
			return Spec{}, err
		}
	}
	if len(weights) == 0 {
		weights = make([]float64, len(values))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(values) {
		return Spec{}, invalid(KindCategorical, "weights", "has %d entries for %d values", len(weights), len(values))
	}
	cum, err := Cumulative(weights)
	if err != nil {
		var pe *InvalidParameterError
		if errors.As(err, &pe) {
			pe.Kind = KindCategorical
		}
		return Spec{}, err
	}
	vs := make([]float64, len(values))
	copy(vs, values)
	return Spec{kind: KindCategorical, values: vs, cum: cum}, nil
}

// Kind returns the distribution family.
func (s Spec) Kind() Kind { return s.kind }

// Mean returns the expected sample value.
func (s Spec) Mean() float64 {
	switch s.kind {
	case KindUniform:
		return (s.a + s.b) / 2
	case KindPoisson:
		return 1 / s.a
	case KindBeta:
		return s.a / (s.a + s.b)
	case KindGaussian, KindConstant:
		return s.a
	case KindCategorical:
		total := s.cum[len(s.cum)-1]
		var m, prev float64
		for i, c := range s.cum {
			m += s.values[i] * (c - prev) / total
			prev = c
		}
		return m
	}
	return math.NaN()
}

// String renders the spec in config notation, e.g. "poisson(rate=4)".
func (s Spec) String() string {
	switch s.kind {
	case KindUniform:
		return fmt.Sprintf("uniform(low=%g, high=%g)", s.a, s.b)
	case KindPoisson:
		return fmt.Sprintf("poisson(rate=%g)", s.a)
	case KindBeta:
		return fmt.Sprintf("beta(alpha=%g, beta=%g)", s.a, s.b)
	case KindGaussian:
		return fmt.Sprintf("gaussian(mean=%g, stddev=%g)", s.a, s.b)
	case KindConstant:
		return fmt.Sprintf("constant(%g)", s.a)
	case KindCategorical:
		return fmt.Sprintf("categorical(%v)", s.values)
	}
	return "invalid"
}

// Sample draws one value from spec and returns the successor random state.
// It is pure: the same (spec, rng) pair always yields the same result.
func Sample(spec Spec, rng RNG) (float64, RNG) {
	src := rng.pcg
	var v float64
	switch spec.kind {
	case KindUniform:
		v = distuv.Uniform{Min: spec.a, Max: spec.b, Src: &src}.Rand()
	case KindPoisson:
		v = distuv.Exponential{Rate: spec.a, Src: &src}.Rand()
	case KindBeta:
		v = distuv.Beta{Alpha: spec.a, Beta: spec.b, Src: &src}.Rand()
	case KindGaussian:
		v = distuv.Normal{Mu: spec.a, Sigma: spec.b, Src: &src}.Rand()
	case KindConstant:
		return spec.a, rng
	case KindCategorical:
		u := distuv.Uniform{Min: 0, Max: 1, Src: &src}.Rand()
		v = spec.values[Pick(spec.cum, u)]
	default:
		panic(fmt.Sprintf("dist: sample from unbuilt spec %q", spec.kind))
	}
	return v, RNG{pcg: src}
}

// Cumulative validates a weight row and returns its running sums.
// Weights must be finite and non-negative with a positive total.
func Cumulative(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, invalid("", "weights", "must not be empty")
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, invalid("", fmt.Sprintf("weights[%d]", i), "must be finite and non-negative, got %g", w)
		}
	}
	cum := floats.CumSum(make([]float64, len(weights)), weights)
	if cum[len(cum)-1] <= 0 {
		return nil, invalid("", "weights", "must have a positive sum")
	}
	return cum, nil
}

// Pick selects an index by inverse CDF. u is a uniform draw in [0, 1) and
// cum the running sums of the weights. Intervals are half-open
// [cum[i-1], cum[i]), so a draw landing exactly on a boundary resolves to
// the following interval, and zero-weight entries are never chosen.
func Pick(cum []float64, u float64) int {
	x := u * cum[len(cum)-1]
	for i, c := range cum {
		if x < c {
			return i
		}
	}
	// Rounding can leave x == total; fall back to the last positive weight.
	for i := len(cum) - 1; i > 0; i-- {
		if cum[i] > cum[i-1] {
			return i
		}
	}
	return 0
}

func finite(kind Kind, param string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(kind, param, "must be finite, got %g", v)
	}
	return nil
}
