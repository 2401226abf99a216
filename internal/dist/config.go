package dist

// Config is the declarative form of a Spec, as written in scene files.
// Only the fields of the selected Kind are read.
type Config struct {
	Kind Kind `json:"kind" yaml:"kind" validate:"required,oneof=uniform poisson beta gaussian constant categorical"`

	Low  float64 `json:"low,omitempty" yaml:"low,omitempty"`
	High float64 `json:"high,omitempty" yaml:"high,omitempty"`

	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	Alpha float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	Beta  float64 `json:"beta,omitempty" yaml:"beta,omitempty"`

	Mean   float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	StdDev float64 `json:"stddev,omitempty" yaml:"stddev,omitempty"`

	Value float64 `json:"value,omitempty" yaml:"value,omitempty"`

	Values  []float64 `json:"values,omitempty" yaml:"values,omitempty"`
	Weights []float64 `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// Build validates the config and returns the Spec.
func (c Config) Build() (Spec, error) {
	switch c.Kind {
	case KindUniform:
		return NewUniform(c.Low, c.High)
	case KindPoisson:
		return NewPoisson(c.Rate)
	case KindBeta:
		return NewBeta(c.Alpha, c.Beta)
	case KindGaussian:
		return NewGaussian(c.Mean, c.StdDev)
	case KindConstant:
		return NewConstant(c.Value)
	case KindCategorical:
		return NewCategorical(c.Values, c.Weights)
	case "":
		return Spec{}, invalid("", "kind", "is required")
	default:
		return Spec{}, invalid(c.Kind, "kind", "is not a known distribution")
	}
}

// ConfigOf returns the declarative form of a built Spec.
func ConfigOf(s Spec) Config {
	c := Config{Kind: s.kind}
	switch s.kind {
	case KindUniform:
		c.Low, c.High = s.a, s.b
	case KindPoisson:
		c.Rate = s.a
	case KindBeta:
		c.Alpha, c.Beta = s.a, s.b
	case KindGaussian:
		c.Mean, c.StdDev = s.a, s.b
	case KindConstant:
		c.Value = s.a
	case KindCategorical:
		c.Values = append([]float64(nil), s.values...)
		c.Weights = make([]float64, len(s.cum))
		prev := 0.0
		for i, cum := range s.cum {
			c.Weights[i] = cum - prev
			prev = cum
		}
	}
	return c
}
