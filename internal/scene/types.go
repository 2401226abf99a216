package scene

import (
	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/gen"
	"github.com/roach88/stochos/internal/markov"
	"github.com/roach88/stochos/internal/tempo"
)

// GeneratorType selects the generator implementation.
type GeneratorType string

const (
	TypeStochastic GeneratorType = "stochastic"
	TypeSieve      GeneratorType = "sieve"
	TypeMarkov     GeneratorType = "markov"
	TypeSequence   GeneratorType = "sequence"
)

// Scene is the declarative form of a scene file.
type Scene struct {
	Name string `json:"name" yaml:"name" validate:"required"`

	// Seed is the scene seed; each generator derives its own from it and
	// its name unless it sets one explicitly.
	Seed uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Horizon and BufferCap tune the scheduler. Zero uses the default.
	Horizon   float64 `json:"horizon,omitempty" yaml:"horizon,omitempty" validate:"gte=0"`
	BufferCap int     `json:"buffer_cap,omitempty" yaml:"buffer_cap,omitempty" validate:"gte=0"`

	// RetryLimit is the sieve retry bound for generators that do not set
	// their own.
	RetryLimit *int `json:"retry_limit,omitempty" yaml:"retry_limit,omitempty" validate:"omitempty,gte=0"`

	// Tempo is the global time map applied after each generator's own.
	Tempo *tempo.Config `json:"tempo,omitempty" yaml:"tempo,omitempty"`

	Generators []GeneratorConfig `json:"generators" yaml:"generators" validate:"dive"`

	// positions maps generator index to its source position, when known.
	positions map[int]Pos
}

// DensityConfig is a rate curve in events per second over generator-local
// time. MaxRate bounds the curve for thinning; zero uses its peak.
type DensityConfig struct {
	MaxRate float64            `json:"max_rate,omitempty" yaml:"max_rate,omitempty" validate:"gte=0"`
	Points  []gen.DensityPoint `json:"points" yaml:"points" validate:"min=1,dive"`
}

// GeneratorConfig is one generator of a scene. Which fields are read
// depends on Type.
type GeneratorConfig struct {
	Name string        `json:"name" yaml:"name" validate:"required"`
	Type GeneratorType `json:"type" yaml:"type" validate:"required,oneof=stochastic sieve markov sequence"`

	Kind    string  `json:"kind,omitempty" yaml:"kind,omitempty" validate:"omitempty,oneof=note control"`
	Channel int     `json:"channel,omitempty" yaml:"channel,omitempty" validate:"gte=0,lte=15"`
	Seed    *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// Sieve filters values (pitches or CC numbers), in text notation.
	Sieve    string    `json:"sieve,omitempty" yaml:"sieve,omitempty"`
	Span     *gen.Span `json:"span,omitempty" yaml:"span,omitempty"`
	Quantize bool      `json:"quantize,omitempty" yaml:"quantize,omitempty"`
	Retries  *int      `json:"retries,omitempty" yaml:"retries,omitempty" validate:"omitempty,gte=0"`

	Timing   *dist.FieldConfig `json:"timing,omitempty" yaml:"timing,omitempty"`
	Value    *dist.FieldConfig `json:"value,omitempty" yaml:"value,omitempty"`
	Velocity *dist.FieldConfig `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	Duration *dist.FieldConfig `json:"duration,omitempty" yaml:"duration,omitempty"`

	// ChannelField draws the MIDI channel per event instead of Channel.
	ChannelField *dist.FieldConfig `json:"channel_field,omitempty" yaml:"channel_field,omitempty"`

	// Density replaces Timing on stochastic generators with a time-varying
	// event rate.
	Density *DensityConfig `json:"density,omitempty" yaml:"density,omitempty"`

	// Rhythm and Step drive sieve generators: onsets at position*Step for
	// every position the rhythm sieve accepts. SearchLimit bounds the steps
	// spent finding the next position.
	Rhythm      string  `json:"rhythm,omitempty" yaml:"rhythm,omitempty"`
	Step        float64 `json:"step,omitempty" yaml:"step,omitempty" validate:"gte=0"`
	SearchLimit *int    `json:"search_limit,omitempty" yaml:"search_limit,omitempty" validate:"omitempty,gt=0"`

	// Markov and Screen drive markov generators.
	Markov *markov.Config `json:"markov,omitempty" yaml:"markov,omitempty"`
	Screen float64        `json:"screen,omitempty" yaml:"screen,omitempty" validate:"gte=0"`

	Cues []gen.Cue `json:"cues,omitempty" yaml:"cues,omitempty" validate:"dive"`

	TempoMap *tempo.Config `json:"tempo_map,omitempty" yaml:"tempo_map,omitempty"`
}
