package scene

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/gen"
	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/markov"
	"github.com/roach88/stochos/internal/sched"
	"github.com/roach88/stochos/internal/sieve"
	"github.com/roach88/stochos/internal/tempo"
)

// Built is one constructed generator, ready to register.
type Built struct {
	Name      string
	Type      GeneratorType
	Generator gen.Generator
	TimeMap   tempo.Map

	// Hash identifies the generator's effective configuration. Two builds
	// with equal hashes produce the same stream.
	Hash string
}

// Plan is a built scene.
type Plan struct {
	Name       string
	Seed       uint64
	Hash       string
	Horizon    float64
	BufferCap  int
	Tempo      tempo.Map
	Generators []Built

	// Scene is the configuration the plan was built from.
	Scene *Scene
}

// Names returns the generator names in registration order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.Generators))
	for i, b := range p.Generators {
		out[i] = b.Name
	}
	return out
}

// SchedulerOptions returns the options that configure a scheduler for
// this plan. Extra options are appended and win.
func (p *Plan) SchedulerOptions(extra ...sched.Option) []sched.Option {
	opts := []sched.Option{sched.WithTempo(p.Tempo)}
	if p.Horizon > 0 {
		opts = append(opts, sched.WithHorizon(p.Horizon))
	}
	if p.BufferCap > 0 {
		opts = append(opts, sched.WithBufferCap(p.BufferCap))
	}
	return append(opts, extra...)
}

// Register adds every generator to s in plan order.
func (p *Plan) Register(s *sched.Scheduler) error {
	for _, b := range p.Generators {
		if _, err := s.Add(b.Generator, sched.WithTimeMap(b.TimeMap)); err != nil {
			return fmt.Errorf("register %s: %w", b.Name, err)
		}
	}
	return nil
}

// LoadPlan loads a scene file and builds it.
func LoadPlan(path string, mode LoadMode) (*Plan, []error) {
	s, _, err := LoadFile(path)
	if err != nil {
		return nil, []error{err}
	}
	return Build(s, mode)
}

// Build validates a scene and constructs its generators.
//
// In LoadModeFailFast the first error aborts and the plan is nil. In
// LoadModeCollectAll every error is reported; generators that fail are
// left out of the plan, while scene-level errors still yield a nil plan.
func Build(s *Scene, mode LoadMode) (*Plan, []error) {
	var errs []error

	skip := map[int]bool{}
	for _, err := range Validate(s) {
		errs = append(errs, err)
		if mode == LoadModeFailFast {
			return nil, errs
		}
		le := err.(*LoadError)
		if le.Generator == "" {
			return nil, errs
		}
		for i, g := range s.Generators {
			if g.Name == le.Generator {
				skip[i] = true
			}
		}
	}

	global := tempo.Map(tempo.Identity{})
	if s.Tempo != nil {
		m, err := s.Tempo.Build()
		if err != nil {
			return nil, append(errs, &LoadError{Code: ErrCodeTempo, Message: "tempo: " + err.Error(), Err: err})
		}
		global = m
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, append(errs, &LoadError{Code: ErrCodeGeneric, Message: err.Error(), Err: err})
	}
	plan := &Plan{
		Name:      s.Name,
		Seed:      s.Seed,
		Hash:      ir.SceneHash(raw),
		Horizon:   s.Horizon,
		BufferCap: s.BufferCap,
		Tempo:     global,
		Scene:     s,
	}

	seen := map[string]bool{}
	for i, g := range s.Generators {
		if skip[i] {
			continue
		}
		pos := s.positions[i]
		if seen[g.Name] {
			errs = append(errs, &LoadError{Code: ErrCodeDuplicate, Message: "duplicate generator name", Generator: g.Name, Pos: pos})
			if mode == LoadModeFailFast {
				return nil, errs
			}
			continue
		}
		seen[g.Name] = true

		b, err := buildGenerator(s, g)
		if err != nil {
			errs = append(errs, buildError(err, g.Name, pos))
			if mode == LoadModeFailFast {
				return nil, errs
			}
			continue
		}
		plan.Generators = append(plan.Generators, b)
	}
	return plan, errs
}

// BuildGenerator constructs a single generator as it would be built inside
// s, with the scene's seed and retry defaults.
func BuildGenerator(s *Scene, g GeneratorConfig) (Built, error) {
	if err := validate.Struct(g); err != nil {
		return Built{}, &LoadError{Code: ErrCodeValidation, Message: err.Error(), Generator: g.Name, Err: err}
	}
	b, err := buildGenerator(s, g)
	if err != nil {
		return Built{}, buildError(err, g.Name, Pos{})
	}
	return b, nil
}

func buildGenerator(s *Scene, g GeneratorConfig) (Built, error) {
	seed := ir.SeedFor(s.Seed, g.Name)
	if g.Seed != nil {
		seed = *g.Seed
	}
	retries := gen.DefaultRetries
	switch {
	case g.Retries != nil:
		retries = *g.Retries
	case s.RetryLimit != nil:
		retries = *s.RetryLimit
	}

	kind, err := ir.ParseKind(g.Kind)
	if err != nil {
		return Built{}, required("kind", err.Error())
	}
	opts := []gen.Option{
		gen.WithSeed(seed),
		gen.WithKind(kind),
		gen.WithChannel(g.Channel),
		gen.WithRetries(retries),
		gen.WithQuantize(g.Quantize),
	}
	if g.SearchLimit != nil {
		opts = append(opts, gen.WithSearchLimit(*g.SearchLimit))
	}
	if g.Span != nil {
		opts = append(opts, gen.WithSpan(g.Span.Low, g.Span.High))
	}
	if g.Sieve != "" {
		sv, err := sieve.BuildString(g.Sieve)
		if err != nil {
			return Built{}, err
		}
		opts = append(opts, gen.WithSieve(sv))
	}
	if g.Velocity != nil {
		f, err := g.Velocity.Build()
		if err != nil {
			return Built{}, err
		}
		opts = append(opts, gen.WithVelocity(f))
	}
	if g.Duration != nil {
		f, err := g.Duration.Build()
		if err != nil {
			return Built{}, err
		}
		opts = append(opts, gen.WithDuration(f))
	}
	if g.ChannelField != nil {
		f, err := g.ChannelField.Build()
		if err != nil {
			return Built{}, err
		}
		opts = append(opts, gen.WithChannelField(f))
	}

	var built gen.Generator
	switch g.Type {
	case TypeStochastic:
		if g.Density != nil {
			built, err = thinned(g, opts)
			if err != nil {
				return Built{}, err
			}
			break
		}
		timing, value, err := fields(g, true)
		if err != nil {
			return Built{}, err
		}
		built, err = gen.NewStochastic(g.Name, timing, value, opts...)
		if err != nil {
			return Built{}, err
		}

	case TypeSieve:
		if g.Rhythm == "" {
			return Built{}, required("rhythm", "is required for sieve generators")
		}
		rhythm, err := sieve.BuildString(g.Rhythm)
		if err != nil {
			return Built{}, err
		}
		_, value, err := fields(g, false)
		if err != nil {
			return Built{}, err
		}
		built, err = gen.NewSieveRhythm(g.Name, rhythm, g.Step, value, opts...)
		if err != nil {
			return Built{}, err
		}

	case TypeMarkov:
		if g.Markov == nil {
			return Built{}, required("markov", "is required for markov generators")
		}
		model, materials, err := g.Markov.Build()
		if err != nil {
			return Built{}, err
		}
		screen := g.Screen
		if screen == 0 && g.Markov.Preset == markov.PresetAnalogiqueA {
			screen = markov.ScreenDuration
		}
		built, err = gen.NewMarkovDriven(g.Name, model, materials, screen, opts...)
		if err != nil {
			return Built{}, err
		}

	case TypeSequence:
		if len(g.Cues) == 0 {
			return Built{}, required("cues", "must list at least one cue")
		}
		built, err = gen.NewSequence(g.Name, g.Cues, opts...)
		if err != nil {
			return Built{}, err
		}

	default:
		return Built{}, required("type", fmt.Sprintf("unknown generator type %q", g.Type))
	}

	tmap := tempo.Map(tempo.Identity{})
	if g.TempoMap != nil {
		if tmap, err = g.TempoMap.Build(); err != nil {
			return Built{}, err
		}
	}

	hash, err := configHash(g, seed, retries)
	if err != nil {
		return Built{}, err
	}
	return Built{
		Name:      g.Name,
		Type:      g.Type,
		Generator: built,
		TimeMap:   tmap,
		Hash:      hash,
	}, nil
}

// fields builds the value field and, when withTiming, the timing field.
func fields(g GeneratorConfig, withTiming bool) (timing, value dist.Field, err error) {
	if withTiming {
		if g.Timing == nil {
			return timing, value, required("timing", "is required for stochastic generators")
		}
		if timing, err = g.Timing.Build(); err != nil {
			return timing, value, err
		}
	}
	if g.Value == nil {
		return timing, value, required("value", fmt.Sprintf("is required for %s generators", g.Type))
	}
	value, err = g.Value.Build()
	return timing, value, err
}

// thinned builds a stochastic generator driven by a density curve.
func thinned(g GeneratorConfig, opts []gen.Option) (gen.Generator, error) {
	if g.Timing != nil {
		return nil, required("density", "cannot be combined with timing")
	}
	density, err := gen.NewDensity(g.Density.Points)
	if err != nil {
		return nil, err
	}
	_, value, err := fields(g, false)
	if err != nil {
		return nil, err
	}
	s, err := gen.NewThinned(g.Name, density, g.Density.MaxRate, value, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func required(param, msg string) error {
	return &dist.InvalidParameterError{Kind: "generator", Param: param, Message: msg}
}

func configHash(g GeneratorConfig, seed uint64, retries int) (string, error) {
	raw, err := json.Marshal(struct {
		Config  GeneratorConfig `json:"config"`
		Seed    uint64          `json:"seed"`
		Retries int             `json:"retries"`
	}{g, seed, retries})
	if err != nil {
		return "", fmt.Errorf("hashing generator config: %w", err)
	}
	return ir.SceneHash(raw), nil
}
