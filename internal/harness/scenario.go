package harness

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stochos/internal/sieve"
)

// Scenario is one scene test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Scene is the scene file path, relative to the scenario file.
	Scene string `yaml:"scene"`

	// Duration is the render length in seconds.
	Duration float64 `yaml:"duration"`

	// CollectAll builds the scene in collect-all mode, skipping generators
	// that fail to build instead of failing the scenario.
	CollectAll bool `yaml:"collect_all,omitempty"`

	// RenderID is a fixed id for the stored render. Defaults to
	// "test-render-1".
	RenderID string `yaml:"render_id,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Assertion checks one property of the rendered stream.
type Assertion struct {
	// Type is one of count, ordered, evicted, values_in.
	Type string `yaml:"type"`

	// Generator restricts count and values_in to one generator.
	Generator string `yaml:"generator,omitempty"`

	// Count is the exact number of events (count). Min and Max bound it
	// instead.
	Count *int `yaml:"count,omitempty"`
	Min   *int `yaml:"min,omitempty"`
	Max   *int `yaml:"max,omitempty"`

	// Generators is the expected eviction list (evicted).
	Generators []string `yaml:"generators,omitempty"`

	// Values, Range and Sieve describe the allowed values (values_in).
	// Any combination may be given; a value must satisfy all of them.
	Values []int     `yaml:"values,omitempty"`
	Range  *IntRange `yaml:"range,omitempty"`
	Sieve  string    `yaml:"sieve,omitempty"`

	// compiled is Sieve, parsed at load time.
	compiled *sieve.Sieve
}

// IntRange is an inclusive integer range.
type IntRange struct {
	Low  int `yaml:"low"`
	High int `yaml:"high"`
}

// Assertion type constants.
const (
	AssertCount    = "count"
	AssertOrdered  = "ordered"
	AssertEvicted  = "evicted"
	AssertValuesIn = "values_in"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The scene path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Scene != "" && !filepath.IsAbs(scenario.Scene) {
		scenario.Scene = filepath.Join(filepath.Dir(path), scenario.Scene)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Scene == "" {
		return fmt.Errorf("scene is required")
	}
	if _, err := os.Stat(s.Scene); os.IsNotExist(err) {
		return fmt.Errorf("scene file not found: %s", s.Scene)
	}

	if !(s.Duration > 0) || math.IsInf(s.Duration, 0) {
		return fmt.Errorf("duration must be positive, got %v", s.Duration)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
// A values_in sieve is parsed here so a bad formula fails at load time.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCount:
		if a.Count == nil && a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: count, min or max is required for count", index)
		}
		for _, n := range []*int{a.Count, a.Min, a.Max} {
			if n != nil && *n < 0 {
				return fmt.Errorf("assertions[%d]: counts must be non-negative", index)
			}
		}
	case AssertOrdered:
	case AssertEvicted:
		if a.Generators == nil {
			return fmt.Errorf("assertions[%d]: generators list is required for evicted (use [] for none)", index)
		}
	case AssertValuesIn:
		if a.Generator == "" {
			return fmt.Errorf("assertions[%d]: generator is required for values_in", index)
		}
		if len(a.Values) == 0 && a.Range == nil && a.Sieve == "" {
			return fmt.Errorf("assertions[%d]: values, range or sieve is required for values_in", index)
		}
		if a.Range != nil && a.Range.Low > a.Range.High {
			return fmt.Errorf("assertions[%d]: range low %d exceeds high %d", index, a.Range.Low, a.Range.High)
		}
		if a.Sieve != "" {
			s, err := sieve.BuildString(a.Sieve)
			if err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
			a.compiled = s
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
