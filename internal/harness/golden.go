package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stochos/internal/ir"
)

// StreamSnapshot captures a rendered stream for golden comparison.
// All fields use canonical JSON serialization for deterministic comparison.
type StreamSnapshot struct {
	ScenarioName string     `json:"scenario_name"`
	StreamHash   string     `json:"stream_hash"`
	Evicted      []string   `json:"evicted"`
	Events       []ir.Event `json:"events"`
}

// toCanonicalMap converts a StreamSnapshot to a map[string]any for canonical JSON serialization.
// Timestamps become integer microseconds via ir.Event.CanonicalMap.
func (s *StreamSnapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Events))
	for i, ev := range s.Events {
		events[i] = ev.CanonicalMap()
	}
	evicted := s.Evicted
	if evicted == nil {
		evicted = []string{}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"stream_hash":   s.StreamHash,
		"evicted":       evicted,
		"events":        events,
	}
}

// RunWithGolden executes a scenario and compares the stream against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the stream doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}

// Snapshot returns the canonical JSON golden form of a result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := StreamSnapshot{
		ScenarioName: scenarioName,
		StreamHash:   result.StreamHash,
		Evicted:      result.Evicted,
		Events:       result.Events,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}
