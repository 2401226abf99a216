package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/stochos/internal/render"
	"github.com/roach88/stochos/internal/scene"
	"github.com/roach88/stochos/internal/store"
	"github.com/roach88/stochos/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation.
//
// Execution flow:
//  1. Load and build the scene
//  2. Render it offline for the scenario's duration
//  3. Record the render and replay it from the stored scene
//  4. Evaluate assertions over the rendered stream
//
// Errors returned are setup failures (missing scene, build errors, store
// failures). Assertion and replay failures land in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	mode := scene.LoadModeFailFast
	if scenario.CollectAll {
		mode = scene.LoadModeCollectAll
	}

	sc, _, err := scene.LoadFile(scenario.Scene)
	if err != nil {
		return nil, fmt.Errorf("failed to load scene: %w", err)
	}
	plan, errs := scene.Build(sc, mode)
	if plan == nil {
		return nil, fmt.Errorf("failed to build scene: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		slog.Debug("generator skipped", "scenario", scenario.Name, "error", err)
	}

	rendered, err := render.Offline(plan, scenario.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to render scene: %w", err)
	}

	result := NewResult()
	result.Events = rendered.Events
	result.Evicted = rendered.Evicted()
	result.StreamHash = rendered.StreamHash

	if err := recordAndReplay(scenario, sc, rendered, result); err != nil {
		return nil, err
	}

	for i, a := range scenario.Assertions {
		if err := checkAssertion(result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"events", len(result.Events),
		"pass", result.Pass,
	)
	return result, nil
}

// recordAndReplay stores the render and checks it can be reproduced from
// the stored scene alone.
func recordAndReplay(scenario *Scenario, sc *scene.Scene, rendered *render.Result, result *Result) error {
	st, err := store.Open(":memory:")
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	id := scenario.RenderID
	if id == "" {
		id = testutil.NewFixedIDGenerator("test-render").Generate()
	}
	result.RenderID = id

	ctx := context.Background()
	if _, err := st.Record(ctx, sc, rendered, id); err != nil {
		return fmt.Errorf("failed to record render: %w", err)
	}

	replay, err := st.Replay(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to replay render: %w", err)
	}
	if !replay.Match() {
		result.AddError(fmt.Sprintf("replay diverged at event %d: recorded %s, replayed %s",
			replay.Divergence, replay.Expected, replay.Actual))
	}
	return nil
}
