package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/render"
	"github.com/roach88/stochos/internal/scene"
)

// Record saves the scene a render was made from, then the render itself
// under id.
func (s *Store) Record(ctx context.Context, sc *scene.Scene, res *render.Result, id string) (Render, error) {
	sceneID, err := s.SaveScene(ctx, sc)
	if err != nil {
		return Render{}, fmt.Errorf("record: %w", err)
	}
	r := Render{
		ID:         id,
		SceneID:    sceneID,
		Duration:   res.Duration,
		StreamHash: res.StreamHash,
		EventCount: len(res.Events),
		Evicted:    res.Evicted(),
	}
	if err := s.WriteRender(ctx, r, res.Events); err != nil {
		return Render{}, fmt.Errorf("record: %w", err)
	}
	return r, nil
}

// ReplayResult compares a stored render with a fresh render of its scene.
type ReplayResult struct {
	RenderID string
	SceneID  string

	// Expected is the stream hash recorded with the render.
	Expected string

	// Stored is the hash of the events read back from the store.
	Stored string

	// Actual is the hash of the re-render.
	Actual string

	// Divergence is the index of the first event that differs between the
	// stored and re-rendered streams, or -1.
	Divergence int

	StoredEvents int
	ActualEvents int
}

// Match reports whether the stored and re-rendered streams are identical.
func (r ReplayResult) Match() bool {
	return r.Divergence < 0 && r.Expected == r.Actual && r.Stored == r.Actual
}

// Replay re-renders a stored render from its stored scene and compares
// the streams. A mismatch is reported in the result, not as an error.
func (s *Store) Replay(ctx context.Context, renderID string) (ReplayResult, error) {
	res := ReplayResult{RenderID: renderID, Divergence: -1}

	stored, err := s.GetRender(ctx, renderID)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	res.SceneID = stored.SceneID
	res.Expected = stored.StreamHash

	sc, err := s.GetScene(ctx, stored.SceneID)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}

	events, err := s.ReadEvents(ctx, renderID)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	res.StoredEvents = len(events)
	if res.Stored, err = ir.StreamHash(events); err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}

	// Collect-all rebuilds a render that skipped broken generators the same
	// way; a fully valid scene builds identically in either mode.
	plan, errs := scene.Build(sc, scene.LoadModeCollectAll)
	if plan == nil {
		return res, fmt.Errorf("replay: rebuild: %w", errors.Join(errs...))
	}
	fresh, err := render.Offline(plan, stored.Duration)
	if err != nil {
		return res, fmt.Errorf("replay: re-render: %w", err)
	}
	res.ActualEvents = len(fresh.Events)
	res.Actual = fresh.StreamHash

	res.Divergence, err = firstDivergence(events, fresh.Events)
	if err != nil {
		return res, fmt.Errorf("replay: %w", err)
	}
	return res, nil
}

// firstDivergence compares two streams at hash precision (integer
// microseconds) and returns the first differing index, or -1.
func firstDivergence(a, b []ir.Event) (int, error) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ca, err := ir.MarshalCanonical(a[i].CanonicalMap())
		if err != nil {
			return 0, err
		}
		cb, err := ir.MarshalCanonical(b[i].CanonicalMap())
		if err != nil {
			return 0, err
		}
		if !bytes.Equal(ca, cb) {
			return i, nil
		}
	}
	if len(a) != len(b) {
		return n, nil
	}
	return -1, nil
}
