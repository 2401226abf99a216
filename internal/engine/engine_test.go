package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stochos/internal/dispatch"
	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/gen"
	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/markov"
	"github.com/roach88/stochos/internal/metrics"
	"github.com/roach88/stochos/internal/scene"
	"github.com/roach88/stochos/internal/sched"
	"github.com/roach88/stochos/internal/testutil"
)

func sequenceConfig(name string, cues ...gen.Cue) scene.GeneratorConfig {
	return scene.GeneratorConfig{Name: name, Type: scene.TypeSequence, Cues: cues}
}

func streamConfig(name string, rate float64) scene.GeneratorConfig {
	return scene.GeneratorConfig{
		Name:   name,
		Type:   scene.TypeStochastic,
		Timing: &dist.FieldConfig{Config: dist.Config{Kind: dist.KindPoisson, Rate: rate}},
		Value:  &dist.FieldConfig{Config: dist.Config{Kind: dist.KindUniform, Low: 48, High: 72}},
	}
}

func abScene() *scene.Scene {
	return &scene.Scene{
		Name: "ab",
		Seed: 1,
		Generators: []scene.GeneratorConfig{
			sequenceConfig("A", gen.Cue{At: 0.1, Value: 60}, gen.Cue{At: 0.3, Value: 62}, gen.Cue{At: 0.5, Value: 64}),
			sequenceConfig("B", gen.Cue{At: 0.2, Value: 48}, gen.Cue{At: 0.4, Value: 50}),
		},
	}
}

func build(t *testing.T, s *scene.Scene) *scene.Plan {
	t.Helper()
	plan, errs := scene.Build(s, scene.LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, plan)
	return plan
}

type harness struct {
	engine *Engine
	clock  *testutil.ManualClock
	queue  *dispatch.Queue
	sink   *sched.Recorder
	done   chan error
	cancel context.CancelFunc
}

func start(t *testing.T, plan *scene.Plan, queueCap int, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock: testutil.NewManualClock(),
		queue: dispatch.NewQueue(queueCap),
		sink:  &sched.Recorder{},
		done:  make(chan error, 1),
	}
	opts = append([]Option{
		WithTimeSource(h.clock),
		WithIDGenerator(NewFixedGenerator("session-1")),
		WithSink(h.sink),
	}, opts...)

	e, err := New(plan, h.queue, opts...)
	require.NoError(t, err)
	h.engine = e

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("engine did not exit")
		}
	})
	require.True(t, h.clock.BlockUntil(1, time.Second), "engine never waited on its tick")
	return h
}

// tickTo moves the clock to at and waits for the engine to poll there.
// The loop may register its next timer just after Set, so a stalled loop
// is nudged forward by a few microseconds until it catches up.
func (h *harness) tickTo(t *testing.T, at float64) {
	t.Helper()
	h.clock.Set(at)
	require.Eventually(t, func() bool {
		if h.engine.Stats().LastPoll >= at {
			return true
		}
		h.clock.Advance(1e-6)
		return false
	}, 2*time.Second, time.Millisecond)
}

func (h *harness) drain() []ir.Event {
	var out []ir.Event
	for {
		ev, ok := h.queue.TryPop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		h.done <- err
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not exit")
		return nil
	}
}

func TestEngine_ForwardsMergedEventsInOrder(t *testing.T) {
	h := start(t, build(t, abScene()), 16)
	assert.Equal(t, "session-1", h.engine.Session())

	h.tickTo(t, 0.6)
	events := h.drain()
	require.Len(t, events, 5)

	var gens []string
	for i, ev := range events {
		gens = append(gens, ev.Generator)
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, []string{"A", "B", "A", "B", "A"}, gens)
	assert.Equal(t, []int{60, 48, 62, 50, 64}, []int{
		events[0].Value, events[1].Value, events[2].Value, events[3].Value, events[4].Value,
	})
}

func TestEngine_FirstTickOnlyReleasesTheHorizon(t *testing.T) {
	h := start(t, build(t, abScene()), 16)

	// The initial poll at t=0 looks ahead 0.1s.
	require.Eventually(t, func() bool { return h.queue.Len() == 1 }, time.Second, time.Millisecond)
	ev, ok := h.queue.TryPop()
	require.True(t, ok)
	assert.Equal(t, "A", ev.Generator)
	assert.InDelta(t, 0.1, ev.Timestamp, 1e-9)
}

func TestEngine_FullQueueLeavesEventsBuffered(t *testing.T) {
	h := start(t, build(t, abScene()), 2)

	h.tickTo(t, 0.6)
	assert.Equal(t, 2, h.queue.Len())
	st := h.engine.Stats()
	assert.Equal(t, 3, st.Buffered)
	assert.Equal(t, 2, st.Queued)

	first := h.drain()
	h.tickTo(t, 0.61)
	second := h.drain()
	h.tickTo(t, 0.62)
	third := h.drain()

	all := append(append(first, second...), third...)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Timestamp, all[i].Timestamp)
		assert.Equal(t, all[i-1].Seq+1, all[i].Seq)
	}
	assert.Zero(t, h.queue.Dropped())
}

func TestEngine_StopDiscardsEverything(t *testing.T) {
	h := start(t, build(t, abScene()), 2)
	h.tickTo(t, 0.6)
	require.Equal(t, 2, h.queue.Len())

	require.NoError(t, h.engine.Stop(context.Background()))
	require.NoError(t, h.wait(t))

	assert.Zero(t, h.queue.Len())
	assert.True(t, h.queue.Closed())
	st := h.engine.Stats()
	assert.Zero(t, st.Live)
	assert.Zero(t, st.Buffered)

	err := h.engine.Remove(context.Background(), "A")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEngine_ContextCancel(t *testing.T) {
	h := start(t, build(t, abScene()), 16)
	h.cancel()
	assert.ErrorIs(t, h.wait(t), context.Canceled)
	assert.True(t, h.queue.Closed())
}

func TestEngine_AddMidStream(t *testing.T) {
	s := &scene.Scene{Name: "grow", Seed: 3, Generators: []scene.GeneratorConfig{streamConfig("drone", 4)}}
	h := start(t, build(t, s), 256)
	h.tickTo(t, 1.0)
	h.drain()

	b, err := scene.BuildGenerator(s, sequenceConfig("late", gen.Cue{At: 0.05, Value: 72}))
	require.NoError(t, err)
	require.NoError(t, h.engine.Add(context.Background(), b))
	assert.Equal(t, []string{"drone", "late"}, h.engine.Stats().Generators)

	h.tickTo(t, 1.2)
	var late []ir.Event
	for _, ev := range h.drain() {
		if ev.Generator == "late" {
			late = append(late, ev)
		}
	}
	require.Len(t, late, 1)
	assert.GreaterOrEqual(t, late[0].Timestamp, 1.0)
	assert.Equal(t, 72, late[0].Value)

	dup, err := scene.BuildGenerator(s, streamConfig("drone", 4))
	require.NoError(t, err)
	err = h.engine.Add(context.Background(), dup)
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "add", ce.Command)
	assert.Equal(t, "drone", ce.Generator)
}

func TestEngine_Remove(t *testing.T) {
	s := &scene.Scene{Name: "pair", Seed: 3, Generators: []scene.GeneratorConfig{
		streamConfig("left", 10),
		streamConfig("right", 10),
	}}
	h := start(t, build(t, s), 256)
	h.tickTo(t, 0.5)

	require.NoError(t, h.engine.Remove(context.Background(), "left"))
	assert.Equal(t, []string{"right"}, h.engine.Stats().Generators)
	h.drain()

	h.tickTo(t, 1.5)
	events := h.drain()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, "right", ev.Generator)
	}

	err := h.engine.Remove(context.Background(), "left")
	assert.True(t, IsUnknownGenerator(err))
	assert.True(t, errors.Is(err, ErrUnknownGenerator))
}

func TestEngine_ReplaceSceneKeepsUnchangedGenerators(t *testing.T) {
	s1 := &scene.Scene{Name: "v1", Seed: 9, Generators: []scene.GeneratorConfig{
		streamConfig("keep", 8),
		streamConfig("drop", 8),
		streamConfig("tweak", 8),
	}}
	h := start(t, build(t, s1), 512)
	h.tickTo(t, 1.0)
	before := h.drain()

	s2 := &scene.Scene{Name: "v2", Seed: 9, Generators: []scene.GeneratorConfig{
		streamConfig("keep", 8),
		streamConfig("tweak", 2),
		streamConfig("fresh", 8),
	}}
	require.NoError(t, h.engine.ReplaceScene(context.Background(), build(t, s2)))

	st := h.engine.Stats()
	assert.Equal(t, "v2", st.Scene)
	// Unchanged generators keep their registration slot; changed ones re-register.
	assert.Equal(t, []string{"keep", "tweak", "fresh"}, st.Generators)

	h.tickTo(t, 2.0)
	after := h.drain()
	for _, ev := range after {
		assert.NotEqual(t, "drop", ev.Generator)
	}
	for i := 1; i < len(after); i++ {
		assert.LessOrEqual(t, after[i-1].Timestamp, after[i].Timestamp)
	}
	require.NotEmpty(t, before)
	require.NotEmpty(t, after)
	assert.Equal(t, before[len(before)-1].Seq+1, after[0].Seq, "seq continues across a replace")
}

func TestEngine_ReplaceSceneWithNewHorizonRestarts(t *testing.T) {
	s1 := &scene.Scene{Name: "v1", Seed: 9, Generators: []scene.GeneratorConfig{streamConfig("keep", 8)}}
	h := start(t, build(t, s1), 512)
	h.tickTo(t, 1.0)
	h.drain()

	s2 := &scene.Scene{Name: "v2", Seed: 9, Horizon: 0.5, Generators: []scene.GeneratorConfig{streamConfig("keep", 8)}}
	require.NoError(t, h.engine.ReplaceScene(context.Background(), build(t, s2)))

	h.tickTo(t, 1.1)
	events := h.drain()
	require.NotEmpty(t, events)
	assert.Greater(t, events[0].Seq, int64(1), "seq continues across a restart")
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Timestamp, 1.0, "restarted scene begins at the current time")
		assert.LessOrEqual(t, ev.Timestamp, 1.6+1e-9)
	}
}

func TestEngine_ReplaceSceneNil(t *testing.T) {
	h := start(t, build(t, abScene()), 16)
	err := h.engine.ReplaceScene(context.Background(), nil)
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "replace", ce.Command)
}

func TestEngine_EvictionReachesSinkAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	retries := 4
	s := &scene.Scene{Name: "evict", Seed: 1, Generators: []scene.GeneratorConfig{
		streamConfig("ok", 10),
		{
			Name:    "narrow",
			Type:    scene.TypeStochastic,
			Sieve:   "12@0",
			Retries: &retries,
			Timing:  &dist.FieldConfig{Config: dist.Config{Kind: dist.KindPoisson, Rate: 10}},
			Value:   &dist.FieldConfig{Config: dist.Config{Kind: dist.KindConstant, Value: 61}},
		},
	}}
	h := start(t, build(t, s), 256, WithMetrics(m))
	h.tickTo(t, 0.5)

	assert.Equal(t, []string{"narrow"}, h.sink.Names())
	assert.Equal(t, []string{"ok"}, h.engine.Stats().Generators)
	n, err := promtest.GatherAndCount(reg, "stochos_scheduler_evictions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEngine_CommandAfterCancel(t *testing.T) {
	h := start(t, build(t, abScene()), 16)
	h.cancel()
	h.wait(t)
	assert.ErrorIs(t, h.engine.Stop(context.Background()), ErrStopped)
}

func TestEngine_SubmitHonoursContext(t *testing.T) {
	// Never run, so nothing answers the command.
	e, err := New(build(t, abScene()), dispatch.NewQueue(4),
		WithTimeSource(testutil.NewManualClock()),
		WithIDGenerator(NewFixedGenerator("idle")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Remove(ctx, "A"), context.DeadlineExceeded)
	assert.Equal(t, "idle", e.Stats().Session)
}

func TestEngine_EvictionReason(t *testing.T) {
	assert.Equal(t, "sieve_exhaustion", evictionReason(&gen.SieveExhaustionError{Generator: "g"}))
	assert.Equal(t, "invalid_state", evictionReason(&markov.InvalidStateError{State: "x"}))
	assert.Equal(t, "other", evictionReason(errors.New("boom")))
}

func TestNew_RejectsDuplicateNames(t *testing.T) {
	plan := build(t, abScene())
	plan.Generators = append(plan.Generators, plan.Generators[0])
	_, err := New(plan, dispatch.NewQueue(4), WithTimeSource(testutil.NewManualClock()))
	require.Error(t, err)
	var dup *sched.DuplicateNameError
	assert.ErrorAs(t, err, &dup)
}
