// Package render produces a scene's event stream without a clock.
//
// Offline drives a fresh scheduler with synthetic polls instead of wall
// time. The stream depends only on the plan: the same scene and seed always
// render the same events and the same stream hash.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/scene"
	"github.com/roach88/stochos/internal/sched"
)

// DefaultMaxEvents bounds a single render.
const DefaultMaxEvents = 1 << 20

// ErrTooManyEvents is returned when a render exceeds its event bound.
var ErrTooManyEvents = errors.New("render exceeded event limit")

// Result is one offline render.
type Result struct {
	Scene     string
	SceneHash string
	Duration  float64
	Events    []ir.Event
	Warnings  []sched.Warning

	// StreamHash is ir.StreamHash over Events.
	StreamHash string
}

// Evicted returns the names of generators evicted during the render.
func (r *Result) Evicted() []string {
	out := make([]string, len(r.Warnings))
	for i, w := range r.Warnings {
		out[i] = w.Generator
	}
	return out
}

type options struct {
	step      float64
	maxEvents int
	sink      sched.Sink
}

// Option configures Offline.
type Option func(*options)

// WithStep sets the synthetic poll interval. Default: the plan's horizon.
// The interval changes how often the scheduler is polled, never the events.
func WithStep(s float64) Option {
	return func(o *options) { o.step = s }
}

// WithMaxEvents bounds the number of events. Default: DefaultMaxEvents.
func WithMaxEvents(n int) Option {
	return func(o *options) { o.maxEvents = n }
}

// WithSink also forwards eviction warnings to s.
func WithSink(s sched.Sink) Option {
	return func(o *options) { o.sink = s }
}

// Offline renders every event with output time in [0, duration).
//
// The plan's generators are consumed; build a new plan for each render.
func Offline(plan *scene.Plan, duration float64, opts ...Option) (*Result, error) {
	if plan == nil {
		return nil, errors.New("render: nil plan")
	}
	if !(duration > 0) || math.IsInf(duration, 0) {
		return nil, fmt.Errorf("render: duration must be positive and finite, got %v", duration)
	}

	o := options{maxEvents: DefaultMaxEvents}
	for _, opt := range opts {
		opt(&o)
	}
	if !(o.step > 0) {
		o.step = plan.Horizon
	}
	if !(o.step > 0) {
		o.step = sched.DefaultHorizon
	}

	rec := &sched.Recorder{}
	s := sched.New(plan.SchedulerOptions(sched.WithSink(sched.Tee(rec, o.sink)))...)
	if err := plan.Register(s); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	defer s.Stop()

	res := &Result{
		Scene:     plan.Name,
		SceneHash: plan.Hash,
		Duration:  duration,
		Events:    []ir.Event{},
	}

	overflows := 0
	for now := 0.0; ; now += o.step {
		for {
			err := s.Advance(now)
			done := collect(s, res, duration)
			if len(res.Events) > o.maxEvents {
				return nil, fmt.Errorf("%w (%d)", ErrTooManyEvents, o.maxEvents)
			}
			if done {
				return finish(res, rec, overflows)
			}
			if !sched.IsOverflow(err) {
				break
			}
			// Drained; the same poll resumes the merge.
			overflows++
		}
		// Past the end every earlier event has been merged.
		if now >= duration || s.Stats().Live == 0 {
			return finish(res, rec, overflows)
		}
	}
}

// collect drains the buffer, keeping events before the end of the render.
// It reports true once an event at or past duration was seen.
func collect(s *sched.Scheduler, res *Result, duration float64) bool {
	for {
		ev, ok := s.Pop()
		if !ok {
			return false
		}
		if ev.Timestamp >= duration {
			return true
		}
		res.Events = append(res.Events, ev)
	}
}

func finish(res *Result, rec *sched.Recorder, overflows int) (*Result, error) {
	res.Warnings = rec.Warnings
	hash, err := ir.StreamHash(res.Events)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	res.StreamHash = hash
	slog.Debug("render finished",
		"scene", res.Scene,
		"duration", res.Duration,
		"events", len(res.Events),
		"evicted", len(res.Warnings),
		"overflows", overflows,
	)
	return res, nil
}

// Scene builds a fresh plan from s and renders it. Build errors abort the
// render in fail-fast mode and are returned as a joined error.
func Scene(s *scene.Scene, duration float64, opts ...Option) (*Result, error) {
	plan, errs := scene.Build(s, scene.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return Offline(plan, duration, opts...)
}

// File loads a scene file and renders it.
func File(path string, duration float64, opts ...Option) (*Result, error) {
	plan, errs := scene.LoadPlan(path, scene.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return Offline(plan, duration, opts...)
}
