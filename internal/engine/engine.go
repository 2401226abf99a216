package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/stochos/internal/dispatch"
	"github.com/roach88/stochos/internal/gen"
	"github.com/roach88/stochos/internal/markov"
	"github.com/roach88/stochos/internal/metrics"
	"github.com/roach88/stochos/internal/scene"
	"github.com/roach88/stochos/internal/sched"
)

// DefaultTick is the engine loop period.
const DefaultTick = time.Millisecond

// Engine drives one scene's scheduler in real time.
//
// Thread-safety model:
//   - Add, Remove, ReplaceScene, Stop, Stats: safe from any goroutine
//   - Run: must be called from exactly one goroutine, once
//
// The scheduler is touched only by the Run goroutine.
type Engine struct {
	plan     *scene.Plan
	sched    *sched.Scheduler
	hashes   map[string]string // live generator name -> config hash
	queue    *dispatch.Queue
	commands *commandQueue

	clock     dispatch.TimeSource
	tick      time.Duration
	metrics   *metrics.Metrics
	sink      sched.Sink
	ids       IDGenerator
	session   string
	schedOpts []sched.Option

	// seqBase carries emission numbering across scheduler restarts.
	seqBase     int64
	overflowing bool
	stats       atomic.Pointer[Stats]
}

// Option configures an Engine.
type Option func(*Engine)

// WithTick sets the loop period. Default: 1ms (DefaultTick).
func WithTick(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// WithTimeSource sets the clock. Share it with the dispatcher.
func WithTimeSource(ts dispatch.TimeSource) Option {
	return func(e *Engine) { e.clock = ts }
}

// WithMetrics records tick, merge and eviction metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSink receives generator eviction warnings. Default: sched.SlogSink.
func WithSink(s sched.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithIDGenerator sets the session id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithSchedulerOptions appends scheduler options after the plan's own.
func WithSchedulerOptions(opts ...sched.Option) Option {
	return func(e *Engine) { e.schedOpts = append(e.schedOpts, opts...) }
}

// New creates an engine for plan, pushing into q.
func New(plan *scene.Plan, q *dispatch.Queue, opts ...Option) (*Engine, error) {
	e := &Engine{
		queue:    q,
		commands: newCommandQueue(),
		tick:     DefaultTick,
		sink:     sched.SlogSink{},
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tick <= 0 {
		e.tick = DefaultTick
	}
	if e.clock == nil {
		e.clock = dispatch.NewWallClock()
	}
	e.session = e.ids.Generate()

	if err := e.load(plan, 0); err != nil {
		return nil, err
	}
	e.publish()
	return e, nil
}

// Session returns the session id.
func (e *Engine) Session() string { return e.session }

// Run starts the loop. It blocks until Stop is applied (returns nil) or
// ctx is cancelled (returns ctx.Err()). The dispatch queue is closed on
// return so the dispatcher drains and exits.
//
// ERROR HANDLING: scheduler overflow and generator failures are logged and
// counted; the loop keeps running. Nothing in the loop waits on output.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting",
		"session", e.session,
		"scene", e.plan.Name,
		"generators", len(e.plan.Generators),
		"tick", e.tick,
	)
	defer e.queue.Close()
	defer e.closeCommands()

	for {
		for {
			cmd, ok := e.commands.TryDequeue()
			if !ok {
				break
			}
			if e.apply(cmd) {
				slog.Info("engine stopped", "session", e.session)
				return nil
			}
		}

		e.step()

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled", "session", e.session)
			e.sched.Stop()
			e.publish()
			return ctx.Err()
		case <-e.commands.Wait():
		case <-e.clock.After(e.tick):
		}
	}
}

// step advances the scheduler to now and forwards what fits in the
// dispatch queue. Events that do not fit stay in the scheduler's buffer
// for the next tick.
func (e *Engine) step() {
	start := time.Now()
	now := e.clock.Now()

	if err := e.sched.Advance(now); err != nil {
		if sched.IsOverflow(err) {
			e.metrics.RecordOverflow()
			if !e.overflowing {
				slog.Warn("lookahead buffer overflow, pausing generators", "session", e.session, "error", err)
			}
			e.overflowing = true
		} else {
			slog.Error("scheduler advance failed", "session", e.session, "error", err)
		}
	}

	for e.queue.Len() < e.queue.Cap() {
		ev, ok := e.sched.Pop()
		if !ok {
			break
		}
		ev.Seq += e.seqBase
		if !e.queue.TryPush(ev) {
			slog.Warn("dispatch queue refused event", "generator", ev.Generator, "seq", ev.Seq)
			break
		}
		e.metrics.RecordMerged(ev.Generator)
	}

	st := e.sched.Stats()
	if e.overflowing && !st.Paused {
		slog.Info("lookahead buffer drained, resuming", "session", e.session)
		e.overflowing = false
	}
	e.metrics.RecordTick(time.Since(start).Seconds(), st.Live, st.Buffered)
	e.metrics.RecordQueueDepth(e.queue.Len())
	e.publish()
}

// apply runs one command on the loop goroutine. Returns true for stop.
func (e *Engine) apply(cmd command) bool {
	var err error
	switch cmd.typ {
	case commandAdd:
		err = e.add(cmd.built)
	case commandRemove:
		if !e.sched.RemoveByName(cmd.name) {
			err = &CommandError{Command: "remove", Generator: cmd.name, Err: ErrUnknownGenerator}
		} else {
			delete(e.hashes, cmd.name)
		}
	case commandReplace:
		err = e.replace(cmd.plan)
	case commandStop:
		e.stop()
	default:
		err = fmt.Errorf("unknown command %d", cmd.typ)
	}

	if err != nil {
		slog.Error("command failed", "command", cmd.typ.String(), "error", err)
	} else {
		e.metrics.RecordCommand(cmd.typ.String())
	}
	e.publish()
	cmd.result <- err
	return cmd.typ == commandStop
}

func (e *Engine) add(b scene.Built) error {
	if _, err := e.sched.Add(b.Generator, sched.WithTimeMap(b.TimeMap)); err != nil {
		return &CommandError{Command: "add", Generator: b.Name, Err: err}
	}
	e.hashes[b.Name] = b.Hash
	slog.Info("generator added", "session", e.session, "generator", b.Name)
	return nil
}

// replace swaps in a new plan. Generators whose name and config hash are
// unchanged keep running; the rest are removed or added. A change to the
// scheduler settings rebuilds the scheduler from the current time.
func (e *Engine) replace(plan *scene.Plan) error {
	if plan == nil {
		return &CommandError{Command: "replace", Err: fmt.Errorf("nil plan")}
	}
	if settingsOf(plan) != settingsOf(e.plan) {
		slog.Info("scheduler settings changed, restarting scene", "session", e.session, "scene", plan.Name)
		e.seqBase += int64(e.sched.Stats().Emitted)
		e.sched.Stop()
		return e.load(plan, e.clock.Now())
	}

	for name := range e.hashes {
		if _, ok := e.sched.Lookup(name); !ok {
			delete(e.hashes, name) // finished or evicted
		}
	}

	next := make(map[string]string, len(plan.Generators))
	for _, b := range plan.Generators {
		next[b.Name] = b.Hash
	}
	removed, added := 0, 0
	for name, hash := range e.hashes {
		if h, ok := next[name]; ok && h == hash {
			continue
		}
		e.sched.RemoveByName(name)
		delete(e.hashes, name)
		removed++
	}
	for _, b := range plan.Generators {
		if _, live := e.hashes[b.Name]; live {
			continue
		}
		if err := e.add(b); err != nil {
			return err
		}
		added++
	}

	e.plan = plan
	slog.Info("scene replaced",
		"session", e.session,
		"scene", plan.Name,
		"added", added,
		"removed", removed,
	)
	return nil
}

// load builds a fresh scheduler for plan starting at output time start.
func (e *Engine) load(plan *scene.Plan, start float64) error {
	opts := plan.SchedulerOptions(sched.WithSink(e.evictionSink()), sched.WithStart(start))
	s := sched.New(append(opts, e.schedOpts...)...)
	if err := plan.Register(s); err != nil {
		return err
	}
	e.plan = plan
	e.sched = s
	e.hashes = make(map[string]string, len(plan.Generators))
	for _, b := range plan.Generators {
		e.hashes[b.Name] = b.Hash
	}
	return nil
}

// stop discards everything in flight: the scheduler's lookahead buffer,
// every generator handle and the dispatch queue.
func (e *Engine) stop() {
	buffered := e.sched.Stats().Buffered
	e.sched.Stop()
	dropped := e.queue.Discard()
	clear(e.hashes)
	slog.Info("scene stopped",
		"session", e.session,
		"discarded_buffer", buffered,
		"discarded_queue", dropped,
	)
}

func (e *Engine) evictionSink() sched.Sink {
	return sched.Tee(e.sink, sched.FuncSink(func(w sched.Warning) {
		e.metrics.RecordEviction(w.Generator, evictionReason(w.Err))
	}))
}

func evictionReason(err error) string {
	switch {
	case gen.IsSieveExhaustion(err):
		return "sieve_exhaustion"
	case markov.IsInvalidState(err):
		return "invalid_state"
	default:
		return "other"
	}
}

type settings struct {
	horizon   float64
	bufferCap int
	tempo     string
}

func settingsOf(p *scene.Plan) settings {
	s := settings{horizon: p.Horizon, bufferCap: p.BufferCap}
	if p.Scene != nil && p.Scene.Tempo != nil {
		raw, _ := json.Marshal(p.Scene.Tempo)
		s.tempo = string(raw)
	}
	return s
}

func (e *Engine) closeCommands() {
	for _, cmd := range e.commands.Close() {
		cmd.result <- ErrStopped
	}
}

// Add registers a generator mid-stream.
func (e *Engine) Add(ctx context.Context, b scene.Built) error {
	return e.submit(ctx, command{typ: commandAdd, built: b})
}

// Remove unregisters a generator by name, dropping its pending events.
func (e *Engine) Remove(ctx context.Context, name string) error {
	return e.submit(ctx, command{typ: commandRemove, name: name})
}

// ReplaceScene swaps in a new plan, keeping unchanged generators running.
func (e *Engine) ReplaceScene(ctx context.Context, plan *scene.Plan) error {
	return e.submit(ctx, command{typ: commandReplace, plan: plan})
}

// Stop discards the lookahead buffer and dispatch queue, releases every
// generator and makes Run return. It takes effect within one tick.
func (e *Engine) Stop(ctx context.Context) error {
	return e.submit(ctx, command{typ: commandStop})
}

func (e *Engine) submit(ctx context.Context, cmd command) error {
	cmd.result = make(chan error, 1)
	if !e.commands.Enqueue(cmd) {
		return ErrStopped
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-cmd.result:
		return err
	}
}

// Stats is a snapshot of engine state.
type Stats struct {
	Session    string
	Scene      string
	Generators []string
	Live       int
	Buffered   int
	Emitted    int
	Evicted    int
	Paused     bool
	LastPoll   float64
	Queued     int
}

// Stats returns the snapshot taken at the end of the last tick or
// command. Safe from any goroutine.
func (e *Engine) Stats() Stats {
	if st := e.stats.Load(); st != nil {
		return *st
	}
	return Stats{Session: e.session}
}

func (e *Engine) publish() {
	st := e.sched.Stats()
	e.stats.Store(&Stats{
		Session:    e.session,
		Scene:      e.plan.Name,
		Generators: e.sched.Names(),
		Live:       st.Live,
		Buffered:   st.Buffered,
		Emitted:    st.Emitted,
		Evicted:    st.Evicted,
		Paused:     st.Paused,
		LastPoll:   st.LastPoll,
		Queued:     e.queue.Len(),
	})
}
