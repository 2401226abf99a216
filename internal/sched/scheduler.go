// Package sched merges independently clocked generators into one
// time-ordered event stream.
//
// The Scheduler is a k-way merge over the next pending event of every live
// generator, ordered by output timestamp and then by registration order.
// It is driven by consumer polls: Advance(now) pulls every event whose
// output time is within the lookahead horizon of the latest poll into a
// bounded buffer, and Pop hands them out. Generators that fail are evicted
// and reported to the Sink; the merge carries on with the rest.
//
// A Scheduler is single-threaded. Separate scenes use separate schedulers.
package sched

import (
	"container/heap"
	"errors"
	"log/slog"
	"math"

	"github.com/roach88/stochos/internal/gen"
	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/tempo"
)

// Defaults for scheduler options.
const (
	DefaultHorizon   = 0.1
	DefaultBufferCap = 1024
)

// Handle identifies a registered generator. Handles increase with
// registration order.
type Handle int64

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithHorizon sets the lookahead horizon in output seconds.
func WithHorizon(h float64) Option {
	return func(s *Scheduler) { s.horizon = h }
}

// WithBufferCap bounds the lookahead buffer.
func WithBufferCap(n int) Option {
	return func(s *Scheduler) { s.bufCap = n }
}

// WithSink sets the warning sink. Defaults to SlogSink.
func WithSink(sink Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithTempo sets the global time map applied after each generator's own.
func WithTempo(m tempo.Map) Option {
	return func(s *Scheduler) { s.global = m }
}

// WithStart places the timeline at output time t, so generators added
// before the first poll start at t rather than at zero.
func WithStart(t float64) Option {
	return func(s *Scheduler) {
		if t > 0 {
			s.lastPoll, s.lastEmitted = t, t
		}
	}
}

// AddOption configures a single registration.
type AddOption func(*entry)

// WithTimeMap sets the generator's local-to-output time map.
func WithTimeMap(m tempo.Map) AddOption {
	return func(e *entry) { e.tmap = m }
}

type entry struct {
	handle Handle
	gen    gen.Generator
	tmap   tempo.Map
	offset float64

	pending ir.Event
	index   int // position in the merge heap, -1 when not queued
}

type buffered struct {
	handle Handle
	ev     ir.Event
}

// Scheduler merges generator streams. Create one with New.
type Scheduler struct {
	horizon float64
	bufCap  int
	sink    Sink
	global  tempo.Map

	handles *Clock
	seq     *Clock

	entries map[Handle]*entry
	names   map[string]Handle
	merge   mergeHeap

	// buffer[head:] holds merged events not yet popped.
	buffer []buffered
	head   int

	lastPoll    float64
	lastEmitted float64
	paused      bool
	stopped     bool

	evicted int
	emitted int
}

// New creates a scheduler. A non-positive horizon or buffer cap falls back
// to the default.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		horizon: DefaultHorizon,
		bufCap:  DefaultBufferCap,
		sink:    SlogSink{},
		global:  tempo.Identity{},
		handles: NewClock(),
		seq:     NewClock(),
		entries: make(map[Handle]*entry),
		names:   make(map[string]Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !(s.horizon > 0) || math.IsInf(s.horizon, 0) {
		s.horizon = DefaultHorizon
	}
	if s.bufCap <= 0 {
		s.bufCap = DefaultBufferCap
	}
	if s.sink == nil {
		s.sink = SlogSink{}
	}
	if s.global == nil {
		s.global = tempo.Identity{}
	}
	return s
}

// Add registers a generator and primes its first event. The generator's
// local time zero is placed at max(last merged event, latest poll), so a
// generator added mid-stream can never emit into the past.
//
// A generator that fails on its first event is evicted at once and
// reported to the sink; Add still returns its handle and a nil error.
func (s *Scheduler) Add(g gen.Generator, opts ...AddOption) (Handle, error) {
	if s.stopped {
		return 0, ErrStopped
	}
	if _, dup := s.names[g.Name()]; dup {
		return 0, &DuplicateNameError{Name: g.Name()}
	}
	e := &entry{
		handle: Handle(s.handles.Next()),
		gen:    g,
		tmap:   tempo.Identity{},
		offset: math.Max(s.lastEmitted, s.lastPoll),
		index:  -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	s.entries[e.handle] = e
	s.names[g.Name()] = e.handle
	slog.Debug("generator registered", "generator", g.Name(), "handle", e.handle, "offset", e.offset)

	if s.prime(e) {
		heap.Push(&s.merge, e)
	}
	return e.handle, nil
}

// Remove unregisters a generator and drops its pending events, including
// those already in the lookahead buffer. Reports whether it was live.
func (s *Scheduler) Remove(h Handle) bool {
	e, ok := s.entries[h]
	if !ok {
		return false
	}
	s.drop(e)

	kept := s.buffer[:0]
	for _, b := range s.buffer[s.head:] {
		if b.handle != h {
			kept = append(kept, b)
		}
	}
	clear(s.buffer[len(kept):])
	s.buffer = kept
	s.head = 0
	slog.Debug("generator removed", "generator", e.gen.Name(), "handle", h)
	return true
}

// RemoveByName unregisters a generator by name.
func (s *Scheduler) RemoveByName(name string) bool {
	h, ok := s.names[name]
	if !ok {
		return false
	}
	return s.Remove(h)
}

// Lookup returns the handle of a live generator.
func (s *Scheduler) Lookup(name string) (Handle, bool) {
	h, ok := s.names[name]
	return h, ok
}

// Advance records a consumer poll at output time now and merges every
// event due within the horizon into the buffer. Polls never move
// backwards; an earlier now is treated as the latest poll.
//
// When the buffer fills while events are still due, Advance returns
// SchedulerOverflowError and pulling pauses until the buffer is drained.
func (s *Scheduler) Advance(now float64) error {
	if s.stopped {
		return nil
	}
	if now > s.lastPoll {
		s.lastPoll = now
	}
	if s.paused {
		if s.buffered() > 0 {
			return nil
		}
		s.paused = false
		slog.Debug("scheduler resumed", "poll", s.lastPoll)
	}

	s.compact()
	limit := s.lastPoll + s.horizon
	for s.merge.Len() > 0 {
		e := s.merge[0]
		if e.pending.Timestamp > limit {
			break
		}
		if s.buffered() >= s.bufCap {
			s.paused = true
			return &SchedulerOverflowError{Cap: s.bufCap, Poll: s.lastPoll}
		}
		heap.Pop(&s.merge)

		ev := e.pending
		s.lastEmitted = ev.Timestamp
		s.buffer = append(s.buffer, buffered{handle: e.handle, ev: ev})

		if s.prime(e) {
			heap.Push(&s.merge, e)
		}
	}
	return nil
}

// Peek returns the next buffered event without consuming it.
func (s *Scheduler) Peek() (ir.Event, bool) {
	if s.buffered() == 0 {
		return ir.Event{}, false
	}
	return s.buffer[s.head].ev, true
}

// Pop consumes the next buffered event and stamps its emission Seq.
func (s *Scheduler) Pop() (ir.Event, bool) {
	if s.buffered() == 0 {
		return ir.Event{}, false
	}
	ev := s.buffer[s.head].ev
	s.buffer[s.head] = buffered{}
	s.head++
	if s.head == len(s.buffer) {
		s.buffer = s.buffer[:0]
		s.head = 0
	}
	ev.Seq = s.seq.Next()
	s.emitted++
	return ev, true
}

// Drain pops every buffered event.
func (s *Scheduler) Drain() []ir.Event {
	out := make([]ir.Event, 0, s.buffered())
	for {
		ev, ok := s.Pop()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

// Poll is Advance followed by Drain. An overflow error is returned along
// with the drained events.
func (s *Scheduler) Poll(now float64) ([]ir.Event, error) {
	err := s.Advance(now)
	return s.Drain(), err
}

// Stop discards the lookahead buffer and releases every generator handle.
// The scheduler is unusable afterwards.
func (s *Scheduler) Stop() {
	if s.stopped {
		return
	}
	discarded := s.buffered()
	live := len(s.entries)
	s.buffer = nil
	s.head = 0
	s.merge = nil
	s.entries = make(map[Handle]*entry)
	s.names = make(map[string]Handle)
	s.stopped = true
	slog.Debug("scheduler stopped", "discarded", discarded, "released", live)
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Live     int
	Buffered int
	Emitted  int
	Evicted  int
	Paused   bool
	LastPoll float64
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Live:     len(s.entries),
		Buffered: s.buffered(),
		Emitted:  s.emitted,
		Evicted:  s.evicted,
		Paused:   s.paused,
		LastPoll: s.lastPoll,
	}
}

// Names returns the live generator names in registration order.
func (s *Scheduler) Names() []string {
	hs := make([]Handle, 0, len(s.entries))
	for h := range s.entries {
		hs = append(hs, h)
	}
	sortHandles(hs)
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = s.entries[h].gen.Name()
	}
	return out
}

func (s *Scheduler) buffered() int { return len(s.buffer) - s.head }

// compact moves unpopped events to the front once the popped prefix
// dominates, so a consumer that never fully drains cannot grow the slice.
func (s *Scheduler) compact() {
	if s.head == 0 || s.head < len(s.buffer)/2 {
		return
	}
	n := copy(s.buffer, s.buffer[s.head:])
	clear(s.buffer[n:])
	s.buffer = s.buffer[:n]
	s.head = 0
}

// prime pulls the generator's next event and maps it onto the output
// timeline. It returns false when the generator left the scheduler.
func (s *Scheduler) prime(e *entry) bool {
	ev, err := e.gen.Next()
	if err != nil {
		if errors.Is(err, gen.ErrEndOfStream) {
			slog.Debug("generator finished", "generator", e.gen.Name(), "handle", e.handle)
		} else {
			s.evicted++
			s.sink.Warn(Warning{Handle: e.handle, Generator: e.gen.Name(), Poll: s.lastPoll, Err: err})
		}
		s.drop(e)
		return false
	}

	ev.Timestamp = e.offset + s.global.Apply(e.tmap.Apply(ev.Local))
	if ev.Timestamp < s.lastEmitted || math.IsNaN(ev.Timestamp) {
		ev.Timestamp = s.lastEmitted
	}
	ev.Generator = e.gen.Name()
	e.pending = ev
	return true
}

func (s *Scheduler) drop(e *entry) {
	if e.index >= 0 {
		heap.Remove(&s.merge, e.index)
	}
	delete(s.entries, e.handle)
	if s.names[e.gen.Name()] == e.handle {
		delete(s.names, e.gen.Name())
	}
}
