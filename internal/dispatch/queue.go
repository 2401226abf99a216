package dispatch

import (
	"sync"

	"github.com/roach88/stochos/internal/ir"
)

// DefaultQueueCap is the dispatch queue capacity when none is given.
const DefaultQueueCap = 256

// Queue is a bounded, thread-safe FIFO of events.
//
// The engine goroutine pushes and a single dispatcher goroutine pops. The
// queue uses a buffered signal channel so the consumer can wait with
// select alongside ctx.Done().
type Queue struct {
	mu      sync.Mutex
	events  []ir.Event
	head    int
	cap     int
	closed  bool
	dropped int
	epoch   uint64        // bumped by Discard
	signal  chan struct{} // buffered, size 1
}

// NewQueue creates a queue holding at most capacity events. A non-positive
// capacity uses DefaultQueueCap.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCap
	}
	return &Queue{
		events: make([]ir.Event, 0, capacity),
		cap:    capacity,
		signal: make(chan struct{}, 1),
	}
}

// TryPush appends an event without blocking. It returns false when the
// queue is full or closed; a refused event is counted as dropped.
func (q *Queue) TryPush(ev ir.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.events)-q.head >= q.cap {
		q.dropped++
		return false
	}
	if len(q.events) == cap(q.events) && q.head > 0 {
		n := copy(q.events, q.events[q.head:])
		clear(q.events[n:])
		q.events = q.events[:n]
		q.head = 0
	}
	q.events = append(q.events, ev)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryPop removes the front event without blocking.
func (q *Queue) TryPop() (ir.Event, bool) {
	ev, _, ok := q.pop()
	return ev, ok
}

// pop also reports the discard epoch the event was popped in.
func (q *Queue) pop() (ir.Event, uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.events) {
		return ir.Event{}, q.epoch, false
	}
	ev := q.events[q.head]
	q.events[q.head] = ir.Event{}
	q.head++
	if q.head == len(q.events) {
		q.events = q.events[:0]
		q.head = 0
	}
	return ev, q.epoch, true
}

// Wait returns a channel that signals when events may be available. The
// channel is closed by Close.
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // TryPop
//	}
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Discard empties the queue and returns the number of events removed. An
// event the dispatcher popped before the discard and is still holding is
// dropped too.
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.epoch++
	n := len(q.events) - q.head
	clear(q.events)
	q.events = q.events[:0]
	q.head = 0
	return n
}

func (q *Queue) currentEpoch() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.epoch
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events) - q.head
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int { return q.cap }

// Dropped returns the number of events TryPush refused.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting events and wakes the consumer. Events already
// queued can still be popped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
