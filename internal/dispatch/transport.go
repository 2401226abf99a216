package dispatch

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/roach88/stochos/internal/ir"
)

// Transport delivers one event to the outside world. Send is called from
// the dispatcher goroutine only, at or after the event's timestamp.
type Transport interface {
	Send(ctx context.Context, ev ir.Event) error
}

// Flusher is implemented by transports that hold state across events.
// The dispatcher calls Flush once when it stops.
type Flusher interface {
	Flush(ctx context.Context) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, ev ir.Event) error

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, ev ir.Event) error { return f(ctx, ev) }

// WriterTransport writes one text line per event.
type WriterTransport struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterTransport creates a text transport writing to w.
func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{w: w}
}

// Send implements Transport.
func (t *WriterTransport) Send(_ context.Context, ev ir.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintln(t.w, ev.String())
	return err
}

// Recorder keeps every sent event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []ir.Event
}

// Send implements Transport.
func (r *Recorder) Send(_ context.Context, ev ir.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []ir.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
