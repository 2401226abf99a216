package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/metrics"
)

// Dispatcher drains a Queue into a Transport, releasing each event at its
// timestamp.
//
// Run must be called from exactly one goroutine. A failed Send is logged
// and counted, then the dispatcher moves on to the next event.
type Dispatcher struct {
	queue     *Queue
	transport Transport
	clock     TimeSource
	metrics   *metrics.Metrics

	sent      atomic.Int64
	failed    atomic.Int64
	discarded atomic.Int64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeSource sets the clock events are paced against. Defaults to a
// WallClock started by NewDispatcher.
func WithTimeSource(ts TimeSource) Option {
	return func(d *Dispatcher) { d.clock = ts }
}

// WithMetrics records sends, failures and lateness.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a dispatcher for q and t.
func NewDispatcher(q *Queue, t Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{queue: q, transport: t}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = NewWallClock()
	}
	return d
}

// Run delivers events until ctx is cancelled or the queue is closed and
// empty. A closed queue returns nil; cancellation returns ctx.Err().
// Transports implementing Flusher are flushed on the way out.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("dispatcher starting", "queue_cap", d.queue.Cap())
	defer d.flush()

	for {
		ev, epoch, ok := d.queue.pop()
		if ok {
			if err := d.waitUntil(ctx, ev.Timestamp); err != nil {
				slog.Info("dispatcher stopping: context cancelled")
				return err
			}
			if d.queue.currentEpoch() != epoch {
				d.discarded.Add(1)
				continue
			}
			d.send(ctx, ev)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("dispatcher stopping: context cancelled")
			return ctx.Err()
		case <-d.queue.Wait():
			// The signal channel closes with the queue, so this fires
			// immediately once closed.
			if d.queue.Closed() && d.queue.Len() == 0 {
				slog.Info("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

func (d *Dispatcher) waitUntil(ctx context.Context, at float64) error {
	wait := at - d.clock.Now()
	if wait <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clock.After(Seconds(wait)):
		return nil
	}
}

func (d *Dispatcher) send(ctx context.Context, ev ir.Event) {
	lateness := d.clock.Now() - ev.Timestamp
	err := d.transport.Send(ctx, ev)
	d.metrics.RecordSend(lateness, err)
	d.metrics.RecordQueueDepth(d.queue.Len())
	if err != nil {
		d.failed.Add(1)
		slog.Error("transport send failed",
			"generator", ev.Generator,
			"seq", ev.Seq,
			"t", ev.Timestamp,
			"error", err,
		)
		return
	}
	d.sent.Add(1)
}

func (d *Dispatcher) flush() {
	f, ok := d.transport.(Flusher)
	if !ok {
		return
	}
	if err := f.Flush(context.Background()); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("transport flush failed", "error", err)
	}
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Sent      int64
	Failed    int64
	Discarded int64
	Queued    int
	Dropped   int
}

// Stats returns the current counters. Safe from any goroutine.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:      d.sent.Load(),
		Failed:    d.failed.Load(),
		Discarded: d.discarded.Load(),
		Queued:    d.queue.Len(),
		Dropped:   d.queue.Dropped(),
	}
}
