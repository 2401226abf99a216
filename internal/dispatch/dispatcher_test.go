package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/metrics"
	"github.com/roach88/stochos/internal/testutil"
)

func runDispatcher(t *testing.T, d *Dispatcher) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestDispatcher_PacesOnTimeSource(t *testing.T) {
	clock := testutil.NewManualClock()
	q := NewQueue(8)
	rec := &Recorder{}
	d := NewDispatcher(q, rec, WithTimeSource(clock), WithMetrics(metrics.New(prometheus.NewRegistry())))

	q.TryPush(note(0.1, 60))
	q.TryPush(note(0.2, 62))
	_, done := runDispatcher(t, d)

	require.True(t, clock.BlockUntil(1, time.Second))
	assert.Equal(t, 0, rec.Len(), "nothing sent before its time")

	clock.Set(0.1)
	require.Eventually(t, func() bool { return rec.Len() == 1 }, time.Second, time.Millisecond)

	require.True(t, clock.BlockUntil(1, time.Second))
	clock.Set(0.25)
	require.Eventually(t, func() bool { return rec.Len() == 2 }, time.Second, time.Millisecond)

	q.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop on close")
	}

	events := rec.Events()
	assert.Equal(t, 60, events[0].Value)
	assert.Equal(t, 62, events[1].Value)
	assert.Equal(t, int64(2), d.Stats().Sent)
}

func TestDispatcher_LateEventsGoImmediately(t *testing.T) {
	clock := testutil.NewManualClock()
	clock.Set(5)
	q := NewQueue(8)
	rec := &Recorder{}
	d := NewDispatcher(q, rec, WithTimeSource(clock))

	q.TryPush(note(1, 60))
	q.TryPush(note(2, 61))
	q.Close()

	_, done := runDispatcher(t, d)
	require.NoError(t, <-done)
	assert.Equal(t, 2, rec.Len())
}

func TestDispatcher_TransportErrorsAreLoggedAndSkipped(t *testing.T) {
	q := NewQueue(8)
	calls := 0
	tr := TransportFunc(func(_ context.Context, ev ir.Event) error {
		calls++
		if ev.Value == 61 {
			return errors.New("port unplugged")
		}
		return nil
	})
	d := NewDispatcher(q, tr, WithTimeSource(testutil.NewManualClock()))

	for i := 0; i < 3; i++ {
		q.TryPush(note(0, 60+i))
	}
	q.Close()

	_, done := runDispatcher(t, d)
	require.NoError(t, <-done)
	assert.Equal(t, 3, calls)
	st := d.Stats()
	assert.Equal(t, int64(2), st.Sent)
	assert.Equal(t, int64(1), st.Failed)
}

func TestDispatcher_DiscardDropsHeldEvent(t *testing.T) {
	clock := testutil.NewManualClock()
	q := NewQueue(8)
	rec := &Recorder{}
	d := NewDispatcher(q, rec, WithTimeSource(clock))

	q.TryPush(note(1, 60))
	q.TryPush(note(1.5, 61))
	_, done := runDispatcher(t, d)

	require.True(t, clock.BlockUntil(1, time.Second))
	assert.Equal(t, 1, q.Discard())
	clock.Set(2)

	require.Eventually(t, func() bool { return d.Stats().Discarded == 1 }, time.Second, time.Millisecond)
	q.Close()
	require.NoError(t, <-done)
	assert.Equal(t, 0, rec.Len())
}

func TestDispatcher_CancelStopsWaiting(t *testing.T) {
	clock := testutil.NewManualClock()
	q := NewQueue(8)
	q.TryPush(note(10, 60))
	d := NewDispatcher(q, &Recorder{}, WithTimeSource(clock))

	cancel, done := runDispatcher(t, d)
	require.True(t, clock.BlockUntil(1, time.Second))
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDispatcher_FlushesOnExit(t *testing.T) {
	var buf bytesBuffer
	mt := NewMIDITransport(&buf)
	q := NewQueue(8)
	q.TryPush(note(0, 60))
	q.Close()

	d := NewDispatcher(q, mt, WithTimeSource(testutil.NewManualClock()))
	_, done := runDispatcher(t, d)
	require.NoError(t, <-done)

	assert.Equal(t, []byte{0x90, 60, 100, 0x80, 60, 0}, buf.Bytes())
	assert.Equal(t, 0, mt.Pending())
}
