package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueue_FIFO(t *testing.T) {
	q := newCommandQueue()

	for _, name := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(command{typ: commandRemove, name: name}))
	}

	for _, want := range []string{"A", "B", "C"} {
		c, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, c.name)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestCommandQueue_WaitSignals(t *testing.T) {
	q := newCommandQueue()

	select {
	case <-q.Wait():
		t.Fatal("signal before any enqueue")
	default:
	}

	q.Enqueue(command{typ: commandStop})
	q.Enqueue(command{typ: commandStop})

	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("enqueue did not signal")
	}
	// Two enqueues coalesce into one signal.
	assert.Equal(t, 2, q.Len())
}

func TestCommandQueue_CloseReturnsLeftovers(t *testing.T) {
	q := newCommandQueue()
	q.Enqueue(command{typ: commandRemove, name: "A"})
	q.Enqueue(command{typ: commandStop})

	rest := q.Close()
	require.Len(t, rest, 2)
	assert.Equal(t, commandRemove, rest[0].typ)
	assert.Equal(t, commandStop, rest[1].typ)

	assert.False(t, q.Enqueue(command{typ: commandStop}), "enqueue after close should return false")
	assert.Nil(t, q.Close(), "second close is a no-op")

	// The enqueues left one signal buffered; the next receive sees the close.
	deadline := time.After(100 * time.Millisecond)
	for {
		select {
		case _, ok := <-q.Wait():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("close did not release waiters")
		}
	}
}

func TestCommandType_String(t *testing.T) {
	assert.Equal(t, "add", commandAdd.String())
	assert.Equal(t, "remove", commandRemove.String())
	assert.Equal(t, "replace", commandReplace.String())
	assert.Equal(t, "stop", commandStop.String())
	assert.Equal(t, "unknown", commandType(0).String())
}

func TestCommandQueue_ThreadSafe(t *testing.T) {
	q := newCommandQueue()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(command{typ: commandRemove})
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < producers*perProducer {
			if _, ok := q.TryDequeue(); ok {
				received++
				continue
			}
			<-q.Wait()
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("consumer timeout: received %d commands", received)
	}
	assert.Equal(t, producers*perProducer, received)
}
