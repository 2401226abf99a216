package dispatch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stochos/internal/ir"
)

func note(t float64, value int) ir.Event {
	return ir.Event{Timestamp: t, Kind: ir.KindNote, Value: value, Velocity: 100, Duration: 0.25, Generator: "g"}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		require.True(t, q.TryPush(note(float64(i), 60+i)))
	}
	for i := 0; i < 3; i++ {
		ev, ok := q.TryPop()
		require.True(t, ok)
		assert.Equal(t, 60+i, ev.Value)
	}
	_, ok := q.TryPop()
	assert.False(t, ok)
}

func TestQueue_BoundedNeverBlocks(t *testing.T) {
	q := NewQueue(2)
	assert.True(t, q.TryPush(note(0, 1)))
	assert.True(t, q.TryPush(note(0, 2)))
	assert.False(t, q.TryPush(note(0, 3)), "full queue refuses")
	assert.Equal(t, 1, q.Dropped())
	assert.Equal(t, 2, q.Len())

	_, _ = q.TryPop()
	assert.True(t, q.TryPush(note(0, 4)), "space freed by pop is reusable")

	ev, _ := q.TryPop()
	assert.Equal(t, 2, ev.Value)
	ev, _ = q.TryPop()
	assert.Equal(t, 4, ev.Value)
}

func TestQueue_WrapsWithoutGrowing(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 100; i++ {
		require.True(t, q.TryPush(note(float64(i), i%128)))
		if i%2 == 1 {
			q.TryPop()
			q.TryPop()
		}
	}
	assert.LessOrEqual(t, cap(q.events), 3)
}

func TestQueue_DefaultCap(t *testing.T) {
	assert.Equal(t, DefaultQueueCap, NewQueue(0).Cap())
}

func TestQueue_Discard(t *testing.T) {
	q := NewQueue(8)
	q.TryPush(note(0, 1))
	q.TryPush(note(0, 2))
	_, before, _ := q.pop()

	assert.Equal(t, 1, q.Discard())
	assert.Equal(t, 0, q.Len())
	assert.NotEqual(t, before, q.currentEpoch())
}

func TestQueue_CloseWakesWaiter(t *testing.T) {
	q := NewQueue(1)
	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not wake waiter")
	}
	assert.True(t, q.Closed())
	assert.False(t, q.TryPush(note(0, 1)))
	q.Close()
}

func TestQueue_ThreadSafe(t *testing.T) {
	q := NewQueue(10000)
	const producers = 10
	const per = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				q.TryPush(note(0, 1))
			}
		}()
	}

	popped := 0
	stop := make(chan struct{})
	go func() {
		wg.Wait()
		close(stop)
	}()
	for {
		if _, ok := q.TryPop(); ok {
			popped++
			continue
		}
		select {
		case <-stop:
			for {
				if _, ok := q.TryPop(); !ok {
					assert.Equal(t, producers*per, popped)
					return
				}
				popped++
			}
		default:
		}
	}
}
