package engine

import (
	"sync"

	"github.com/roach88/stochos/internal/scene"
)

// commandType distinguishes control commands.
type commandType int

const (
	commandAdd commandType = iota + 1
	commandRemove
	commandReplace
	commandStop
)

func (t commandType) String() string {
	switch t {
	case commandAdd:
		return "add"
	case commandRemove:
		return "remove"
	case commandReplace:
		return "replace"
	case commandStop:
		return "stop"
	default:
		return "unknown"
	}
}

// command is one control request for the Run loop.
type command struct {
	typ    commandType
	built  scene.Built // add
	name   string      // remove
	plan   *scene.Plan // replace
	result chan error  // buffered, size 1
}

// commandQueue is a thread-safe FIFO of commands.
//
// Control surfaces (CLI signal handlers, the scene watcher) enqueue from
// their own goroutines while the Run loop dequeues. The queue is unbounded;
// commands are rare and each one is answered on its result channel.
//
// A buffered signal channel lets the Run loop wait for commands with
// select alongside its tick timer and ctx.Done().
type commandQueue struct {
	mu       sync.Mutex
	commands []command
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		commands: make([]command, 0, 8),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a command. Returns false if the queue is closed.
func (q *commandQueue) Enqueue(c command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.commands = append(q.commands, c)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front command without blocking.
func (q *commandQueue) TryDequeue() (command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return command{}, false
	}
	c := q.commands[0]
	// Clear the slot so the plan and generator can be collected.
	q.commands[0] = command{}
	if len(q.commands) == 1 {
		q.commands = q.commands[:0]
	} else {
		q.commands = q.commands[1:]
	}
	return c, true
}

// Wait returns a channel that signals when commands may be available.
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued commands.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Close refuses further commands and returns the ones still queued.
func (q *commandQueue) Close() []command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)
	rest := q.commands
	q.commands = nil
	return rest
}
