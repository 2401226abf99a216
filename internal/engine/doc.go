// Package engine runs a scene in real time.
//
// The engine is a single-writer loop. One goroutine owns the scheduler: on
// every tick it applies pending control commands, advances the scheduler to
// the current output time, and moves merged events into the dispatch queue
// without ever blocking on it. Everything else talks to the loop through a
// thread-safe command queue (add, remove, replace scene, stop).
//
// Time comes from a dispatch.TimeSource shared with the dispatcher, so the
// engine's polls and the dispatcher's release times agree.
//
// Seq numbers on emitted events come from the scheduler's logical clock,
// never from wall time, so a session's stream matches an offline render of
// the same plan event for event.
package engine
