// Package dispatch is the boundary between the engine and the outside
// world.
//
// The engine pushes merged events into a bounded Queue and never waits on
// it: TryPush refuses when the queue is full. A Dispatcher goroutine pops
// events, holds each one until its timestamp on a TimeSource, and hands it
// to a Transport. Transport errors are logged and counted; they never reach
// the engine.
package dispatch
