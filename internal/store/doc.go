// Package store provides SQLite-backed storage for scenes and rendered
// event streams.
//
// The store holds three tables:
//   - scenes: scene configurations, keyed by scene hash
//   - renders: one row per offline render (scene, duration, stream hash)
//   - events: the rendered stream, one row per event
//
// # Conventions
//
// Logical identity: events are ordered by seq, never by wall time. Times
// are stored as integer microseconds, the same encoding the stream hash
// uses, so a stream read back hashes identically to the one written.
//
// Idempotency: scenes are content-addressed and inserted with ON CONFLICT
// DO NOTHING. Writing the same render id twice is an error.
//
// Replay: a render can be re-rendered from its stored scene and compared
// by stream hash (see Replay).
//
// # Connections
//
// Open passes its pragmas in the DSN so the driver sets them on every
// connection: WAL journaling, synchronous=NORMAL, a 5 s busy timeout and
// enforced foreign keys. The pool holds a single connection. Schema
// upgrades are numbered migrations tracked in PRAGMA user_version.
package store
