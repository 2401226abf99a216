// Package ir provides the canonical event representation for stochos.
//
// This package contains the types that cross package boundaries (Event,
// Kind) together with their canonical serialization and hashing. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Canonical JSON carries NO floats - timestamps and durations are encoded
//     as integer microseconds so stream hashes are stable across platforms
//   - All JSON tags use snake_case
//   - Ordering inside a stream uses Seq (logical clock) first, Timestamp second
package ir
