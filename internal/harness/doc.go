// Package harness runs scene scenarios: a scene file, a render duration and
// assertions over the rendered stream.
//
// A scenario renders its scene offline, records the render in an in-memory
// store and replays it, so every scenario also checks that the stream is
// reproducible from the stored scene. Assertions then run over the events:
//
//   - count: number of events, optionally for one generator
//   - ordered: timestamps non-decreasing, seq contiguous from 1
//   - evicted: exactly these generators were evicted, in order
//   - values_in: every value of a generator lies in a set, range or sieve
//
// RunWithGolden additionally compares the stream with a golden file under
// testdata/golden. Regenerate golden files with:
//
//	go test ./internal/harness -update
package harness
