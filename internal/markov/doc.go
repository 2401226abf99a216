// Package markov implements weighted discrete-state machines over a finite
// alphabet of musical symbols.
//
// A Model owns its current state and is mutated only by Advance. Selection
// is inverse-CDF sampling over the normalized weight row of the current
// state, with half-open intervals: a uniform draw that lands exactly on an
// interval boundary selects the following interval. Random state is passed
// in and returned explicitly (see package dist).
package markov
