// Package gen implements the event generators pulled by the scheduler.
//
// A Generator is a pull iterator: each call to Next returns the next event
// in generator-local time, strictly later than the previous one. There is
// no rewind; restarting a stream means building a new generator from the
// same configuration and seed.
//
// The set of generators is closed: Stochastic (point process filtered by a
// sieve), SieveRhythm (onsets on sieve positions), MarkovDriven (material
// selected by a Markov chain) and Sequence (fixed cues). Every generator
// owns its random state; none of them is safe for concurrent use.
package gen
