// Package dist samples the probability distributions that drive event timing
// and parameter values.
//
// Sampling is a pure function of an explicit random state: Sample takes an
// RNG by value and returns the advanced state alongside the drawn value.
// There is no package-level generator. Two generators seeded alike produce
// identical streams, and generators seeded independently can run on separate
// goroutines without sharing anything.
//
// Parameters are validated once, when a Spec is built. Sample never fails.
// Poisson specs describe a point process and yield exponential
// inter-arrival durations, not counts.
package dist
