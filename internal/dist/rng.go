package dist

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// RNG is an explicit random state. It is a plain value: copying an RNG
// forks the stream, and every draw returns the successor state.
type RNG struct {
	pcg rand.PCG
}

// NewRNG seeds a PCG state. The second PCG word is derived from the seed so
// a single uint64 fully determines the stream.
func NewRNG(seed uint64) RNG {
	return RNG{pcg: *rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// Float64 draws a uniform value in [0, 1).
func (r RNG) Float64() (float64, RNG) {
	src := r.pcg
	u := distuv.Uniform{Min: 0, Max: 1, Src: &src}.Rand()
	return u, RNG{pcg: src}
}

// Uint64 draws 64 random bits, used to seed derived states.
func (r RNG) Uint64() (uint64, RNG) {
	src := r.pcg
	v := src.Uint64()
	return v, RNG{pcg: src}
}
