package testutil

import "fmt"

// FixedIDGenerator hands out predictable ids for session and render
// records.
//
// With an empty prefix every id is "test-id-N"; the first call returns N=1.
// This keeps golden traces and store rows byte-identical across runs.
//
// Thread-safety: Generate is safe for concurrent use.
type FixedIDGenerator struct {
	prefix string
	clock  DeterministicCounter
}

// NewFixedIDGenerator creates a generator with the given prefix.
func NewFixedIDGenerator(prefix string) *FixedIDGenerator {
	if prefix == "" {
		prefix = "test-id"
	}
	return &FixedIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *FixedIDGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.clock.Next())
}
