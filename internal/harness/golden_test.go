package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stochos/internal/ir"
)

func TestRunWithGolden_ABMerge(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ab_merge.yaml")
	require.NoError(t, err)

	res, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, res.Pass, "errors: %v", res.Errors)
}

func TestStreamSnapshot_CanonicalDeterminism(t *testing.T) {
	snap := StreamSnapshot{
		ScenarioName: "det",
		StreamHash:   "abc",
		Events: []ir.Event{
			{Seq: 1, Timestamp: 0.1234567, Generator: "g", Kind: ir.KindNote, Value: 60, Velocity: 90, Duration: 0.25},
		},
	}

	first, err := ir.MarshalCanonical(snap.toCanonicalMap())
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ir.MarshalCanonical(snap.toCanonicalMap())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// Nil eviction list serializes as an empty array; times as microseconds.
	assert.Contains(t, string(first), `"evicted":[]`)
	assert.Contains(t, string(first), `"t_us":123457`)
}
