package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			res, err := Run(s)
			require.NoError(t, err)
			assert.True(t, res.Pass, "errors: %v", res.Errors)
			assert.NotEmpty(t, res.StreamHash)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/cloud_sieve.yaml")
	require.NoError(t, err)

	a, err := Run(s)
	require.NoError(t, err)
	b, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, a.StreamHash, b.StreamHash)
	assert.Equal(t, a.Events, b.Events)
}

func TestRun_FailingAssertion(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ab_merge.yaml")
	require.NoError(t, err)
	s.Assertions = append(s.Assertions, Assertion{Type: AssertCount, Generator: "B", Count: intp(9)})

	res, err := Run(s)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "assertions[6]")
}

func TestRun_RenderID(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/ab_merge.yaml")
	require.NoError(t, err)
	res, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, "test-render-1", res.RenderID)

	s, err = LoadScenario("testdata/scenarios/collect_all.yaml")
	require.NoError(t, err)
	res, err = Run(s)
	require.NoError(t, err)
	assert.Equal(t, "partial-render", res.RenderID)
}

func TestRun_FailFastRejectsBrokenScene(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/collect_all.yaml")
	require.NoError(t, err)
	s.CollectAll = false

	_, err = Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build scene")
}

func TestRun_MissingScene(t *testing.T) {
	_, err := Run(&Scenario{Name: "x", Scene: "testdata/scenes/missing.yaml", Duration: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load scene")
}
