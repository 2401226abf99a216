package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "testdata/scenarios"

// writeScenario writes a scenario for abScene into dir.
func writeScenario(t *testing.T, dir, name, assertions string) {
	t.Helper()
	scenePath, err := filepath.Abs(abScene)
	require.NoError(t, err)
	body := "name: " + name + "\ndescription: " + name + " against the A/B scene\nscene: " + scenePath + "\nduration: 1\nassertions:\n" + assertions
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func TestTestCommand_Passes(t *testing.T) {
	out, err := execute(t, "test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ab_merge (5 events)")
	assert.Contains(t, out, "✓ cloud_smoke")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "test", scenariosDir, "--filter", "ab_*")
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "ab_merge", result.Scenarios[0].Name)
	assert.Equal(t, abStreamHash, result.Scenarios[0].StreamHash)
}

func TestTestCommand_FailingAssertion(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "too_many", "  - type: count\n    count: 6\n")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ too_many")
	assert.Contains(t, out, "assertions[0]")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommand_GoldenUpdateAndMismatch(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "ab", "  - type: ordered\n")

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ab (golden updated)")

	golden := filepath.Join(dir, "golden", "ab.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), abStreamHash)

	_, err = execute(t, "test", dir)
	require.NoError(t, err, "fresh golden matches")

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"ab"}`), 0o644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "stream does not match golden file")
}

func TestTestCommand_BadScenarioFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "typo.yaml"), []byte("name: typo\nscene: x.yaml\nduraton: 1\n"), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ typo")
	assert.Contains(t, out, "load error")
}

func TestTestCommand_Directories(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")

	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, err = execute(t, "test", scenariosDir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
