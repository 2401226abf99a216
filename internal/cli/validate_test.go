package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stochos/internal/scene"
)

func TestValidate_ValidScene(t *testing.T) {
	out, err := execute(t, "validate", abScene)
	require.NoError(t, err)
	assert.Equal(t, "✓ Scene \"ab\" valid (2 generators)\n", out)
}

func TestValidate_ValidSceneJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", cloudScene)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, "cloud", result.Scene)
	assert.Equal(t, []string{"pitches", "pulse", "screens", "filter"}, result.Generators)
	assert.Len(t, result.Hash, 64)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	out, err := execute(t, "validate", brokenScene)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "4 error(s)")

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "testdata/scenes/broken.yaml:8:5: E101")
	assert.Contains(t, out, `generator "bad-channel"`)
	assert.Contains(t, out, scene.ErrCodeDist)
	assert.Contains(t, out, scene.ErrCodeDuplicate)
}

func TestValidate_CollectsAllErrorsJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "validate", brokenScene)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, scene.ErrCodeValidation, resp.Error.Code)

	assert.False(t, result.Valid)
	codes := make([]string, len(result.Errors))
	for i, p := range result.Errors {
		codes[i] = p.Code
	}
	assert.Equal(t, []string{scene.ErrCodeValidation, scene.ErrCodeSieve, scene.ErrCodeDist, scene.ErrCodeDuplicate}, codes)
	assert.Equal(t, "bad-sieve", result.Errors[1].Generator)
	assert.Equal(t, 8, result.Errors[1].Line)
	assert.Equal(t, 5, result.Errors[1].Column)
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := execute(t, "validate", "testdata/scenes/missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidate_ParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unclosed"), 0o644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, scene.ErrCodeParseFailed)
}

func TestValidate_MissingArgs(t *testing.T) {
	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestValidate_ProblemsOf(t *testing.T) {
	problems := problemsOf([]error{
		&scene.LoadError{Code: scene.ErrCodeSieve, Message: "bad", Generator: "g", Pos: scene.Pos{File: "s.yaml", Line: 3, Column: 5}},
		assert.AnError,
	})
	require.Len(t, problems, 2)
	assert.Equal(t, "s.yaml:3:5: E101: generator \"g\": bad", problems[0].String())
	assert.Equal(t, scene.ErrCodeGeneric, problems[1].Code)
}
