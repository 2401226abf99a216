package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSieve_OnePeriod(t *testing.T) {
	out, err := execute(t, "sieve", "3@0 | 5@0")
	require.NoError(t, err)
	assert.Equal(t, "sieve:  3@0 | 5@0\nperiod: 15\n[0, 15): 0 3 5 6 9 10 12\n", out)
}

func TestSieve_Range(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []int
	}{
		{"major triad", []string{"12@0 | 12@4 | 12@7", "--from", "36", "--to", "48"}, []int{36, 40, 43}},
		{"intersection", []string{"2@0 & 3@0", "--to", "13"}, []int{0, 6, 12}},
		{"complement after --", []string{"--to", "6", "--", "-2@0"}, []int{1, 3, 5}},
		{"complement flag", []string{"--formula=-2@0", "--to", "6"}, []int{1, 3, 5}},
		{"complement short flag", []string{"-f", "-(2@0 | 3@0)", "--to", "12"}, []int{1, 5, 7, 11}},
		{"shift", []string{"3@0", "--shift", "2", "--to", "6"}, []int{2, 5}},
		{"empty", []string{"{}", "--to", "10"}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--format", "json", "sieve"}, tt.args...)...)
			require.NoError(t, err)

			var result SieveResult
			resp := decodeResponse(t, out, &result)
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, tt.want, result.Values)
		})
	}
}

func TestSieve_EmptyText(t *testing.T) {
	out, err := execute(t, "sieve", "{}")
	require.NoError(t, err)
	assert.Contains(t, out, "period: 1\n")
	assert.Contains(t, out, "[0, 1): (none)")
}

func TestSieve_InvalidFormula(t *testing.T) {
	out, err := execute(t, "sieve", "5@7")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E101]")

	out, err = execute(t, "--format", "json", "sieve", "3@0 |")
	require.Error(t, err)
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "column")
}

func TestSieve_BadRange(t *testing.T) {
	_, err := execute(t, "sieve", "3@0", "--from", "10", "--to", "5")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSieve_FormulaSource(t *testing.T) {
	_, err := execute(t, "sieve")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "sieve", "3@0", "--formula", "5@0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
