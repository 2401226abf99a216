package sieve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Structure(t *testing.T) {
	f, err := Parse("3@0 | 5@0")
	require.NoError(t, err)
	assert.Equal(t, Formula{Op: OpUnion, Args: []Formula{
		{Op: OpAtom, Modulus: 3, Residue: 0},
		{Op: OpAtom, Modulus: 5, Residue: 0},
	}}, f)

	f, err = Parse("6@1>>2")
	require.NoError(t, err)
	assert.Equal(t, Formula{Op: OpAtom, Modulus: 6, Residue: 1, Shift: 2}, f)

	f, err = Parse("-(2@0 & 3@1)")
	require.NoError(t, err)
	assert.Equal(t, OpComplement, f.Op)
	require.Len(t, f.Args, 1)
	assert.Equal(t, OpIntersection, f.Args[0].Op)
}

func TestParse_Precedence(t *testing.T) {
	// & binds tighter than |.
	s, err := BuildString("2@0 | 3@0 & 5@0")
	require.NoError(t, err)
	for n := 0; n < 60; n++ {
		assert.Equal(t, n%2 == 0 || n%15 == 0, s.Accepts(n), "n=%d", n)
	}
}

func TestParse_NestedShift(t *testing.T) {
	s, err := BuildString("(6@1>>2)>>3")
	require.NoError(t, err)
	for n := 0; n < 24; n++ {
		assert.Equal(t, mod(n-5, 6) == 1, s.Accepts(n), "n=%d", n)
	}

	s, err = BuildString("4@0 >> -1")
	require.NoError(t, err)
	assert.True(t, s.Accepts(3))
	assert.False(t, s.Accepts(4))
}

func TestSieve_StringRoundTrip(t *testing.T) {
	formulas := []string{
		"3@0 | 5@0",
		"7@2 & 5@2 & -3@2",
		"(3@0 | 5@0) & 2@0",
		"-(3@0 & 5@1)",
		"--4@3",
		"-6@1>>2",
		"(8@0 | 8@3)>>-2",
		"{}",
		"-{}",
		"12@0 | 12@2 | 12@4 | 12@5 | 12@7 | 12@9 | 12@11",
	}

	for _, text := range formulas {
		t.Run(text, func(t *testing.T) {
			s, err := BuildString(text)
			require.NoError(t, err)

			again, err := BuildString(s.String())
			require.NoError(t, err, "rendered %q", s.String())

			assert.Equal(t, s.Period(), again.Period())
			for n := -40; n < 80; n++ {
				require.Equal(t, s.Accepts(n), again.Accepts(n), "n=%d rendered=%q", n, s.String())
			}
		})
	}
}

func TestParse_ErrorsCarryColumn(t *testing.T) {
	tests := []struct {
		text string
		pos  int
		msg  string
	}{
		{"", 1, "empty formula"},
		{"   ", 4, "empty formula"},
		{"3@", 3, "unexpected end of formula"},
		{"3#0", 2, "expected '@' after modulus"},
		{"(3@0", 5, "expected ')'"},
		{"3@0 5@0", 5, "unexpected '5'"},
		{"3@0 |", 6, "unexpected end of formula"},
		{"{3@0}", 2, "expected '}'"},
		{"x@1", 1, "expected integer"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			_, err := Parse(tt.text)
			require.Error(t, err)

			var fe *InvalidFormulaError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.pos, fe.Pos)
			assert.Contains(t, fe.Message, tt.msg)
		})
	}
}

func TestBuildString_AttachesFormulaText(t *testing.T) {
	_, err := BuildString("5@7")
	require.Error(t, err)

	var fe *InvalidFormulaError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "5@7", fe.Formula)
	assert.Equal(t, `invalid sieve formula "5@7": root: residue 7 outside [0, 5)`, err.Error())
}

func TestSieve_AtomsDepthFirst(t *testing.T) {
	s, err := BuildString("3@0 | -(5@1 & 7@2)")
	require.NoError(t, err)
	assert.Equal(t, []Atom{{3, 0}, {5, 1}, {7, 2}}, s.Atoms())
	assert.Nil(t, Union().Atoms())
}
