package markov

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/roach88/stochos/internal/dist"
)

// paramKind tags construction errors, which share dist.InvalidParameterError.
const paramKind dist.Kind = "markov"

// Option configures a Model at construction.
type Option func(*options)

type options struct {
	initial  string
	terminal []string
}

// WithInitial sets the starting state. Defaults to the first state.
func WithInitial(symbol string) Option {
	return func(o *options) { o.initial = symbol }
}

// WithTerminal flags states that may have an all-zero weight row.
// Advancing from such a state returns InvalidStateError.
func WithTerminal(symbols ...string) Option {
	return func(o *options) { o.terminal = append(o.terminal, symbols...) }
}

// Model is a finite Markov chain with a current-state pointer.
// It is not safe for concurrent use; a scheduler pulls it from one goroutine.
type Model struct {
	symbols  []string
	index    map[string]int
	weights  [][]float64
	cum      [][]float64 // nil for a dead-end row
	terminal []bool
	initial  int
	state    int
}

// NewModel validates the weight matrix and returns a model positioned at
// the initial state. weights[i][j] is the weight of moving from symbols[i]
// to symbols[j]; rows need not sum to one.
func NewModel(symbols []string, weights [][]float64, opts ...Option) (*Model, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(symbols) == 0 {
		return nil, invalid("states", "must not be empty")
	}
	index := make(map[string]int, len(symbols))
	for i, s := range symbols {
		if s == "" {
			return nil, invalid(fmt.Sprintf("states[%d]", i), "must not be empty")
		}
		if _, dup := index[s]; dup {
			return nil, invalid(fmt.Sprintf("states[%d]", i), "duplicates %q", s)
		}
		index[s] = i
	}

	m := &Model{
		symbols:  slices.Clone(symbols),
		index:    index,
		terminal: make([]bool, len(symbols)),
	}
	for _, t := range o.terminal {
		i, ok := index[t]
		if !ok {
			return nil, invalid("terminal", "names unknown state %q", t)
		}
		m.terminal[i] = true
	}
	if err := m.setWeights(weights); err != nil {
		return nil, err
	}
	if o.initial != "" {
		i, ok := index[o.initial]
		if !ok {
			return nil, invalid("initial", "names unknown state %q", o.initial)
		}
		m.initial = i
	}
	m.state = m.initial
	return m, nil
}

func (m *Model) setWeights(weights [][]float64) error {
	n := len(m.symbols)
	if len(weights) != n {
		return invalid("weights", "has %d rows for %d states", len(weights), n)
	}
	rows := make([][]float64, n)
	cum := make([][]float64, n)
	for i, row := range weights {
		if len(row) != n {
			return invalid(fmt.Sprintf("weights[%d]", i), "has %d entries for %d states", len(row), n)
		}
		c, err := dist.Cumulative(row)
		if err != nil {
			var pe *dist.InvalidParameterError
			if errors.As(err, &pe) && m.terminal[i] && pe.Param == "weights" {
				// All-zero row on a flagged terminal state is a dead end.
				rows[i] = slices.Clone(row)
				continue
			}
			return invalid(fmt.Sprintf("weights[%d] (%s)", i, m.symbols[i]), "%s", err.Error())
		}
		rows[i] = slices.Clone(row)
		cum[i] = c
	}
	m.weights = rows
	m.cum = cum
	return nil
}

// Advance draws the next state from the current state's row, moves to it,
// and returns its symbol with the successor random state. On a dead-end
// state it returns InvalidStateError and leaves both the model and rng
// untouched.
func (m *Model) Advance(rng dist.RNG) (string, dist.RNG, error) {
	row := m.cum[m.state]
	if row == nil {
		return "", rng, &InvalidStateError{State: m.symbols[m.state]}
	}
	u, next := rng.Float64()
	m.state = dist.Pick(row, u)
	return m.symbols[m.state], next, nil
}

// Walk advances n times and returns the visited symbols. It stops early at
// a dead end, returning the symbols visited so far and the error.
func (m *Model) Walk(n int, rng dist.RNG) ([]string, dist.RNG, error) {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, next, err := m.Advance(rng)
		if err != nil {
			return out, rng, err
		}
		out = append(out, s)
		rng = next
	}
	return out, rng, nil
}

// Current returns the symbol of the current state.
func (m *Model) Current() string { return m.symbols[m.state] }

// States returns the state symbols in matrix order.
func (m *Model) States() []string { return slices.Clone(m.symbols) }

// Weights returns a copy of the weight matrix.
func (m *Model) Weights() [][]float64 {
	out := make([][]float64, len(m.weights))
	for i, row := range m.weights {
		out[i] = slices.Clone(row)
	}
	return out
}

// Probabilities returns the normalized transition row of a state.
func (m *Model) Probabilities(symbol string) ([]float64, bool) {
	i, ok := m.index[symbol]
	if !ok {
		return nil, false
	}
	row := slices.Clone(m.weights[i])
	if m.cum[i] == nil {
		return row, true
	}
	floats.Scale(1/m.cum[i][len(row)-1], row)
	return row, true
}

// Reset moves the model to a state; an empty symbol means the initial state.
func (m *Model) Reset(symbol string) error {
	if symbol == "" {
		m.state = m.initial
		return nil
	}
	i, ok := m.index[symbol]
	if !ok {
		return invalid("state", "names unknown state %q", symbol)
	}
	m.state = i
	return nil
}

// Perturb replaces the weight matrix, keeping the current state. The new
// matrix is validated like NewModel's; on error the model is unchanged.
func (m *Model) Perturb(weights [][]float64) error {
	return m.setWeights(weights)
}

// Clone returns an independent copy, including the current state.
func (m *Model) Clone() *Model {
	c := *m
	c.weights = m.Weights()
	c.cum = make([][]float64, len(m.cum))
	for i, row := range m.cum {
		c.cum[i] = slices.Clone(row)
	}
	c.terminal = slices.Clone(m.terminal)
	return &c
}

// Stationary returns the long-run state distribution, keyed by symbol.
// It runs power iteration on the lazy chain (P+I)/2, which has the same
// fixed point as P but also converges for periodic chains. Dead-end states
// are treated as absorbing.
func (m *Model) Stationary() map[string]float64 {
	n := len(m.symbols)
	p := make([][]float64, n)
	for i := range p {
		p[i] = make([]float64, n)
		if m.cum[i] == nil {
			p[i][i] = 1
			continue
		}
		copy(p[i], m.weights[i])
		floats.Scale(1/m.cum[i][n-1], p[i])
	}

	pi := make([]float64, n)
	for i := range pi {
		pi[i] = 1 / float64(n)
	}
	next := make([]float64, n)
	for iter := 0; iter < 100000; iter++ {
		for j := range next {
			next[j] = pi[j] / 2
		}
		for i := range p {
			for j, w := range p[i] {
				next[j] += pi[i] * w / 2
			}
		}
		floats.Scale(1/floats.Sum(next), next)
		done := floats.Distance(pi, next, 1) < 1e-13
		pi, next = next, pi
		if done {
			break
		}
	}

	out := make(map[string]float64, n)
	for i, s := range m.symbols {
		out[s] = pi[i]
	}
	return out
}

func invalid(param, format string, args ...any) error {
	return &dist.InvalidParameterError{Kind: paramKind, Param: param, Message: fmt.Sprintf(format, args...)}
}
