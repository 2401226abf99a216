package sieve

import (
	"fmt"
	"strings"
)

// MaxPeriod bounds lcm(moduli). Build rejects formulas whose period exceeds it
// so searches stay within int range.
const MaxPeriod = 1 << 40

// Atom is a single residue class: integers n with n mod Modulus == Residue.
type Atom struct {
	Modulus int `json:"modulus" yaml:"modulus"`
	Residue int `json:"residue" yaml:"residue"`
}

// node is the closed set of combination tree nodes.
type node interface {
	accepts(n int) bool
	next(n, hi int, b *budget) (int, status)
	nextReject(n, hi int, b *budget) (int, status)
	appendAtoms(dst []Atom) []Atom
	format(b *strings.Builder, parentPrec int)
}

// Operator precedence used when rendering formulas.
const (
	precUnion = iota + 1
	precIntersection
	precUnary
)

type atomNode struct{ atom Atom }

func (a atomNode) accepts(n int) bool {
	return mod(n, a.atom.Modulus) == a.atom.Residue
}

func (a atomNode) appendAtoms(dst []Atom) []Atom { return append(dst, a.atom) }

func (a atomNode) format(b *strings.Builder, _ int) {
	fmt.Fprintf(b, "%d@%d", a.atom.Modulus, a.atom.Residue)
}

// unionNode with no children is the empty sieve.
type unionNode struct{ children []node }

func (u unionNode) accepts(n int) bool {
	for _, c := range u.children {
		if c.accepts(n) {
			return true
		}
	}
	return false
}

func (u unionNode) appendAtoms(dst []Atom) []Atom {
	for _, c := range u.children {
		dst = c.appendAtoms(dst)
	}
	return dst
}

func (u unionNode) format(b *strings.Builder, parentPrec int) {
	if len(u.children) == 0 {
		b.WriteString("{}")
		return
	}
	formatChildren(b, u.children, " | ", precUnion, parentPrec)
}

// intersectionNode with no children accepts every integer.
type intersectionNode struct{ children []node }

func (x intersectionNode) accepts(n int) bool {
	for _, c := range x.children {
		if !c.accepts(n) {
			return false
		}
	}
	return true
}

func (x intersectionNode) appendAtoms(dst []Atom) []Atom {
	for _, c := range x.children {
		dst = c.appendAtoms(dst)
	}
	return dst
}

func (x intersectionNode) format(b *strings.Builder, parentPrec int) {
	if len(x.children) == 0 {
		b.WriteString("-{}")
		return
	}
	formatChildren(b, x.children, " & ", precIntersection, parentPrec)
}

type complementNode struct{ child node }

func (c complementNode) accepts(n int) bool { return !c.child.accepts(n) }

func (c complementNode) appendAtoms(dst []Atom) []Atom { return c.child.appendAtoms(dst) }

func (c complementNode) format(b *strings.Builder, _ int) {
	b.WriteByte('-')
	c.child.format(b, precUnary)
}

// shiftNode tests n - shift against its child (Xenakis' metabola).
type shiftNode struct {
	child node
	shift int
}

func (s shiftNode) accepts(n int) bool { return s.child.accepts(n - s.shift) }

func (s shiftNode) appendAtoms(dst []Atom) []Atom { return s.child.appendAtoms(dst) }

func (s shiftNode) format(b *strings.Builder, _ int) {
	b.WriteByte('(')
	s.child.format(b, 0)
	fmt.Fprintf(b, ")>>%d", s.shift)
}

func formatChildren(b *strings.Builder, children []node, sep string, prec, parentPrec int) {
	paren := parentPrec > prec || (len(children) == 1 && parentPrec == precUnary)
	if paren {
		b.WriteByte('(')
	}
	for i, c := range children {
		if i > 0 {
			b.WriteString(sep)
		}
		c.format(b, prec)
	}
	if paren {
		b.WriteByte(')')
	}
}

// Sieve is an immutable integer predicate.
// The zero value is the empty sieve and accepts nothing.
type Sieve struct {
	root   node
	period int
}

func newSieve(root node) *Sieve {
	s := &Sieve{root: root, period: 1}
	for _, a := range root.appendAtoms(nil) {
		s.period = lcm(s.period, a.Modulus)
	}
	return s
}

// Accepts reports whether n belongs to the sieve.
func (s *Sieve) Accepts(n int) bool {
	if s == nil || s.root == nil {
		return false
	}
	return s.root.accepts(n)
}

// Atoms returns the atoms of the combination tree in depth-first order.
func (s *Sieve) Atoms() []Atom {
	if s == nil || s.root == nil {
		return nil
	}
	return s.root.appendAtoms(nil)
}

// Period returns lcm of all moduli (1 for a sieve without atoms).
// Accepts(n) == Accepts(n + Period()) for every n.
func (s *Sieve) Period() int {
	if s == nil || s.period == 0 {
		return 1
	}
	return s.period
}

// NextFrom returns the smallest accepted integer m >= n. The search jumps
// between residue classes and folds intersected atoms together, so sparse
// sieves with huge periods are answered in a few steps. limit bounds the
// number of steps (limit <= 0 means no bound). false means the sieve accepts
// nothing at or after n, or the bound was reached first.
func (s *Sieve) NextFrom(n, limit int) (int, bool) {
	m, st := s.search(n, n+s.Period(), limit)
	return m, st == found
}

// Empty reports whether the sieve accepts no integer at all.
func (s *Sieve) Empty() bool {
	_, st := s.search(0, s.Period(), 0)
	return st != found
}

// search finds the smallest accepted integer in [n, hi).
func (s *Sieve) search(n, hi, limit int) (int, status) {
	if s == nil || s.root == nil {
		return 0, absent
	}
	return s.root.next(n, hi, newBudget(limit))
}

// String renders the sieve in text notation. The rendering parses back into
// an equivalent sieve; shifted subtrees use the ">>k" suffix.
func (s *Sieve) String() string {
	if s == nil || s.root == nil {
		return "{}"
	}
	var b strings.Builder
	s.root.format(&b, 0)
	return b.String()
}

// NewAtom builds a single-atom sieve.
func NewAtom(modulus, residue int) (*Sieve, error) {
	if err := validateAtom(modulus, residue); err != nil {
		return nil, err
	}
	return newSieve(atomNode{Atom{Modulus: modulus, Residue: residue}}), nil
}

// Union combines sieves; Union() is the empty sieve.
func Union(sieves ...*Sieve) *Sieve {
	return newSieve(unionNode{children: roots(sieves)})
}

// Intersection combines sieves; Intersection() accepts every integer.
func Intersection(sieves ...*Sieve) *Sieve {
	return newSieve(intersectionNode{children: roots(sieves)})
}

// Complement inverts a sieve. Complement(Union()) accepts every integer.
func Complement(s *Sieve) *Sieve {
	return newSieve(complementNode{child: rootOf(s)})
}

// Shift returns a sieve accepting n whenever s accepts n - k.
func Shift(s *Sieve, k int) *Sieve {
	if k == 0 {
		return s
	}
	return newSieve(shiftNode{child: rootOf(s), shift: k})
}

// Collect returns the accepted integers of [lo, hi) in ascending order.
func Collect(s *Sieve, lo, hi int) []int {
	var out []int
	it := Enumerate(s, lo, hi)
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		out = append(out, n)
	}
	return out
}

func roots(sieves []*Sieve) []node {
	out := make([]node, 0, len(sieves))
	for _, s := range sieves {
		out = append(out, rootOf(s))
	}
	return out
}

func rootOf(s *Sieve) node {
	if s == nil || s.root == nil {
		return unionNode{}
	}
	return s.root
}

func validateAtom(modulus, residue int) error {
	if modulus <= 0 {
		return &InvalidFormulaError{Message: fmt.Sprintf("modulus must be positive, got %d", modulus)}
	}
	if modulus > MaxPeriod {
		return &InvalidFormulaError{Message: fmt.Sprintf("modulus %d exceeds maximum %d", modulus, MaxPeriod)}
	}
	if residue < 0 || residue >= modulus {
		return &InvalidFormulaError{Message: fmt.Sprintf("residue %d outside [0, %d)", residue, modulus)}
	}
	return nil
}

// mod is the Euclidean remainder, always in [0, m).
func mod(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// lcm saturates at MaxPeriod+1 so callers can detect overflow.
func lcm(a, b int) int {
	if a > MaxPeriod || b > MaxPeriod {
		return MaxPeriod + 1
	}
	q := a / gcd(a, b)
	if q > MaxPeriod/b {
		return MaxPeriod + 1
	}
	return q * b
}
