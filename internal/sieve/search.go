package sieve

import "math/bits"

// status is the outcome of a structural search.
type status int

const (
	found   status = iota
	absent         // nothing in the searched range
	limited        // step budget spent before an answer
)

// budget counts search steps. A negative count never runs out.
type budget struct{ left int }

func newBudget(limit int) *budget {
	if limit <= 0 {
		return &budget{left: -1}
	}
	return &budget{left: limit}
}

func (b *budget) spend() bool {
	switch {
	case b.left < 0:
		return true
	case b.left == 0:
		return false
	}
	b.left--
	return true
}

// seek is node.next or node.nextReject.
type seek func(c node, n, hi int, b *budget) (int, status)

// Each node answers two questions over [n, hi): the smallest integer it
// accepts, and the smallest it rejects. Complement swaps them, which keeps
// the whole tree searchable by jumps instead of integer-by-integer tests.

func (a atomNode) next(n, hi int, b *budget) (int, status) {
	if !b.spend() {
		return 0, limited
	}
	m := n + mod(a.atom.Residue-n, a.atom.Modulus)
	if m >= hi {
		return 0, absent
	}
	return m, found
}

func (a atomNode) nextReject(n, hi int, b *budget) (int, status) {
	if !b.spend() {
		return 0, limited
	}
	if a.atom.Modulus == 1 {
		return 0, absent
	}
	m := n
	if a.accepts(m) {
		m++
	}
	if m >= hi {
		return 0, absent
	}
	return m, found
}

func (u unionNode) next(n, hi int, b *budget) (int, status) {
	return earliest(u.children, n, hi, b, node.next)
}

func (u unionNode) nextReject(n, hi int, b *budget) (int, status) {
	return leapfrog(u.children, n, hi, b, node.nextReject)
}

func (x intersectionNode) next(n, hi int, b *budget) (int, status) {
	children, ok := mergeAtoms(x.children)
	if !ok {
		return 0, absent
	}
	return leapfrog(children, n, hi, b, node.next)
}

func (x intersectionNode) nextReject(n, hi int, b *budget) (int, status) {
	return earliest(x.children, n, hi, b, node.nextReject)
}

func (c complementNode) next(n, hi int, b *budget) (int, status) {
	return c.child.nextReject(n, hi, b)
}

func (c complementNode) nextReject(n, hi int, b *budget) (int, status) {
	return c.child.next(n, hi, b)
}

func (s shiftNode) next(n, hi int, b *budget) (int, status) {
	m, st := s.child.next(n-s.shift, hi-s.shift, b)
	if st != found {
		return 0, st
	}
	return m + s.shift, found
}

func (s shiftNode) nextReject(n, hi int, b *budget) (int, status) {
	m, st := s.child.nextReject(n-s.shift, hi-s.shift, b)
	if st != found {
		return 0, st
	}
	return m + s.shift, found
}

// earliest returns the smallest hit of any child.
func earliest(children []node, n, hi int, b *budget, f seek) (int, status) {
	best, st := hi, absent
	for _, c := range children {
		m, cst := f(c, n, best, b)
		switch cst {
		case limited:
			return 0, limited
		case found:
			best, st = m, found
		}
	}
	if st != found {
		return 0, absent
	}
	return best, found
}

// leapfrog returns the smallest point every child hits. Each child moves the
// candidate forward to its own next hit until all of them agree.
func leapfrog(children []node, n, hi int, b *budget, f seek) (int, status) {
	if n >= hi {
		return 0, absent
	}
	m := n
	for {
		stable := true
		for _, c := range children {
			x, st := f(c, m, hi, b)
			if st != found {
				return 0, st
			}
			if x != m {
				m, stable = x, false
			}
		}
		if stable {
			return m, found
		}
	}
}

// mergeAtoms folds the atom children of an intersection into one atom by the
// Chinese remainder theorem. ok is false when the atoms are incompatible, so
// the intersection accepts nothing.
func mergeAtoms(children []node) (out []node, ok bool) {
	var atoms []Atom
	rest := make([]node, 0, len(children))
	for _, c := range children {
		if a, isAtom := c.(atomNode); isAtom {
			atoms = append(atoms, a.atom)
			continue
		}
		rest = append(rest, c)
	}
	if len(atoms) < 2 {
		return children, true
	}
	acc := atoms[0]
	for _, a := range atoms[1:] {
		merged, compatible, fits := crt(acc, a)
		if !compatible {
			return nil, false
		}
		if !fits {
			return children, true
		}
		acc = merged
	}
	return append([]node{atomNode{acc}}, rest...), true
}

// crt combines n ≡ a.Residue (mod a.Modulus) and n ≡ b.Residue (mod
// b.Modulus). fits is false when the combined modulus exceeds MaxPeriod.
func crt(a, b Atom) (merged Atom, compatible, fits bool) {
	g, p, _ := extendedGCD(a.Modulus, b.Modulus)
	diff := b.Residue - a.Residue
	if diff%g != 0 {
		return Atom{}, false, true
	}
	m2 := b.Modulus / g
	if a.Modulus > MaxPeriod/m2 {
		return Atom{}, true, false
	}
	l := a.Modulus * m2
	// a.Modulus*p ≡ g (mod b.Modulus), so k = (diff/g)*p solves the pair.
	k := mulmod(mod(diff/g, m2), mod(p, m2), m2)
	return Atom{Modulus: l, Residue: mod(a.Residue+a.Modulus*k, l)}, true, true
}

// extendedGCD returns g = gcd(a, b) and x, y with a*x + b*y = g.
func extendedGCD(a, b int) (g, x, y int) {
	x0, x1, y0, y1 := 1, 0, 0, 1
	for b != 0 {
		q := a / b
		a, b = b, a-q*b
		x0, x1 = x1, x0-q*x1
		y0, y1 = y1, y0-q*y1
	}
	return a, x0, y0
}

// mulmod computes a*b mod m for 0 <= a, b < m without overflow.
func mulmod(a, b, m int) int {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	return int(bits.Rem64(hi, lo, uint64(m)))
}
