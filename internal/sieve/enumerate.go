package sieve

// Iter is a pull iterator over the accepted integers of a half-open range.
// It is restartable via Reset.
type Iter struct {
	s      *Sieve
	lo, hi int
	next   int
}

// Enumerate returns an iterator over the accepted integers of [lo, hi),
// in ascending order. An empty or inverted range yields nothing.
func Enumerate(s *Sieve, lo, hi int) *Iter {
	return &Iter{s: s, lo: lo, hi: hi, next: lo}
}

// Next returns the next accepted integer, or false when the range is exhausted.
func (it *Iter) Next() (int, bool) {
	if it.next >= it.hi {
		return 0, false
	}
	n, st := it.s.search(it.next, it.hi, 0)
	if st != found {
		it.next = it.hi
		return 0, false
	}
	it.next = n + 1
	return n, true
}

// Reset rewinds the iterator to the start of its range.
func (it *Iter) Reset() {
	it.next = it.lo
}
