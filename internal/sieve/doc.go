// Package sieve implements residue-class sieves over the integers.
//
// A sieve is an immutable predicate built from (modulus, residue) atoms
// combined by union, intersection and complement. Evaluation is structural
// and lazy: nothing is precomputed, so membership works over the whole
// integer domain, negative numbers included.
//
// Sieves are usually written in the compact text notation
//
//	3@0 | 5@0          multiples of 3 or 5
//	(8@0 | 8@3) & -3@1 a combination with a complement
//	{}                 the empty sieve
//
// or as a structured Formula tree loaded from a scene file. Both forms are
// validated once by Build; a built *Sieve is safe for concurrent read-only use.
//
// Every sieve is periodic with period lcm(moduli): if no integer in one full
// period is accepted, none is. NextFrom searches at most one period, jumping
// from residue class to residue class rather than testing each integer.
package sieve
