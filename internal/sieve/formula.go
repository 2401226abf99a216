package sieve

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Op names a node of a structured formula.
type Op string

const (
	OpAtom         Op = "atom"
	OpUnion        Op = "union"
	OpIntersection Op = "intersection"
	OpComplement   Op = "complement"
)

// Formula is the structured description of a sieve, as found in scene files.
//
// An atom uses Modulus with either Residue or a Residues list (a list is the
// union of its residue classes). Union and intersection combine Args;
// complement inverts the union of its Args, so a complement without Args
// accepts every integer. Shift applies to the node it is set on.
type Formula struct {
	Op       Op        `json:"op" yaml:"op"`
	Modulus  int       `json:"modulus,omitempty" yaml:"modulus,omitempty"`
	Residue  int       `json:"residue,omitempty" yaml:"residue,omitempty"`
	Residues []int     `json:"residues,omitempty" yaml:"residues,omitempty"`
	Shift    int       `json:"shift,omitempty" yaml:"shift,omitempty"`
	Args     []Formula `json:"args,omitempty" yaml:"args,omitempty"`
}

// Build validates a structured formula and constructs the sieve.
// Returns InvalidFormulaError when a modulus is not positive, a residue is
// outside [0, modulus), an operator is unknown, or the period is too large.
func Build(f Formula) (*Sieve, error) {
	root, err := buildNode(f, "")
	if err != nil {
		return nil, err
	}
	s := newSieve(root)
	if s.period > MaxPeriod {
		return nil, &InvalidFormulaError{Message: fmt.Sprintf("period exceeds maximum %d", MaxPeriod)}
	}
	return s, nil
}

// BuildString parses text notation and builds the sieve.
func BuildString(text string) (*Sieve, error) {
	f, err := Parse(text)
	if err != nil {
		return nil, err
	}
	s, err := Build(f)
	if err != nil {
		if fe, ok := err.(*InvalidFormulaError); ok && fe.Formula == "" {
			fe.Formula = text
		}
		return nil, err
	}
	return s, nil
}

func buildNode(f Formula, path string) (node, error) {
	if path == "" {
		path = "root"
	}
	var n node
	switch f.Op {
	case OpAtom:
		residues := f.Residues
		if len(residues) == 0 {
			residues = []int{f.Residue}
		}
		atoms := make([]node, 0, len(residues))
		for _, r := range residues {
			if err := validateAtom(f.Modulus, r); err != nil {
				fe := err.(*InvalidFormulaError)
				fe.Message = path + ": " + fe.Message
				return nil, fe
			}
			atoms = append(atoms, atomNode{Atom{Modulus: f.Modulus, Residue: r}})
		}
		if len(atoms) == 1 {
			n = atoms[0]
		} else {
			n = unionNode{children: atoms}
		}
	case OpUnion, OpIntersection, OpComplement:
		children := make([]node, 0, len(f.Args))
		for i, arg := range f.Args {
			c, err := buildNode(arg, fmt.Sprintf("%s.args[%d]", path, i))
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		switch f.Op {
		case OpUnion:
			n = unionNode{children: children}
		case OpIntersection:
			n = intersectionNode{children: children}
		default:
			if len(children) == 1 {
				n = complementNode{child: children[0]}
			} else {
				n = complementNode{child: unionNode{children: children}}
			}
		}
	case "":
		return nil, &InvalidFormulaError{Message: path + ": op is required"}
	default:
		return nil, &InvalidFormulaError{Message: fmt.Sprintf("%s: unknown op %q", path, f.Op)}
	}
	if f.Shift != 0 {
		n = shiftNode{child: n, shift: f.Shift}
	}
	return n, nil
}

// Parse converts text notation into a structured Formula.
//
// Grammar (lowest precedence first):
//
//	union        = intersection { "|" intersection }
//	intersection = unary { "&" unary }
//	unary        = "-" unary | primary [ ">>" [ "-" ] int ]
//	primary      = int "@" int | "(" union ")" | "{" "}"
func Parse(text string) (Formula, error) {
	p := &parser{src: text}
	p.skipSpace()
	if p.pos >= len(p.src) {
		return Formula{}, p.errorf("empty formula")
	}
	f, err := p.parseUnion()
	if err != nil {
		return Formula{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Formula{}, p.errorf("unexpected %q", p.src[p.pos])
	}
	return f, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return &InvalidFormulaError{Formula: p.src, Pos: p.pos + 1, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *parser) accept(tok string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], tok) {
		p.pos += len(tok)
		return true
	}
	return false
}

func (p *parser) parseUnion() (Formula, error) {
	first, err := p.parseIntersection()
	if err != nil {
		return Formula{}, err
	}
	args := []Formula{first}
	for p.accept("|") {
		next, err := p.parseIntersection()
		if err != nil {
			return Formula{}, err
		}
		args = append(args, next)
	}
	if len(args) == 1 {
		return first, nil
	}
	return Formula{Op: OpUnion, Args: args}, nil
}

func (p *parser) parseIntersection() (Formula, error) {
	first, err := p.parseUnary()
	if err != nil {
		return Formula{}, err
	}
	args := []Formula{first}
	for p.accept("&") {
		next, err := p.parseUnary()
		if err != nil {
			return Formula{}, err
		}
		args = append(args, next)
	}
	if len(args) == 1 {
		return first, nil
	}
	return Formula{Op: OpIntersection, Args: args}, nil
}

func (p *parser) parseUnary() (Formula, error) {
	if p.accept("-") {
		inner, err := p.parseUnary()
		if err != nil {
			return Formula{}, err
		}
		return Formula{Op: OpComplement, Args: []Formula{inner}}, nil
	}
	f, err := p.parsePrimary()
	if err != nil {
		return Formula{}, err
	}
	if p.accept(">>") {
		neg := p.accept("-")
		k, err := p.parseInt()
		if err != nil {
			return Formula{}, err
		}
		if neg {
			k = -k
		}
		if f.Shift != 0 {
			f = Formula{Op: OpUnion, Args: []Formula{f}}
		}
		f.Shift = k
	}
	return f, nil
}

func (p *parser) parsePrimary() (Formula, error) {
	p.skipSpace()
	switch {
	case p.accept("("):
		f, err := p.parseUnion()
		if err != nil {
			return Formula{}, err
		}
		if !p.accept(")") {
			return Formula{}, p.errorf("expected ')'")
		}
		return f, nil
	case p.accept("{"):
		if !p.accept("}") {
			return Formula{}, p.errorf("expected '}'")
		}
		return Formula{Op: OpUnion}, nil
	}

	m, err := p.parseInt()
	if err != nil {
		return Formula{}, err
	}
	if !p.accept("@") {
		return Formula{}, p.errorf("expected '@' after modulus")
	}
	r, err := p.parseInt()
	if err != nil {
		return Formula{}, err
	}
	return Formula{Op: OpAtom, Modulus: m, Residue: r}, nil
}

func (p *parser) parseInt() (int, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		if p.pos >= len(p.src) {
			return 0, p.errorf("unexpected end of formula")
		}
		return 0, p.errorf("expected integer, found %q", p.src[p.pos])
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		p.pos = start
		return 0, p.errorf("integer out of range")
	}
	return n, nil
}
