package scene

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"

	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/sieve"
)

// LoadMode controls how errors are handled while loading and building.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors and skips bad generators.
	LoadModeCollectAll
)

// Error codes, stable across commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeReadFailed  = "E002" // File read error
	ErrCodeParseFailed = "E003" // YAML or CUE syntax error
	ErrCodeSchema      = "E004" // CUE schema violation
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeFormat      = "E006" // Unsupported file extension
	ErrCodeValidation  = "E010" // Struct validation failed

	ErrCodeSieve     = "E101" // Invalid sieve formula
	ErrCodeDist      = "E102" // Invalid distribution parameter
	ErrCodeMarkov    = "E103" // Invalid Markov model
	ErrCodeTempo     = "E104" // Invalid tempo map
	ErrCodeDuplicate = "E105" // Duplicate generator name
	ErrCodeGenerator = "E106" // Invalid generator settings
)

// Pos is a source position. The zero Pos is unknown.
type Pos struct {
	File   string
	Line   int
	Column int
}

// IsValid reports whether the position is known.
func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string {
	if !p.IsValid() {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

func posOf(p token.Pos) Pos {
	if !p.IsValid() {
		return Pos{}
	}
	return Pos{File: p.Filename(), Line: p.Line(), Column: p.Column()}
}

// LoadError is an error found while loading or building a scene.
type LoadError struct {
	Code      string
	Message   string
	Generator string // empty for scene-level errors
	Pos       Pos
	Err       error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Generator != "" {
		msg = fmt.Sprintf("generator %q: %s", e.Generator, msg)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Code returns the LoadError code of err, or "" when err is not one.
func Code(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// codeFor maps a construction error to its LoadError code.
func codeFor(err error) string {
	if sieve.IsInvalidFormula(err) {
		return ErrCodeSieve
	}
	var pe *dist.InvalidParameterError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case "markov":
			return ErrCodeMarkov
		case "tempo":
			return ErrCodeTempo
		case "generator":
			return ErrCodeGenerator
		default:
			return ErrCodeDist
		}
	}
	return ErrCodeGeneric
}

// buildError wraps a construction error for generator name.
func buildError(err error, name string, pos Pos) *LoadError {
	return &LoadError{Code: codeFor(err), Message: err.Error(), Generator: name, Pos: pos, Err: err}
}
