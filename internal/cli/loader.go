package cli

import (
	"errors"

	"github.com/roach88/stochos/internal/scene"
)

// Problem is one scene error in reportable form.
type Problem struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Generator string `json:"generator,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Column    int    `json:"column,omitempty"`
}

// String renders the problem like a compiler diagnostic.
func (p Problem) String() string {
	return (&scene.LoadError{
		Code:      p.Code,
		Message:   p.Message,
		Generator: p.Generator,
		Pos:       scene.Pos{File: p.File, Line: p.Line, Column: p.Column},
	}).Error()
}

// problemsOf converts loader and build errors into Problems. Errors that
// are not LoadErrors are reported under the generic code.
func problemsOf(errs []error) []Problem {
	out := make([]Problem, 0, len(errs))
	for _, err := range errs {
		var le *scene.LoadError
		if !errors.As(err, &le) {
			out = append(out, Problem{Code: scene.ErrCodeGeneric, Message: err.Error()})
			continue
		}
		out = append(out, Problem{
			Code:      le.Code,
			Message:   le.Message,
			Generator: le.Generator,
			File:      le.Pos.File,
			Line:      le.Pos.Line,
			Column:    le.Pos.Column,
		})
	}
	return out
}

// loadScene reads and builds a scene file.
//
// In fail-fast mode any error is returned as a command error. In
// collect-all mode generator errors come back as problems next to a plan
// holding the generators that did build; only a scene that cannot be
// read or has scene-level errors fails.
func loadScene(path string, mode scene.LoadMode) (*scene.Scene, *scene.Plan, []Problem, error) {
	s, _, err := scene.LoadFile(path)
	if err != nil {
		return nil, nil, nil, loadExitError(err)
	}
	plan, errs := scene.Build(s, mode)
	if plan == nil {
		if len(errs) == 0 {
			return nil, nil, nil, NewExitError(ExitCommandError, "scene did not build")
		}
		return nil, nil, problemsOf(errs), loadExitError(errs[0])
	}
	if len(errs) > 0 && mode == scene.LoadModeFailFast {
		return nil, nil, problemsOf(errs), loadExitError(errs[0])
	}
	return s, plan, problemsOf(errs), nil
}

func loadExitError(err error) *ExitError {
	return WrapExitError(ExitCommandError, "failed to load scene", err)
}
