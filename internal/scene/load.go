package scene

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource []byte

// Schema returns the CUE schema scene files are checked against.
func Schema() string { return string(schemaSource) }

// LoadFile reads a scene from path, choosing the format by extension:
// .yaml/.yml or .cue (.json is read as YAML).
func LoadFile(path string) (*Scene, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scene file not found: %s", path), Err: err}
		}
		return nil, nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}

	var s *Scene
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		s, err = LoadYAML(data, path)
	case ".cue":
		s, err = LoadCUE(data, path)
	default:
		return nil, nil, &LoadError{Code: ErrCodeFormat, Message: fmt.Sprintf("unsupported scene format %q (want .yaml, .yml, .json or .cue)", filepath.Ext(path))}
	}
	if err != nil {
		return nil, nil, err
	}
	return s, data, nil
}

// LoadYAML decodes a YAML scene. filename is used in positions only.
func LoadYAML(data []byte, filename string) (*Scene, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Pos: Pos{File: filename}, Err: err}
	}
	if len(root.Content) == 0 {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: "empty scene file", Pos: Pos{File: filename}}
	}

	// Decode again strictly so a misspelled key is an error, not a default.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Scene
	if err := dec.Decode(&s); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Pos: Pos{File: filename}, Err: err}
	}
	s.positions = yamlPositions(root.Content[0], filename)
	return &s, nil
}

// yamlPositions finds the line of every item of the generators sequence.
func yamlPositions(doc *yaml.Node, filename string) map[int]Pos {
	if doc.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key, val := doc.Content[i], doc.Content[i+1]
		if key.Value != "generators" || val.Kind != yaml.SequenceNode {
			continue
		}
		out := make(map[int]Pos, len(val.Content))
		for j, item := range val.Content {
			out[j] = Pos{File: filename, Line: item.Line, Column: item.Column}
		}
		return out
	}
	return nil
}

// LoadCUE compiles a CUE scene, unifies it with #Scene and decodes the
// result. Schema violations carry the position of the offending value.
func LoadCUE(data []byte, filename string) (*Scene, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("compiling scene schema: %v", err), Err: err}
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(ErrCodeParseFailed, err, filename)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scene")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, err, filename)
	}

	raw, err := unified.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(ErrCodeSchema, err, filename)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	var s Scene
	if err := dec.Decode(&s); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: err.Error(), Pos: Pos{File: filename}, Err: err}
	}
	s.positions = cuePositions(v, filename)
	return &s, nil
}

// cueLoadError converts the first CUE error to a LoadError with position.
func cueLoadError(code string, err error, filename string) *LoadError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: code, Message: err.Error(), Pos: Pos{File: filename}, Err: err}
	}
	first := errs[0]
	le := &LoadError{Code: code, Message: first.Error(), Pos: Pos{File: filename}, Err: err}
	for _, p := range cueerrors.Positions(first) {
		if p.Filename() == filename {
			le.Pos = posOf(p)
			break
		}
	}
	return le
}

func cuePositions(v cue.Value, filename string) map[int]Pos {
	list, err := v.LookupPath(cue.ParsePath("generators")).List()
	if err != nil {
		return nil
	}
	out := map[int]Pos{}
	for i := 0; list.Next(); i++ {
		if p := posOf(list.Value().Pos()); p.IsValid() {
			p.File = filename
			out[i] = p
		}
	}
	return out
}
