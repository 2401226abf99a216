package scene

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is shared; validator caches struct metadata per type.
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report yaml key names so messages match what the user wrote.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks struct tags on the scene. Each violation becomes a
// LoadError with code E010; violations inside a generator carry its name
// and position.
func Validate(s *Scene) []error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{&LoadError{Code: ErrCodeValidation, Message: err.Error(), Err: err}}
	}

	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		le := &LoadError{
			Code:    ErrCodeValidation,
			Message: describe(fe),
			Err:     fe,
		}
		if i := generatorIndex(fe.Namespace()); i >= 0 && i < len(s.Generators) {
			le.Generator = s.Generators[i].Name
			le.Pos = s.positions[i]
		}
		out = append(out, le)
	}
	return out
}

func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", path)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", path, fe.Param(), fe.Value())
	case "gte", "lte", "gt", "lt":
		return fmt.Sprintf("%s must be %s %s, got %v", path, comparison[fe.Tag()], fe.Param(), fe.Value())
	case "gtefield":
		return fmt.Sprintf("%s must be >= %s, got %v", path, strings.ToLower(fe.Param()), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", path, fe.Tag())
	}
}

var comparison = map[string]string{"gte": ">=", "lte": "<=", "gt": ">", "lt": "<"}

// generatorIndex extracts i from a namespace like "Scene.generators[i].x",
// or returns -1.
func generatorIndex(ns string) int {
	_, rest, ok := strings.Cut(ns, ".generators[")
	if !ok {
		return -1
	}
	num, _, ok := strings.Cut(rest, "]")
	if !ok {
		return -1
	}
	i, err := strconv.Atoi(num)
	if err != nil {
		return -1
	}
	return i
}
