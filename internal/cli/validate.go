package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stochos/internal/scene"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool      `json:"valid"`
	Scene      string    `json:"scene,omitempty"`
	Hash       string    `json:"hash,omitempty"`
	Generators []string  `json:"generators,omitempty"`
	Errors     []Problem `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene-file>",
		Short: "Check a scene file without running it",
		Long: `Load a YAML or CUE scene, check it against the schema and build every
generator, reporting all errors at once with their codes and positions.

Exit codes:
  0 - Scene is valid
  1 - Scene has errors
  2 - Command error (file not found, unsupported format)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, _, err := scene.LoadFile(path)
	if err != nil {
		var le *scene.LoadError
		if errors.As(err, &le) && isCommandLevel(le.Code) {
			_ = formatter.Error(le.Code, le.Message, nil)
			return WrapExitError(ExitCommandError, "failed to load scene", err)
		}
		return outputValidationErrors(formatter, problemsOf([]error{err}))
	}
	formatter.VerboseLog("loaded scene %q with %d generator(s)", s.Name, len(s.Generators))

	plan, errs := scene.Build(s, scene.LoadModeCollectAll)
	if len(errs) > 0 {
		return outputValidationErrors(formatter, problemsOf(errs))
	}

	result := ValidationResult{Valid: true, Scene: plan.Name, Hash: plan.Hash, Generators: plan.Names()}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Scene %q valid (%d generators)\n", result.Scene, len(result.Generators))
	return nil
}

// isCommandLevel reports whether a load error means the file could not be
// read at all, as opposed to a file with bad content.
func isCommandLevel(code string) bool {
	switch code {
	case scene.ErrCodeNotFound, scene.ErrCodeReadFailed, scene.ErrCodeFormat:
		return true
	}
	return false
}

func outputValidationErrors(formatter *OutputFormatter, problems []Problem) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(problems)))

	if formatter.Format == "json" {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: problems},
			Error:  &CLIError{Code: problems[0].Code, Message: problems[0].Message},
		})
		if err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, p := range problems {
		fmt.Fprintf(formatter.Writer, "  %s\n", p)
	}
	return failure
}
