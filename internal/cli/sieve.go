package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stochos/internal/scene"
	"github.com/roach88/stochos/internal/sieve"
)

// SieveOptions holds flags for the sieve command.
type SieveOptions struct {
	*RootOptions
	Formula string
	From    int
	To      int // exclusive; 0 means one period from From
	Shift   int
}

// SieveResult is the sieve command's output.
type SieveResult struct {
	Formula string `json:"formula"`
	Period  int    `json:"period"`
	From    int    `json:"from"`
	To      int    `json:"to"`
	Values  []int  `json:"values"`
}

// NewSieveCommand creates the sieve command.
func NewSieveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SieveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sieve [formula]",
		Short: "Evaluate a sieve formula",
		Long: `Parse a sieve in text notation and list the integers it accepts in
[--from, --to). Without --to one full period is listed.

Notation: m@r atoms, | union, & intersection, prefix - complement,
parentheses, and {} for the empty sieve. A formula that starts with a
complement looks like a flag: pass it after -- or with --formula.

Examples:
  stochos sieve "3@0 | 5@0"
  stochos sieve "(8@0 | 8@3) & -4@0" --from 36 --to 96
  stochos sieve "12@0 | 12@4 | 12@7" --shift 2
  stochos sieve --to 12 -- "-3@0"
  stochos sieve --formula=-3@0`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := sieveFormula(opts, args)
			if err != nil {
				return err
			}
			return runSieve(opts, text, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Formula, "formula", "f", "", "sieve formula (instead of the argument)")
	cmd.Flags().IntVar(&opts.From, "from", 0, "first integer to test")
	cmd.Flags().IntVar(&opts.To, "to", 0, "end of the range, exclusive (default: one period)")
	cmd.Flags().IntVar(&opts.Shift, "shift", 0, "transpose the sieve by k (accept n when the formula accepts n-k)")

	return cmd
}

func runSieve(opts *SieveOptions, text string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := sieve.BuildString(text)
	if err != nil {
		_ = formatter.Error(scene.ErrCodeSieve, err.Error(), nil)
		return WrapExitError(ExitFailure, "invalid sieve", err)
	}
	s = sieve.Shift(s, opts.Shift)

	to := opts.To
	if to == 0 {
		to = opts.From + s.Period()
	}
	if to < opts.From {
		return NewExitError(ExitCommandError, fmt.Sprintf("--to %d is below --from %d", to, opts.From))
	}

	result := SieveResult{
		Formula: s.String(),
		Period:  s.Period(),
		From:    opts.From,
		To:      to,
		Values:  sieve.Collect(s, opts.From, to),
	}
	if result.Values == nil {
		result.Values = []int{}
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "sieve:  %s\n", result.Formula)
	fmt.Fprintf(w, "period: %d\n", result.Period)
	fmt.Fprintf(w, "[%d, %d): %s\n", result.From, result.To, joinInts(result.Values))
	return nil
}

// sieveFormula takes the formula from the argument or --formula, not both.
func sieveFormula(opts *SieveOptions, args []string) (string, error) {
	switch {
	case len(args) == 1 && opts.Formula != "":
		return "", NewExitError(ExitCommandError, "give the formula as an argument or with --formula, not both")
	case len(args) == 1:
		return args[0], nil
	case opts.Formula != "":
		return opts.Formula, nil
	}
	return "", NewExitError(ExitCommandError, "a sieve formula is required")
}

func joinInts(vs []int) string {
	if len(vs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}
