package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stochos/internal/dist"
	"github.com/roach88/stochos/internal/markov"
	"github.com/roach88/stochos/internal/scene"
)

// MarkovOptions holds flags for the markov command.
type MarkovOptions struct {
	*RootOptions
	Scene     string
	Generator string
	Walk      int
	Seed      uint64
}

// MarkovState is one state of the markov command's output.
type MarkovState struct {
	Symbol     string           `json:"symbol"`
	Stationary float64          `json:"stationary"`
	Material   *markov.Material `json:"material,omitempty"`
}

// MarkovResult is the markov command's output.
type MarkovResult struct {
	Chain   string        `json:"chain"`
	Initial string        `json:"initial"`
	States  []MarkovState `json:"states"`
	Walk    []string      `json:"walk,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// NewMarkovCommand creates the markov command.
func NewMarkovCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MarkovOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "markov",
		Short: "Inspect a Markov chain",
		Long: `Print the long-run (stationary) distribution of a Markov chain and the
material attached to each state, optionally followed by a random walk.

Without --scene the built-in Analogique A screen chain is shown. With
--scene and --generator the chain of that markov generator is shown.

Examples:
  stochos markov
  stochos markov --walk 16 --seed 7
  stochos markov --scene scene.yaml --generator screens --walk 32`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMarkov(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Scene, "scene", "", "scene file holding the chain")
	cmd.Flags().StringVar(&opts.Generator, "generator", "", "markov generator within --scene")
	cmd.Flags().IntVar(&opts.Walk, "walk", 0, "number of random steps to take")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "seed for the walk")

	return cmd
}

func runMarkov(opts *MarkovOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Walk < 0 {
		return NewExitError(ExitCommandError, "--walk must not be negative")
	}

	chain, model, materials, err := markovChain(opts)
	if err != nil {
		return err
	}

	result := MarkovResult{Chain: chain, Initial: model.Current()}
	pi := model.Stationary()
	for _, sym := range model.States() {
		st := MarkovState{Symbol: sym, Stationary: pi[sym]}
		if mat, ok := materials[sym]; ok {
			st.Material = &mat
		}
		result.States = append(result.States, st)
	}
	if opts.Walk > 0 {
		walk, _, werr := model.Walk(opts.Walk, dist.NewRNG(opts.Seed))
		result.Walk = walk
		if werr != nil {
			result.Error = werr.Error()
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "chain: %s (%d states, initial %s)\n\n", result.Chain, len(result.States), result.Initial)
	fmt.Fprintf(w, "%-8s %-10s %-9s %-9s %s\n", "state", "stationary", "pitch", "velocity", "density")
	for _, st := range result.States {
		pitch, vel, density := "-", "-", "-"
		if st.Material != nil {
			pitch = fmt.Sprintf("%d-%d", st.Material.Pitch.Low, st.Material.Pitch.High)
			vel = fmt.Sprintf("%d-%d", st.Material.Velocity.Low, st.Material.Velocity.High)
			density = fmt.Sprintf("%g/s", st.Material.Density)
		}
		fmt.Fprintf(w, "%-8s %-10.6f %-9s %-9s %s\n", st.Symbol, st.Stationary, pitch, vel, density)
	}
	if len(result.Walk) > 0 {
		fmt.Fprintf(w, "\nwalk: %s\n", strings.Join(result.Walk, " "))
	}
	if result.Error != "" {
		fmt.Fprintf(w, "walk stopped: %s\n", result.Error)
	}
	return nil
}

// markovChain returns the chain selected by the flags: the Analogique A
// preset, or the markov config of one generator of a scene.
func markovChain(opts *MarkovOptions) (string, *markov.Model, map[string]markov.Material, error) {
	if opts.Scene == "" {
		if opts.Generator != "" {
			return "", nil, nil, NewExitError(ExitCommandError, "--generator requires --scene")
		}
		m, materials := markov.AnalogiqueA()
		return markov.PresetAnalogiqueA, m, materials, nil
	}
	if opts.Generator == "" {
		return "", nil, nil, NewExitError(ExitCommandError, "--scene requires --generator")
	}

	s, _, err := scene.LoadFile(opts.Scene)
	if err != nil {
		return "", nil, nil, loadExitError(err)
	}
	for _, g := range s.Generators {
		if g.Name != opts.Generator {
			continue
		}
		if g.Type != scene.TypeMarkov || g.Markov == nil {
			return "", nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("generator %q is not a markov generator", g.Name))
		}
		m, materials, err := g.Markov.Build()
		if err != nil {
			return "", nil, nil, WrapExitError(ExitFailure, fmt.Sprintf("generator %q", g.Name), err)
		}
		return s.Name + "/" + g.Name, m, materials, nil
	}
	return "", nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("generator %q not found in %s", opts.Generator, opts.Scene))
}
