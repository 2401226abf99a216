package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/stochos/internal/engine"
	"github.com/roach88/stochos/internal/render"
	"github.com/roach88/stochos/internal/scene"
	"github.com/roach88/stochos/internal/store"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Duration   float64
	Database   string
	ID         string
	CollectAll bool
	MaxEvents  int

	// IDGenerator overrides render ids (for testing). Defaults to UUIDv7.
	IDGenerator engine.IDGenerator
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <scene-file>",
		Short: "Render a scene offline",
		Long: `Render the first --duration seconds of a scene without real-time pacing
and print the merged event stream. The result is deterministic: the same
scene always renders the same stream.

With --db the scene and the rendered stream are stored so that replay can
verify them later.

Examples:
  stochos render scene.yaml --duration 30
  stochos render scene.cue --duration 8 --format json
  stochos render scene.yaml --duration 60 --db ./stochos.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64VarP(&opts.Duration, "duration", "d", 10, "seconds of output time to render")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store the render in this SQLite database")
	cmd.Flags().StringVar(&opts.ID, "id", "", "render id (default: a new UUIDv7)")
	cmd.Flags().BoolVar(&opts.CollectAll, "collect-all", false, "skip generators that fail to build instead of aborting")
	cmd.Flags().IntVar(&opts.MaxEvents, "max-events", render.DefaultMaxEvents, "abort when the stream exceeds this many events")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Duration <= 0 {
		return NewExitError(ExitCommandError, "--duration must be positive")
	}

	mode := scene.LoadModeFailFast
	if opts.CollectAll {
		mode = scene.LoadModeCollectAll
	}
	sc, plan, problems, err := loadScene(path, mode)
	if err != nil {
		return err
	}
	for _, p := range problems {
		slog.Warn("generator skipped", "problem", p.String())
	}

	res, err := render.Offline(plan, opts.Duration, render.WithMaxEvents(opts.MaxEvents))
	if err != nil {
		return WrapExitError(ExitFailure, "render failed", err)
	}
	formatter.VerboseLog("rendered %d event(s) from %q, stream %s", len(res.Events), res.Scene, res.StreamHash)

	extra := map[string]any{
		"scene":       res.Scene,
		"scene_hash":  res.SceneHash,
		"stream_hash": res.StreamHash,
		"evicted":     res.Evicted(),
	}
	if opts.Database != "" {
		id, err := recordRender(cmd.Context(), opts, sc, res)
		if err != nil {
			return err
		}
		extra["render_id"] = id
		slog.Info("render stored", "db", opts.Database, "render_id", id, "events", len(res.Events))
	}
	return formatter.Events(res.Events, extra)
}

func recordRender(ctx context.Context, opts *RenderOptions, sc *scene.Scene, res *render.Result) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	id := opts.ID
	if id == "" {
		gen := opts.IDGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		id = gen.Generate()
	}
	if _, err := st.Record(ctx, sc, res, id); err != nil {
		return "", WrapExitError(ExitCommandError, "failed to store render", err)
	}
	return id, nil
}
