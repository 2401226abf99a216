package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stochos/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Scene    string // optional - renders of one scene only
}

// ReplayRenderResult holds the replay result for a single render.
type ReplayRenderResult struct {
	RenderID     string `json:"render_id"`
	SceneID      string `json:"scene_id"`
	StreamHash   string `json:"stream_hash"`
	ActualHash   string `json:"actual_hash"`
	StoredEvents int    `json:"stored_events"`
	ActualEvents int    `json:"actual_events"`
	Divergence   int    `json:"divergence"`
	Match        bool   `json:"match"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Renders  []ReplayRenderResult `json:"renders"`
	Total    int                  `json:"total"`
	AllMatch bool                 `json:"all_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [render-id...]",
		Short: "Re-render stored renders and verify determinism",
		Long: `Re-render stored renders from their stored scenes and compare the
streams event by event. With no render ids every stored render is checked.

Exit codes:
  0 - Every render reproduced exactly
  1 - At least one render diverged
  2 - Command error (database not found, unknown render, etc.)

Examples:
  stochos replay --db ./stochos.db
  stochos replay --db ./stochos.db 0192f0c1-7b9e-7d4a-9c1e-2b6f3a4d5e6f
  stochos replay --db ./stochos.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "replay renders of this scene id only")

	return cmd
}

func runReplay(opts *ReplayOptions, ids []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if len(ids) == 0 {
		renders, err := st.ListRenders(ctx, opts.Scene)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list renders", err)
		}
		for _, r := range renders {
			ids = append(ids, r.ID)
		}
	}

	result := ReplayResult{
		Renders:  make([]ReplayRenderResult, 0, len(ids)),
		Total:    len(ids),
		AllMatch: true,
	}
	if len(ids) == 0 {
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintln(formatter.Writer, "No renders found in database.")
		return nil
	}

	for _, id := range ids {
		formatter.VerboseLog("replaying render %s", id)
		rr, err := st.Replay(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("render %s not found", id), err)
			}
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay render %s", id), err)
		}
		entry := ReplayRenderResult{
			RenderID:     rr.RenderID,
			SceneID:      rr.SceneID,
			StreamHash:   rr.Expected,
			ActualHash:   rr.Actual,
			StoredEvents: rr.StoredEvents,
			ActualEvents: rr.ActualEvents,
			Divergence:   rr.Divergence,
			Match:        rr.Match(),
		}
		result.Renders = append(result.Renders, entry)
		if !entry.Match {
			result.AllMatch = false
		}
	}

	if formatter.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllMatch {
		response.Status = "error"
		response.Error = &CLIError{Code: "E_DETERMINISM", Message: "replay diverged from the stored stream"}
	}
	if err := formatter.encode(response); err != nil {
		return err
	}
	if !result.AllMatch {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay Summary: %d render(s)\n", result.Total)
	fmt.Fprintln(w)

	for _, r := range result.Renders {
		status := "✓"
		if !r.Match {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Render: %s\n", status, r.RenderID)
		fmt.Fprintf(w, "  Events: %d stored, %d replayed\n", r.StoredEvents, r.ActualEvents)
		if formatter.Verbose {
			fmt.Fprintf(w, "  Scene: %s\n", r.SceneID)
			fmt.Fprintf(w, "  Stream: %s\n", r.StreamHash)
		}
		if !r.Match {
			if r.Divergence >= 0 {
				fmt.Fprintf(w, "  First divergence at event %d\n", r.Divergence)
			}
			fmt.Fprintf(w, "  Replayed stream: %s\n", r.ActualHash)
		}
		fmt.Fprintln(w)
	}

	if result.AllMatch {
		fmt.Fprintln(w, "✓ All renders verified deterministic")
		return nil
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
