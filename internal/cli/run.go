package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/stochos/internal/dispatch"
	"github.com/roach88/stochos/internal/engine"
	"github.com/roach88/stochos/internal/metrics"
	"github.com/roach88/stochos/internal/scene"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Duration    time.Duration
	Output      string
	MIDI        bool
	Watch       bool
	CollectAll  bool
	MetricsAddr string
	QueueCap    int
	Tick        time.Duration

	// IDGenerator overrides session ids (for testing). Defaults to UUIDv7.
	IDGenerator engine.IDGenerator

	// TimeSource overrides the wall clock (for testing).
	TimeSource dispatch.TimeSource
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scene-file>",
		Short: "Play a scene in real time",
		Long: `Start the real-time engine on a scene. Generators are merged into one
stream and events are delivered when their time comes: as text lines, or
as raw MIDI bytes with --midi.

With --watch the scene file is reloaded on change and the running scene is
updated in place: unchanged generators keep their state.

Examples:
  stochos run scene.yaml
  stochos run scene.yaml --duration 30s --watch
  stochos run scene.yaml --midi --out /dev/snd/midiC1D0
  stochos run scene.yaml --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 0, "stop after this long (default: until interrupted)")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "-", "output file or device (- for stdout)")
	cmd.Flags().BoolVar(&opts.MIDI, "midi", false, "write raw MIDI bytes instead of text lines")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "reload the scene when the file changes")
	cmd.Flags().BoolVar(&opts.CollectAll, "collect-all", false, "skip generators that fail to build instead of aborting")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().IntVar(&opts.QueueCap, "queue-cap", dispatch.DefaultQueueCap, "dispatch queue capacity")
	cmd.Flags().DurationVar(&opts.Tick, "tick", engine.DefaultTick, "engine tick interval")

	return cmd
}

func runEngine(opts *RunOptions, path string, cmd *cobra.Command) error {
	mode := scene.LoadModeFailFast
	if opts.CollectAll {
		mode = scene.LoadModeCollectAll
	}
	_, plan, problems, err := loadScene(path, mode)
	if err != nil {
		return err
	}
	for _, p := range problems {
		slog.Warn("generator skipped", "problem", p.String())
	}

	out, closeOut, err := openOutput(opts.Output, cmd.OutOrStdout())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open output", err)
	}
	defer closeOut()

	var transport dispatch.Transport = dispatch.NewWriterTransport(out)
	if opts.MIDI {
		transport = dispatch.NewMIDITransport(out)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	clock := opts.TimeSource
	if clock == nil {
		clock = dispatch.NewWallClock()
	}
	queue := dispatch.NewQueue(opts.QueueCap)

	engineOpts := []engine.Option{
		engine.WithTimeSource(clock),
		engine.WithMetrics(m),
		engine.WithTick(opts.Tick),
	}
	if opts.IDGenerator != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	eng, err := engine.New(plan, queue, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	disp := dispatch.NewDispatcher(queue, transport, dispatch.WithTimeSource(clock), dispatch.WithMetrics(m))

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return disp.Run(gctx) })

	if opts.Watch {
		w, err := scene.NewWatcher(path, func(p *scene.Plan) {
			if err := eng.ReplaceScene(gctx, p); err != nil {
				slog.Error("scene update rejected", "scene", p.Name, "error", err)
			}
		}, scene.WithLoadMode(mode))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to watch scene", err)
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	if opts.MetricsAddr != "" {
		ln, err := net.Listen("tcp", opts.MetricsAddr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen for metrics", err)
		}
		srv := &http.Server{
			Handler:           metricsHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		slog.Info("serving metrics", "addr", ln.Addr().String())
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	slog.Info("scene playing", "scene", plan.Name, "session", eng.Session(), "generators", len(plan.Generators))

	err = g.Wait()
	st, ds := eng.Stats(), disp.Stats()
	slog.Info("engine stopped",
		"session", st.Session,
		"emitted", st.Emitted,
		"evicted", st.Evicted,
		"sent", ds.Sent,
		"failed", ds.Failed,
		"dropped", ds.Dropped,
	)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	return nil
}

// metricsHandler serves the registry at /metrics.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// openOutput returns the writer for path; "-" is the command's stdout.
func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("error closing output", "path", path, "error", err)
		}
	}, nil
}
