package scene

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last change
// before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a scene file when it changes and hands the new plan to
// a callback.
//
// The containing directory is watched rather than the file, so editors
// that save by rename are seen. A file that fails to load or build is
// logged and ignored; the previous plan stays in effect.
type Watcher struct {
	path     string
	mode     LoadMode
	debounce time.Duration
	onChange func(*Plan)
	watcher  *fsnotify.Watcher
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithLoadMode sets the build mode used on reload. Defaults to
// LoadModeFailFast, so a partly broken edit is never applied.
func WithLoadMode(m LoadMode) WatchOption {
	return func(w *Watcher) { w.mode = m }
}

// NewWatcher creates a watcher for the scene at path.
func NewWatcher(path string, onChange func(*Plan), opts ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		mode:     LoadModeFailFast,
		debounce: DefaultDebounce,
		onChange: onChange,
		watcher:  fw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled. It closes the underlying watcher on
// return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Debug("watching scene", "path", w.path)

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			slog.Debug("scene watcher stopping")
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			fire = time.After(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("scene watcher error", "error", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	plan, errs := LoadPlan(w.path, w.mode)
	if plan == nil || (w.mode == LoadModeFailFast && len(errs) > 0) {
		for _, err := range errs {
			slog.Error("scene reload failed", "path", w.path, "error", err)
		}
		return
	}
	for _, err := range errs {
		slog.Warn("scene reload skipped generator", "path", w.path, "error", err)
	}
	slog.Info("scene reloaded", "path", w.path, "scene", plan.Name, "generators", len(plan.Generators))
	if w.onChange != nil {
		w.onChange(plan)
	}
}
