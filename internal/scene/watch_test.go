package scene

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	ab, err := os.ReadFile("testdata/ab.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, ab, 0o644))

	plans := make(chan *Plan, 4)
	w, err := NewWatcher(path, func(p *Plan) { plans <- p }, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// The watch is registered asynchronously; keep rewriting until seen.
	edited := []byte("name: ab2\ngenerators:\n  - {name: solo, type: sequence, cues: [{at: 1, value: 60}]}\n")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case p := <-plans:
			assert.Equal(t, "ab2", p.Name)
			assert.Equal(t, []string{"solo"}, p.Names())
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, edited, 0o644))
		case <-deadline:
			t.Fatal("watcher never reloaded")
		}
	}
}

func TestWatcher_IgnoresBrokenEdits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: ok\ngenerators: []\n"), 0o644))

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(*Plan) { called <- struct{}{} }, WithDebounce(5*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("name: [\n"), 0o644))
	w.reload()
	select {
	case <-called:
		t.Fatal("broken scene should not be applied")
	default:
	}
	require.NoError(t, w.watcher.Close())
}
