package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/stochos/internal/gen"
	"github.com/roach88/stochos/internal/render"
	"github.com/roach88/stochos/internal/scene"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestScene creates a small scripted scene.
func createTestScene(name string) *scene.Scene {
	return &scene.Scene{
		Name: name,
		Seed: 7,
		Generators: []scene.GeneratorConfig{
			{Name: "A", Type: scene.TypeSequence, Cues: []gen.Cue{{At: 0.1, Value: 60}, {At: 0.3, Value: 62}}},
			{Name: "B", Type: scene.TypeSequence, Cues: []gen.Cue{{At: 0.2, Value: 48, Velocity: 80, Duration: 0.5}}},
		},
	}
}

// loadTestScene loads a scene file from testdata.
func loadTestScene(t *testing.T, name string) *scene.Scene {
	t.Helper()
	sc, _, err := scene.LoadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("LoadFile(%s) failed: %v", name, err)
	}
	return sc
}

// renderTestScene renders sc for duration seconds.
func renderTestScene(t *testing.T, sc *scene.Scene, duration float64) *render.Result {
	t.Helper()
	res, err := render.Scene(sc, duration)
	if err != nil {
		t.Fatalf("render.Scene() failed: %v", err)
	}
	return res
}
