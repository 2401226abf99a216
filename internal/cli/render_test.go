package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stochos/internal/store"
)

type renderData struct {
	Events     []map[string]any `json:"events"`
	Scene      string           `json:"scene"`
	StreamHash string           `json:"stream_hash"`
	Evicted    []string         `json:"evicted"`
	RenderID   string           `json:"render_id"`
}

func TestRender_Text(t *testing.T) {
	out, err := execute(t, "render", abScene, "--duration", "1")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "[   0.1000] A            note    ch=00 value=060 vel=100 dur=0.250s", lines[0])
	assert.Contains(t, lines[1], "] B ")
	assert.Contains(t, lines[4], "value=064")
}

func TestRender_JSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "render", abScene, "-d", "1")
	require.NoError(t, err)

	var data renderData
	resp := decodeResponse(t, out, &data)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ab", data.Scene)
	assert.Equal(t, abStreamHash, data.StreamHash)
	assert.Empty(t, data.Evicted)
	assert.Empty(t, data.RenderID, "nothing stored without --db")
	require.Len(t, data.Events, 5)
	assert.Equal(t, float64(200000), data.Events[1]["t_us"])
	assert.Equal(t, float64(5), data.Events[4]["seq"])
}

func TestRender_DurationCutsStream(t *testing.T) {
	out, err := execute(t, "render", abScene, "--duration", "0.35")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestRender_IsDeterministic(t *testing.T) {
	first, err := execute(t, "--format", "json", "render", cloudScene, "-d", "3")
	require.NoError(t, err)
	second, err := execute(t, "--format", "json", "render", cloudScene, "-d", "3")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRender_StoresRender(t *testing.T) {
	db := filepath.Join(t.TempDir(), "stochos.db")

	out, err := execute(t, "--format", "json", "render", abScene, "-d", "1", "--db", db, "--id", "render-1")
	require.NoError(t, err)

	var data renderData
	decodeResponse(t, out, &data)
	assert.Equal(t, "render-1", data.RenderID)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	r, err := st.GetRender(context.Background(), "render-1")
	require.NoError(t, err)
	assert.Equal(t, abStreamHash, r.StreamHash)
	assert.Equal(t, 5, r.EventCount)
	assert.Equal(t, 1.0, r.Duration)
}

func TestRender_GeneratesUUIDv7IDs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "stochos.db")

	out, err := execute(t, "--format", "json", "render", abScene, "-d", "1", "--db", db)
	require.NoError(t, err)

	var data renderData
	decodeResponse(t, out, &data)
	require.Len(t, data.RenderID, 36)
	assert.Equal(t, byte('7'), data.RenderID[14], "UUID version nibble")
}

func TestRender_BrokenScene(t *testing.T) {
	_, err := execute(t, "render", brokenScene, "-d", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, "render", brokenScene, "-d", "1", "--collect-all")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 1, "only the first 'good' generator builds")
	assert.Contains(t, lines[0], "good")
	assert.Contains(t, lines[0], "value=060")
}

func TestRender_BadFlags(t *testing.T) {
	_, err := execute(t, "render", abScene, "--duration", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "render", abScene, "--max-events", "2", "-d", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
