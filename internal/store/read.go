package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/stochos/internal/ir"
	"github.com/roach88/stochos/internal/scene"
)

// GetScene returns a stored scene by id.
func (s *Store) GetScene(ctx context.Context, id string) (*scene.Scene, error) {
	var config string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM scenes WHERE id = ?`, id).Scan(&config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scene %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}

	var sc scene.Scene
	if err := json.Unmarshal([]byte(config), &sc); err != nil {
		return nil, fmt.Errorf("get scene %s: decode: %w", id, err)
	}
	return &sc, nil
}

// ListScenes returns every stored scene ordered by name, then id.
func (s *Store) ListScenes(ctx context.Context) ([]SceneRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, seed FROM scenes
		ORDER BY name COLLATE BINARY ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()

	scenes := []SceneRecord{}
	for rows.Next() {
		var rec SceneRecord
		var seed int64
		if err := rows.Scan(&rec.ID, &rec.Name, &seed); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		rec.Seed = uint64(seed)
		scenes = append(scenes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}
	return scenes, nil
}

// GetRender returns a stored render by id.
func (s *Store) GetRender(ctx context.Context, id string) (Render, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scene_id, duration_us, stream_hash, event_count, evicted, engine_version, ir_version
		FROM renders WHERE id = ?
	`, id)
	r, err := scanRender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Render{}, fmt.Errorf("render %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Render{}, fmt.Errorf("get render: %w", err)
	}
	return r, nil
}

// ListRenders returns renders ordered by id (creation order for UUIDv7
// ids). An empty sceneID lists every render.
func (s *Store) ListRenders(ctx context.Context, sceneID string) ([]Render, error) {
	query := `
		SELECT id, scene_id, duration_us, stream_hash, event_count, evicted, engine_version, ir_version
		FROM renders`
	var args []any
	if sceneID != "" {
		query += ` WHERE scene_id = ?`
		args = append(args, sceneID)
	}
	query += ` ORDER BY id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query renders: %w", err)
	}
	defer rows.Close()

	renders := []Render{}
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, err
		}
		renders = append(renders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate renders: %w", err)
	}
	return renders, nil
}

// ReadEvents returns a render's events ordered by seq.
// Returns an empty slice (not nil) if the render has no events.
func (s *Store) ReadEvents(ctx context.Context, renderID string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, t_us, local_us, generator, kind, value, velocity, duration_us, channel, symbol
		FROM events
		WHERE render_id = ?
		ORDER BY seq ASC
	`, renderID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var ev ir.Event
		var tUs, localUs, durUs int64
		var kind string
		err := rows.Scan(&ev.Seq, &tUs, &localUs, &ev.Generator, &kind,
			&ev.Value, &ev.Velocity, &durUs, &ev.Channel, &ev.Symbol)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = seconds(tUs)
		ev.Local = seconds(localUs)
		ev.Duration = seconds(durUs)
		ev.Kind = ir.Kind(kind)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRender(row scanner) (Render, error) {
	var r Render
	var durUs int64
	var evicted string
	err := row.Scan(&r.ID, &r.SceneID, &durUs, &r.StreamHash, &r.EventCount,
		&evicted, &r.EngineVersion, &r.IRVersion)
	if err != nil {
		return Render{}, err
	}
	r.Duration = seconds(durUs)
	if err := json.Unmarshal([]byte(evicted), &r.Evicted); err != nil {
		return Render{}, fmt.Errorf("decode evicted for render %s: %w", r.ID, err)
	}
	return r, nil
}

func seconds(us int64) float64 {
	return float64(us) / 1e6
}
