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

// SaveScene stores a scene and returns its id, the scene hash.
// Uses ON CONFLICT(id) DO NOTHING: saving the same scene twice is a no-op.
func (s *Store) SaveScene(ctx context.Context, sc *scene.Scene) (string, error) {
	if sc == nil {
		return "", errors.New("save scene: nil scene")
	}
	config, err := json.Marshal(sc)
	if err != nil {
		return "", fmt.Errorf("save scene: %w", err)
	}
	id := ir.SceneHash(config)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scenes (id, name, seed, config)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, sc.Name, int64(sc.Seed), string(config))
	if err != nil {
		return "", fmt.Errorf("save scene: %w", err)
	}
	return id, nil
}

// WriteRender stores a render and its events in one transaction.
//
// r.EventCount is taken from events. Events must be in seq order; the
// (render_id, seq) key rejects duplicates.
func (s *Store) WriteRender(ctx context.Context, r Render, events []ir.Event) (err error) {
	if r.ID == "" {
		return errors.New("write render: empty id")
	}
	evicted, err := json.Marshal(nonNil(r.Evicted))
	if err != nil {
		return fmt.Errorf("write render: %w", err)
	}
	if r.EngineVersion == "" {
		r.EngineVersion = ir.EngineVersion
	}
	if r.IRVersion == "" {
		r.IRVersion = ir.IRVersion
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write render: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO renders
		(id, scene_id, duration_us, stream_hash, event_count, evicted, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.SceneID,
		ir.Micros(r.Duration),
		r.StreamHash,
		len(events),
		string(evicted),
		r.EngineVersion,
		r.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write render: %w", err)
	}

	if err = insertEvents(ctx, tx, r.ID, events); err != nil {
		return fmt.Errorf("write render: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write render: %w", err)
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, renderID string, events []ir.Event) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(render_id, seq, t_us, local_us, generator, kind, value, velocity, duration_us, channel, symbol)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.ExecContext(ctx,
			renderID,
			ev.Seq,
			ir.Micros(ev.Timestamp),
			ir.Micros(ev.Local),
			ev.Generator,
			string(ev.Kind),
			ev.Value,
			ev.Velocity,
			ir.Micros(ev.Duration),
			ev.Channel,
			ev.Symbol,
		)
		if err != nil {
			return fmt.Errorf("insert event seq=%d: %w", ev.Seq, err)
		}
	}
	return nil
}

// DeleteRender removes a render and its events. Returns ErrNotFound if
// the render does not exist.
func (s *Store) DeleteRender(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM renders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete render: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete render: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete render %s: %w", id, ErrNotFound)
	}
	return nil
}

func nonNil(names []string) []string {
	if names == nil {
		return []string{}
	}
	return names
}
