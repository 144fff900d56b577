package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/cthunline/cthunline-api-sub001/internal/cache"
)

// Session is a running table. The sketch blob is the master-controlled
// shared drawing board, cached under "sketch-<id>" while a room is active.
type Session struct {
	ID       int64           `json:"id"`
	GameID   string          `json:"gameId"`
	Name     string          `json:"name"`
	MasterID int64           `json:"masterId"`
	Sketch   json.RawMessage `json:"sketch"`
}

const sketchKind = "sketch"

type Service struct {
	db    *sql.DB
	cache *cache.Cache
}

func NewService(db *sql.DB, c *cache.Cache) *Service {
	return &Service{db: db, cache: c}
}

// Get returns the session, or nil when it does not exist.
func (svc *Service) Get(ctx context.Context, id int64) (*Session, error) {
	const q = `SELECT id, game_id, name, master_id, sketch
	             FROM sessions WHERE id = $1`
	s := &Session{}
	err := svc.db.QueryRowContext(ctx, q, id).
		Scan(&s.ID, &s.GameID, &s.Name, &s.MasterID, &s.Sketch)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (svc *Service) List(ctx context.Context) ([]Session, error) {
	const q = `SELECT id, game_id, name, master_id, sketch
	             FROM sessions ORDER BY id DESC`
	rows, err := svc.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.GameID, &s.Name, &s.MasterID, &s.Sketch); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (svc *Service) Create(ctx context.Context, gameID, name string, masterID int64) (*Session, error) {
	const q = `INSERT INTO sessions (game_id, name, master_id, sketch)
	                VALUES ($1, $2, $3, '{}')
	             RETURNING id`
	s := &Session{GameID: gameID, Name: name, MasterID: masterID, Sketch: json.RawMessage(`{}`)}
	if err := svc.db.QueryRowContext(ctx, q, gameID, name, masterID).Scan(&s.ID); err != nil {
		return nil, err
	}
	return s, nil
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	if _, err := svc.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return err
	}
	svc.cache.Invalidate(ctx, cache.Key(sketchKind, id))
	return nil
}

// UpdateSketch writes the sketch to storage, then refreshes the cache entry
// when collaborative traffic already populated one. Last write wins at both
// layers; concurrent edits are not merged.
func (svc *Service) UpdateSketch(ctx context.Context, id int64, sketch json.RawMessage) error {
	res, err := svc.db.ExecContext(ctx,
		`UPDATE sessions SET sketch = $2 WHERE id = $1`, id, sketch)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	svc.cache.UpdateIfPresent(ctx, cache.Key(sketchKind, id), sketch)
	return nil
}

// CachedSketch reads the sketch through the cache, loading from storage on
// first touch.
func (svc *Service) CachedSketch(ctx context.Context, id int64) (json.RawMessage, error) {
	return cache.GetOrLoad(ctx, svc.cache, cache.Key(sketchKind, id),
		func(ctx context.Context) (json.RawMessage, error) {
			var sketch json.RawMessage
			err := svc.db.QueryRowContext(ctx,
				`SELECT sketch FROM sessions WHERE id = $1`, id).Scan(&sketch)
			if err != nil {
				return nil, err
			}
			return sketch, nil
		})
}

// Count is the storage aggregate behind the totalSessions statistic.
func (svc *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := svc.db.QueryRowContext(ctx, `SELECT count(*) FROM sessions`).Scan(&n)
	return n, err
}
