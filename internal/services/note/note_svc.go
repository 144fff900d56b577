package note

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cthunline/cthunline-api-sub001/internal/apperr"
	"github.com/cthunline/cthunline-api-sub001/internal/cache"
)

// Note is a collaborative document. Shared notes are rebroadcast to the
// room on edit; cached under "note-<id>" while edit traffic is active.
type Note struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"userId"`
	SessionID int64  `json:"sessionId"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Shared    bool   `json:"shared"`
}

const noteKind = "note"

type Service struct {
	db    *sql.DB
	cache *cache.Cache
}

func NewService(db *sql.DB, c *cache.Cache) *Service {
	return &Service{db: db, cache: c}
}

// Get returns the note, or nil when it does not exist.
func (svc *Service) Get(ctx context.Context, id int64) (*Note, error) {
	const q = `SELECT id, user_id, session_id, title, text, shared
	             FROM notes WHERE id = $1`
	n := &Note{}
	err := svc.db.QueryRowContext(ctx, q, id).
		Scan(&n.ID, &n.UserID, &n.SessionID, &n.Title, &n.Text, &n.Shared)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// CachedGet reads the note through the cache. Absence is reported as a
// not-found error and never cached.
func (svc *Service) CachedGet(ctx context.Context, id int64) (*Note, error) {
	return cache.GetOrLoad(ctx, svc.cache, cache.Key(noteKind, id),
		func(ctx context.Context) (*Note, error) {
			n, err := svc.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			if n == nil {
				return nil, apperr.NotFound("note %d not found", id)
			}
			return n, nil
		})
}

// ListForSession returns the caller's own notes plus every shared note of
// the session.
func (svc *Service) ListForSession(ctx context.Context, sessionID, userID int64) ([]Note, error) {
	const q = `SELECT id, user_id, session_id, title, text, shared
	             FROM notes
	            WHERE session_id = $1 AND (user_id = $2 OR shared)
	            ORDER BY id`
	rows, err := svc.db.QueryContext(ctx, q, sessionID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.SessionID, &n.Title, &n.Text, &n.Shared); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (svc *Service) Create(ctx context.Context, n *Note) (*Note, error) {
	const q = `INSERT INTO notes (user_id, session_id, title, text, shared)
	                VALUES ($1, $2, $3, $4, $5)
	             RETURNING id`
	err := svc.db.QueryRowContext(ctx, q, n.UserID, n.SessionID, n.Title, n.Text, n.Shared).
		Scan(&n.ID)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Update writes the note to storage, then refreshes the cache entry when
// one exists. Last write wins at both layers.
func (svc *Service) Update(ctx context.Context, n *Note) error {
	res, err := svc.db.ExecContext(ctx,
		`UPDATE notes SET title = $2, text = $3, shared = $4 WHERE id = $1`,
		n.ID, n.Title, n.Text, n.Shared)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	svc.cache.UpdateIfPresent(ctx, cache.Key(noteKind, n.ID), n)
	return nil
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	if _, err := svc.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id); err != nil {
		return err
	}
	svc.cache.Invalidate(ctx, cache.Key(noteKind, id))
	return nil
}
