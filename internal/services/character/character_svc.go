package character

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// Character is a player's sheet. Only lookups and aggregates are needed by
// the realtime core; sheet edits happen elsewhere.
type Character struct {
	ID     int64           `json:"id"`
	UserID int64           `json:"userId"`
	Name   string          `json:"name"`
	Data   json.RawMessage `json:"data"`
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Get returns the character, or nil when it does not exist.
func (svc *Service) Get(ctx context.Context, id int64) (*Character, error) {
	const q = `SELECT id, user_id, name, data FROM characters WHERE id = $1`
	ch := &Character{}
	err := svc.db.QueryRowContext(ctx, q, id).
		Scan(&ch.ID, &ch.UserID, &ch.Name, &ch.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (svc *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := svc.db.QueryRowContext(ctx, `SELECT count(*) FROM characters`).Scan(&n)
	return n, err
}

func (svc *Service) CountForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := svc.db.QueryRowContext(ctx,
		`SELECT count(*) FROM characters WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
