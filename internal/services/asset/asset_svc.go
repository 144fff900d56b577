package asset

import (
	"context"
	"database/sql"
	"errors"
)

const (
	KindAudio = "audio"
	KindImage = "image"
)

// Asset is an uploaded file reference. Upload handling lives elsewhere;
// the realtime core only reads assets to authorize audio cues.
type Asset struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Path   string `json:"path"`
}

type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Get returns the asset, or nil when it does not exist.
func (svc *Service) Get(ctx context.Context, id int64) (*Asset, error) {
	const q = `SELECT id, user_id, name, kind, path FROM assets WHERE id = $1`
	a := &Asset{}
	err := svc.db.QueryRowContext(ctx, q, id).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Kind, &a.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
