package statistics

import (
	"context"
	"sync"
)

// Stats is derived on every call, never stored.
type Stats struct {
	RunningSessions     int   `json:"runningSessions"`
	TotalSessions       int64 `json:"totalSessions"`
	PlayingUsers        int   `json:"playingUsers"`
	UserCharacterCount  int64 `json:"userCharacterCount"`
	TotalCharacterCount int64 `json:"totalCharacterCount"`
}

// RoomCounter reports live room membership: distinct rooms and the sum of
// member counts across them. A user joined to two sessions counts twice.
type RoomCounter interface {
	Counts() (rooms, members int)
}

type sessionCounter interface {
	Count(ctx context.Context) (int64, error)
}

type characterCounter interface {
	Count(ctx context.Context) (int64, error)
	CountForUser(ctx context.Context, userID int64) (int64, error)
}

type Service struct {
	rooms      RoomCounter
	sessions   sessionCounter
	characters characterCounter
}

func NewService(rooms RoomCounter, sessions sessionCounter, characters characterCounter) *Service {
	return &Service{rooms: rooms, sessions: sessions, characters: characters}
}

// ComputeStats combines live membership counts with storage aggregates.
// The three storage lookups run concurrently.
func (svc *Service) ComputeStats(ctx context.Context, userID int64) (*Stats, error) {
	stats := &Stats{}
	stats.RunningSessions, stats.PlayingUsers = svc.rooms.Counts()

	var wg sync.WaitGroup
	errs := make([]error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		stats.TotalSessions, errs[0] = svc.sessions.Count(ctx)
	}()
	go func() {
		defer wg.Done()
		stats.UserCharacterCount, errs[1] = svc.characters.CountForUser(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		stats.TotalCharacterCount, errs[2] = svc.characters.Count(ctx)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return stats, nil
}
