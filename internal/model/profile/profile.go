package profile

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no profile exists for a player.
var ErrNotFound = errors.New("profile not found")

// Profile is the long-lived identity of a player across games.
type Profile struct {
	PlayerID    int64     `json:"playerId"`
	Name        string    `json:"name"`
	GamesPlayed int       `json:"gamesPlayed"`
	GamesWon    int       `json:"gamesWon"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store keeps player names and finished-game statistics.
type Store interface {
	Upsert(ctx context.Context, playerID int64, name string) error
	RecordGame(ctx context.Context, playerID int64, won bool) error
	DisplayName(ctx context.Context, playerID int64) (string, error)
	FindByID(ctx context.Context, playerID int64) (Profile, error)
}
