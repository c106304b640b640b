package profile

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-memory map, suitable for a single
// process without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[int64]Profile
	now   func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[int64]Profile), now: time.Now}
}

// Upsert creates the profile or refreshes its name.
func (s *MemoryStore) Upsert(_ context.Context, playerID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.items[playerID]
	p.PlayerID = playerID
	if name = strings.TrimSpace(name); name != "" {
		p.Name = name
	}
	p.UpdatedAt = s.now()
	s.items[playerID] = p
	return nil
}

// RecordGame counts one finished game for the player.
func (s *MemoryStore) RecordGame(_ context.Context, playerID int64, won bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[playerID]
	if !ok {
		return ErrNotFound
	}
	p.GamesPlayed++
	if won {
		p.GamesWon++
	}
	p.UpdatedAt = s.now()
	s.items[playerID] = p
	return nil
}

// DisplayName returns the stored name of the player.
func (s *MemoryStore) DisplayName(_ context.Context, playerID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[playerID]
	if !ok || p.Name == "" {
		return "", ErrNotFound
	}
	return p.Name, nil
}

// FindByID looks up a profile by player id.
func (s *MemoryStore) FindByID(_ context.Context, playerID int64) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[playerID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}
