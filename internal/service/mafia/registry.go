package mafia

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry maps session keys to the live Session for that key. Its lock only
// guards the map; it is never held while a session lock is acquired.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[int64]*Session),
		logger:   logger,
	}
}

// Create registers a new waiting session for key.
func (r *Registry) Create(key int64, now time.Time) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[key]; exists {
		return nil, ErrAlreadyExists
	}
	s := newSession(key, now, r.logger)
	r.sessions[key] = s
	return s, nil
}

// Get returns the current session for key.
func (r *Registry) Get(key int64) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove deletes key only while s is still the session registered under it,
// so a stale reference cannot evict a newer game.
func (r *Registry) Remove(key int64, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[key]; ok && current == s {
		delete(r.sessions, key)
		return true
	}
	return false
}

// List returns the registered sessions in no particular order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
