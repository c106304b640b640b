package mafia

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// keepOrder leaves the sequence untouched, so AssignRoles pops the last
// joined player as mafia, the one before as doctor, and so on.
type keepOrder struct{}

func (keepOrder) Shuffle(int, func(i, j int)) {}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs every due, unstopped timer on the
// calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

// pending returns the timers that have neither fired nor been stopped.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// last returns the most recently armed timer, stopped or not.
func (c *fakeClock) last() *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[len(c.timers)-1]
}

type recorder struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *recorder) Notify(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *recorder) kinds() []game.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]game.EventKind, 0, len(r.envs))
	for _, env := range r.envs {
		out = append(out, env.Event.Kind)
	}
	return out
}

func (r *recorder) find(kind game.EventKind) (Envelope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, env := range r.envs {
		if env.Event.Kind == kind {
			return env, true
		}
	}
	return Envelope{}, false
}

// startedSession returns a session in its first night with players 1..n.
func startedSession(t *testing.T, n int) *Session {
	t.Helper()
	s := newSession(42, time.Now(), zap.NewNop())
	for id := int64(1); id <= int64(n); id++ {
		require.NoError(t, s.join(id, DefaultMaxPlayers))
	}
	require.NoError(t, s.start(keepOrder{}))
	return s
}

// daySession returns a session in its first day after a quiet night.
func daySession(t *testing.T, n int) *Session {
	t.Helper()
	s := startedSession(t, n)
	out := s.resolveNight()
	require.True(t, out.Applied)
	require.Equal(t, game.PhaseDay, s.phase)
	return s
}

func roleOf(s *Session, kind game.RoleKind) *Role {
	for _, role := range s.roster {
		if role != nil && role.Kind == kind {
			return role
		}
	}
	return nil
}
