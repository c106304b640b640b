package mafia

import (
	"time"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// Default phase timeouts.
const (
	DefaultJoinTimeout  = 120 * time.Second
	DefaultNightTimeout = 30 * time.Second
	DefaultDayTimeout   = 30 * time.Second
)

// Timer is a pending callback. Stop is best effort: a callback that already
// started running is not interrupted.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks and tells time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Timeouts holds the per-phase deadlines.
type Timeouts struct {
	Join  time.Duration
	Night time.Duration
	Day   time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Join <= 0 {
		t.Join = DefaultJoinTimeout
	}
	if t.Night <= 0 {
		t.Night = DefaultNightTimeout
	}
	if t.Day <= 0 {
		t.Day = DefaultDayTimeout
	}
	return t
}

func (t Timeouts) forPhase(p game.Phase) (time.Duration, bool) {
	switch p {
	case game.PhaseWaiting:
		return t.Join, true
	case game.PhaseNight:
		return t.Night, true
	case game.PhaseDay:
		return t.Day, true
	default:
		return 0, false
	}
}

// PhaseScheduler keeps one pending timer per session. Each timer carries the
// phase instance it was armed for; fire drops callbacks whose instance has
// already moved on, and the session's resolved flag catches the rest.
type PhaseScheduler struct {
	clock    Clock
	timeouts Timeouts
	fire     func(s *Session, seq uint64)
}

func newPhaseScheduler(clock Clock, timeouts Timeouts, fire func(s *Session, seq uint64)) *PhaseScheduler {
	return &PhaseScheduler{clock: clock, timeouts: timeouts.withDefaults(), fire: fire}
}

// arm replaces any pending timer with one for the session's current phase.
// Caller holds s.mu.
func (p *PhaseScheduler) arm(s *Session) {
	p.disarm(s)
	d, ok := p.timeouts.forPhase(s.phase)
	if !ok {
		return
	}
	seq := s.seq
	s.deadline = p.clock.Now().Add(d)
	s.timer = p.clock.AfterFunc(d, func() { p.fire(s, seq) })
}

// disarm cancels the pending timer, if any. Caller holds s.mu.
func (p *PhaseScheduler) disarm(s *Session) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deadline = time.Time{}
}
