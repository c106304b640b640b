package mafia

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// Session is one game keyed by chat. All fields are guarded by mu; methods
// with a lowercase name expect the caller to hold it.
type Session struct {
	mu sync.Mutex

	key       int64
	createdAt time.Time
	log       *zap.Logger

	phase    game.Phase
	round    int
	roster   map[int64]*Role // nil roles while waiting
	aliveIDs []int64         // join order
	deadIDs  []int64         // death order
	votes    map[int64]int64

	timer    Timer
	deadline time.Time
	seq      uint64 // phase instance, bumped on every transition
	resolved bool   // guard for the current phase instance
	closed   bool   // removed from the registry

	outbox []Envelope
	result *gameResult
}

type gameResult struct {
	winner game.Winner
	roles  map[int64]game.RoleKind
}

func newSession(key int64, now time.Time, logger *zap.Logger) *Session {
	return &Session{
		key:       key,
		createdAt: now,
		log:       logger.With(zap.Int64("session", key)),
		phase:     game.PhaseWaiting,
		roster:    make(map[int64]*Role),
		votes:     make(map[int64]int64),
	}
}

// Key returns the session key.
func (s *Session) Key() int64 { return s.key }

func (s *Session) isAlive(id int64) bool {
	return slices.Contains(s.aliveIDs, id)
}

// canJoin reports why playerID cannot join, or nil.
func (s *Session) canJoin(playerID int64, maxPlayers int) error {
	if s.phase != game.PhaseWaiting {
		return ErrInvalidPhase
	}
	if _, ok := s.roster[playerID]; ok {
		return ErrAlreadyJoined
	}
	if maxPlayers > 0 && len(s.aliveIDs) >= maxPlayers {
		return ErrRosterFull
	}
	return nil
}

func (s *Session) join(playerID int64, maxPlayers int) error {
	if err := s.canJoin(playerID, maxPlayers); err != nil {
		return err
	}
	s.roster[playerID] = nil
	s.aliveIDs = append(s.aliveIDs, playerID)
	return nil
}

func (s *Session) leave(playerID int64) error {
	if s.phase != game.PhaseWaiting {
		return ErrInvalidPhase
	}
	if _, ok := s.roster[playerID]; !ok {
		return ErrNotInGame
	}
	delete(s.roster, playerID)
	s.aliveIDs = slices.DeleteFunc(s.aliveIDs, func(id int64) bool { return id == playerID })
	return nil
}

// start assigns roles from the current roster and enters the first night.
func (s *Session) start(rng Shuffler) error {
	if s.phase != game.PhaseWaiting {
		return ErrInvalidPhase
	}
	for id, role := range s.roster {
		if role != nil {
			return s.violation("role assigned twice", zap.Int64("player", id))
		}
	}
	roles, err := AssignRoles(s.aliveIDs, rng)
	if err != nil {
		return err
	}
	s.roster = roles
	s.enterNight()
	return nil
}

func (s *Session) nextPhase(phase game.Phase) {
	s.phase = phase
	s.seq++
	s.resolved = false
}

func (s *Session) enterNight() {
	s.round++
	for _, role := range s.roster {
		role.resetNight()
	}
	s.nextPhase(game.PhaseNight)
}

func (s *Session) enterDay() {
	clear(s.votes)
	s.nextPhase(game.PhaseDay)
}

// markResolved is the check-and-set guard for the current phase instance.
func (s *Session) markResolved() bool {
	if s.resolved {
		return false
	}
	s.resolved = true
	return true
}

// eliminate moves a player from alive to dead.
func (s *Session) eliminate(playerID int64) error {
	role := s.roster[playerID]
	idx := slices.Index(s.aliveIDs, playerID)
	if role == nil || idx < 0 || !role.Alive {
		return s.violation("roster and alive set out of sync", zap.Int64("player", playerID))
	}
	s.aliveIDs = slices.Delete(s.aliveIDs, idx, idx+1)
	s.deadIDs = append(s.deadIDs, playerID)
	role.Alive = false
	delete(s.votes, playerID)
	return nil
}

// violation logs an invariant breach with enough context to diagnose it.
// DPanic panics in development loggers and logs in production.
func (s *Session) violation(msg string, fields ...zap.Field) error {
	fields = append(fields,
		zap.String("phase", string(s.phase)),
		zap.Int("round", s.round),
		zap.Uint64("seq", s.seq),
		zap.Int64s("alive", s.aliveIDs),
		zap.Int64s("dead", s.deadIDs),
	)
	s.log.DPanic(msg, fields...)
	return ErrInvariantViolation
}

func (s *Session) emit(to Recipient, ev game.Event) {
	ev.SessionKey = s.key
	s.outbox = append(s.outbox, newEnvelope(to, ev))
}

func (s *Session) broadcast(ev game.Event) {
	s.emit(ToSession(s.key), ev)
}

func (s *Session) drain() ([]Envelope, *gameResult) {
	out, res := s.outbox, s.result
	s.outbox, s.result = nil, nil
	return out, res
}

func (s *Session) snapshot() game.Snapshot {
	return game.Snapshot{
		SessionKey: s.key,
		Phase:      s.phase,
		Round:      s.round,
		Alive:      append([]int64{}, s.aliveIDs...),
		Dead:       append([]int64{}, s.deadIDs...),
		VotesCast:  len(s.votes),
		Deadline:   s.deadline,
		CreatedAt:  s.createdAt,
	}
}

func (s *Session) privateView(playerID int64) (game.PrivateView, error) {
	role, ok := s.roster[playerID]
	if !ok {
		return game.PrivateView{}, ErrNotInGame
	}
	if role == nil {
		return game.PrivateView{SessionKey: s.key, PlayerID: playerID, Alive: true}, nil
	}
	return role.view(s.key), nil
}

func (s *Session) rolesByKind() map[int64]game.RoleKind {
	kinds := make(map[int64]game.RoleKind, len(s.roster))
	for id, role := range s.roster {
		if role != nil {
			kinds[id] = role.Kind
		}
	}
	return kinds
}
