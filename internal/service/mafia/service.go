package mafia

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// DefaultMaxPlayers caps the roster of a single game.
const DefaultMaxPlayers = 10

// Profiles is the identity collaborator: it names players and keeps their
// long-lived statistics.
type Profiles interface {
	NameResolver
	Upsert(ctx context.Context, playerID int64, name string) error
	RecordGame(ctx context.Context, playerID int64, won bool) error
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Timeouts      Timeouts
	MaxPlayers    int
	MaxSessionAge time.Duration
	SweepSpec     string
	QueueSize     int // per session

	Clock       Clock
	NewShuffler func() Shuffler
	Notifier    Notifier
	Profiles    Profiles
	Narrator    Narrator
	Logger      *zap.Logger
}

// Service is the entry point for every game event. Events for one session
// are serialized on that session's lock; different sessions never contend.
type Service struct {
	registry    *Registry
	scheduler   *PhaseScheduler
	dispatcher  *Dispatcher
	profiles    Profiles
	clock       Clock
	newShuffler func() Shuffler
	timeouts    Timeouts
	maxPlayers  int
	maxAge      time.Duration
	sweepSpec   string
	logger      *zap.Logger

	cron    *cron.Cron
	cancel  context.CancelFunc
	mu      sync.Mutex // guards stopped and wg.Add
	stopped bool
	wg      sync.WaitGroup
}

// NewService wires the engine. Call Start before serving events.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	newShuffler := opts.NewShuffler
	if newShuffler == nil {
		newShuffler = NewShuffler
	}
	maxPlayers := opts.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	maxAge := opts.MaxSessionAge
	if maxAge <= 0 {
		maxAge = DefaultMaxSessionAge
	}
	sweepSpec := opts.SweepSpec
	if sweepSpec == "" {
		sweepSpec = DefaultSweepSpec
	}

	var names NameResolver
	if opts.Profiles != nil {
		names = opts.Profiles
	}

	svc := &Service{
		registry:    NewRegistry(logger),
		dispatcher:  NewDispatcher(opts.Notifier, names, opts.Narrator, logger, opts.QueueSize),
		profiles:    opts.Profiles,
		clock:       clock,
		newShuffler: newShuffler,
		timeouts:    opts.Timeouts.withDefaults(),
		maxPlayers:  maxPlayers,
		maxAge:      maxAge,
		sweepSpec:   sweepSpec,
		logger:      logger,
	}
	svc.scheduler = newPhaseScheduler(clock, svc.timeouts, svc.onTimer)
	return svc
}

// Start launches the notification worker and the stale-session sweeper.
func (svc *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	svc.cancel = cancel

	svc.spawn(func() { svc.dispatcher.Run(ctx) })
	return svc.startSweeper()
}

// Close stops background work and cancels every pending phase timer.
func (svc *Service) Close() {
	if svc.cron != nil {
		<-svc.cron.Stop().Done()
	}
	for _, s := range svc.registry.List() {
		s.mu.Lock()
		svc.scheduler.disarm(s)
		s.mu.Unlock()
	}
	svc.mu.Lock()
	svc.stopped = true
	svc.mu.Unlock()
	if svc.cancel != nil {
		svc.cancel()
	}
	svc.wg.Wait()
}

// spawn runs fn in a tracked goroutine unless the service is closing.
func (svc *Service) spawn(fn func()) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.stopped {
		return false
	}
	svc.wg.Add(1)
	go func() {
		defer svc.wg.Done()
		fn()
	}()
	return true
}

// Rules describes the ruleset this service enforces.
func (svc *Service) Rules() game.Rules {
	return game.Rules{
		MinPlayers:   MinPlayers,
		MaxPlayers:   svc.maxPlayers,
		JoinTimeout:  svc.timeouts.Join,
		NightTimeout: svc.timeouts.Night,
		DayTimeout:   svc.timeouts.Day,
		Roles:        game.RoleCatalog(),
	}
}

// ActiveSessions returns the number of registered games.
func (svc *Service) ActiveSessions() int {
	return svc.registry.Len()
}

// NewGame opens a waiting session for key and starts the join countdown.
func (svc *Service) NewGame(_ context.Context, key int64) (game.Snapshot, error) {
	s, err := svc.registry.Create(key, svc.clock.Now())
	if err != nil {
		return game.Snapshot{}, err
	}

	s.mu.Lock()
	svc.scheduler.arm(s)
	s.broadcast(game.Event{Kind: game.EventGameCreated, Max: svc.maxPlayers})
	snap := s.snapshot()
	svc.release(s)

	svc.logger.Info("game created", zap.Int64("session", key))
	return snap, nil
}

// Join adds a player to a waiting game. Once the roster checks pass the
// profile is refreshed, so the announcement can carry the player's name.
func (svc *Service) Join(ctx context.Context, key, playerID int64, name string) error {
	if err := svc.read(key, func(s *Session) error {
		return s.canJoin(playerID, svc.maxPlayers)
	}); err != nil {
		return err
	}
	if svc.profiles != nil {
		if err := svc.profiles.Upsert(ctx, playerID, name); err != nil {
			svc.logger.Warn("profile upsert failed", zap.Int64("player", playerID), zap.Error(err))
		}
	}

	return svc.do(key, func(s *Session) error {
		if err := s.join(playerID, svc.maxPlayers); err != nil {
			return err
		}
		s.broadcast(game.Event{
			Kind:   game.EventPlayerJoined,
			Player: &game.PlayerRef{ID: playerID},
			Count:  len(s.aliveIDs),
			Max:    svc.maxPlayers,
		})
		return nil
	})
}

// Leave removes a player from a waiting game.
func (svc *Service) Leave(_ context.Context, key, playerID int64) error {
	return svc.do(key, func(s *Session) error {
		if err := s.leave(playerID); err != nil {
			return err
		}
		s.broadcast(game.Event{
			Kind:   game.EventPlayerLeft,
			Player: &game.PlayerRef{ID: playerID},
			Count:  len(s.aliveIDs),
			Max:    svc.maxPlayers,
		})
		return nil
	})
}

// ForceStart begins a waiting game immediately.
func (svc *Service) ForceStart(_ context.Context, key int64) error {
	return svc.do(key, func(s *Session) error {
		if s.phase != game.PhaseWaiting {
			return ErrInvalidPhase
		}
		if len(s.aliveIDs) < MinPlayers {
			return ErrInsufficientPlayers
		}
		return svc.startGame(s)
	})
}

// SubmitAction records a night action. For an investigation the result is
// returned as well as sent privately to the detective.
func (svc *Service) SubmitAction(_ context.Context, key, actorID int64, action game.ActionKind, targetID int64) (*game.Investigation, error) {
	var result *game.Investigation
	err := svc.do(key, func(s *Session) error {
		res, err := s.submitAction(actorID, action, targetID)
		if err != nil {
			return err
		}
		result = res
		if s.nightComplete() {
			svc.scheduler.disarm(s)
			svc.finishNight(s)
		}
		return nil
	})
	return result, err
}

// Vote records a day vote and resolves the day once everyone alive voted.
func (svc *Service) Vote(_ context.Context, key, voterID, targetID int64) error {
	return svc.do(key, func(s *Session) error {
		if err := s.castVote(voterID, targetID); err != nil {
			return err
		}
		if s.everyoneVoted() {
			svc.scheduler.disarm(s)
			svc.finishDay(s)
		}
		return nil
	})
}

// Snapshot returns the public state of a game.
func (svc *Service) Snapshot(_ context.Context, key int64) (game.Snapshot, error) {
	var snap game.Snapshot
	err := svc.read(key, func(s *Session) error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// PrivateView returns what a player may know about their own role.
func (svc *Service) PrivateView(_ context.Context, key, playerID int64) (game.PrivateView, error) {
	var view game.PrivateView
	err := svc.read(key, func(s *Session) error {
		v, err := s.privateView(playerID)
		view = v
		return err
	})
	return view, err
}

// do runs fn under the session lock and publishes whatever it emitted.
func (svc *Service) do(key int64, fn func(s *Session) error) error {
	s, err := svc.registry.Get(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	err = fn(s)
	svc.release(s)
	return err
}

func (svc *Service) read(key int64, fn func(s *Session) error) error {
	s, err := svc.registry.Get(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionEnded
	}
	return fn(s)
}

// release unlocks s and hands its outbox to the dispatcher.
func (svc *Service) release(s *Session) {
	envs, result := s.drain()
	s.mu.Unlock()

	svc.dispatcher.Enqueue(envs...)
	if result != nil && svc.profiles != nil {
		if !svc.spawn(func() { svc.recordResult(result) }) {
			svc.logger.Warn("service closed, game result not recorded",
				zap.Int64("session", s.key),
				zap.String("winner", string(result.winner)),
			)
		}
	}
}

// onTimer is the scheduler callback. It runs on the timer goroutine.
func (svc *Service) onTimer(s *Session, seq uint64) {
	s.mu.Lock()
	if s.closed || s.seq != seq {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	switch s.phase {
	case game.PhaseWaiting:
		if len(s.aliveIDs) < MinPlayers {
			s.log.Info("join timeout with too few players",
				zap.Int("players", len(s.aliveIDs)),
				zap.Error(ErrInsufficientPlayers),
			)
			svc.discard(s, game.ReasonNotEnoughPlayers)
		} else if err := svc.startGame(s); err != nil {
			s.log.Error("start on join timeout failed", zap.Error(err))
		}
	case game.PhaseNight:
		svc.finishNight(s)
	case game.PhaseDay:
		svc.finishDay(s)
	}
	svc.release(s)
}

func (svc *Service) startGame(s *Session) error {
	svc.scheduler.disarm(s)
	if err := s.start(svc.newShuffler()); err != nil {
		return err
	}

	s.broadcast(game.Event{Kind: game.EventGameStarted, Players: game.Refs(s.aliveIDs)})
	for _, id := range s.aliveIDs {
		role := s.roster[id]
		s.emit(ToPlayer(s.key, id), game.Event{
			Kind:        game.EventRoleAssigned,
			Role:        role.Kind,
			Action:      role.Kind.Action(),
			Description: game.Describe(role.Kind),
		})
	}
	s.log.Info("game started", zap.Int("players", len(s.aliveIDs)))
	svc.openNight(s)
	return nil
}

func (svc *Service) openNight(s *Session) {
	svc.scheduler.arm(s)
	s.broadcast(game.Event{Kind: game.EventNightStarted, Round: s.round})
	for _, id := range s.aliveIDs {
		role := s.roster[id]
		if !role.Kind.HasNightAction() {
			continue
		}
		s.emit(ToPlayer(s.key, id), game.Event{
			Kind:    game.EventNightPrompt,
			Round:   s.round,
			Action:  role.Kind.Action(),
			Targets: game.Refs(s.nightTargets(role)),
		})
	}
}

func (svc *Service) finishNight(s *Session) {
	out := s.resolveNight()
	if !out.Applied {
		return
	}
	if out.Winner != game.WinnerNone {
		svc.endGame(s, out.Winner)
		return
	}
	svc.openDay(s)
}

func (svc *Service) openDay(s *Session) {
	svc.scheduler.arm(s)
	alive := game.Refs(s.aliveIDs)
	s.broadcast(game.Event{Kind: game.EventDayStarted, Round: s.round, Players: alive})
	s.broadcast(game.Event{Kind: game.EventVotePrompt, Round: s.round, Targets: alive})
}

func (svc *Service) finishDay(s *Session) {
	out := s.resolveDay()
	if !out.Applied {
		return
	}
	if out.Winner != game.WinnerNone {
		svc.endGame(s, out.Winner)
		return
	}
	svc.openNight(s)
}

// endGame makes the session terminal and removes it from the registry.
func (svc *Service) endGame(s *Session, winner game.Winner) {
	svc.close(s)
	s.result = &gameResult{winner: winner, roles: s.rolesByKind()}
	s.broadcast(game.Event{
		Kind:    game.EventGameOver,
		Round:   s.round,
		Winner:  winner,
		Players: game.Refs(s.aliveIDs),
	})
	s.log.Info("game over", zap.String("winner", string(winner)), zap.Int("round", s.round))
}

// discard cancels a game that never finished.
func (svc *Service) discard(s *Session, reason string) {
	svc.close(s)
	s.broadcast(game.Event{Kind: game.EventGameCancelled, Reason: reason})
	s.log.Info("game cancelled", zap.String("reason", reason))
}

func (svc *Service) close(s *Session) {
	svc.scheduler.disarm(s)
	s.phase = game.PhaseEnded
	s.seq++
	s.closed = true
	svc.registry.Remove(s.key, s)
}

func (svc *Service) recordResult(res *gameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for id, kind := range res.roles {
		won := (kind == game.RoleMafia) == (res.winner == game.WinnerMafia)
		if err := svc.profiles.RecordGame(ctx, id, won); err != nil {
			svc.logger.Warn("record game failed", zap.Int64("player", id), zap.Error(err))
		}
	}
}
