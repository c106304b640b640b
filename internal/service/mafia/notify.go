package mafia

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// Recipient addresses either a whole session or a single player.
type Recipient struct {
	SessionKey int64 `json:"sessionKey,omitempty"`
	PlayerID   int64 `json:"playerId,omitempty"`
}

// ToSession addresses everyone watching a session.
func ToSession(key int64) Recipient { return Recipient{SessionKey: key} }

// ToPlayer addresses a single player of a session privately.
func ToPlayer(key, id int64) Recipient { return Recipient{SessionKey: key, PlayerID: id} }

// IsPlayer reports whether the recipient is a single player.
func (r Recipient) IsPlayer() bool { return r.PlayerID != 0 }

// Envelope is one outbound notification.
type Envelope struct {
	ID        string     `json:"id"`
	To        Recipient  `json:"to"`
	Event     game.Event `json:"event"`
	CreatedAt time.Time  `json:"createdAt"`
}

func newEnvelope(to Recipient, ev game.Event) Envelope {
	return Envelope{ID: uuid.NewString(), To: to, Event: ev, CreatedAt: time.Now().UTC()}
}

// Notifier delivers envelopes. Delivery is best effort; errors are logged by
// the dispatcher and never reach game state.
type Notifier interface {
	Notify(ctx context.Context, env Envelope) error
}

// NameResolver turns player ids into display names.
type NameResolver interface {
	DisplayName(ctx context.Context, playerID int64) (string, error)
}

// Narrator produces flavour text for phase announcements.
type Narrator interface {
	Narrate(ctx context.Context, ev game.Event) (string, error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, env Envelope) error

func (f NotifierFunc) Notify(ctx context.Context, env Envelope) error { return f(ctx, env) }

// FanOut delivers to every notifier and returns the first error.
type FanOut []Notifier

func (f FanOut) Notify(ctx context.Context, env Envelope) error {
	var first error
	for _, n := range f {
		if err := n.Notify(ctx, env); err != nil && first == nil {
			first = err
		}
	}
	return first
}

const (
	defaultNarrateTimeout = 5 * time.Second
	defaultPrivateWait    = 2 * time.Second
	defaultLaneSize       = 64
)

// Dispatcher delivers envelopes through one lane per session. A lane is a
// queue with its own worker, so announcements for a session keep their order
// and a slow session never holds up another. Lanes are created on first use
// and retired once the game is over and the lane is drained.
type Dispatcher struct {
	notifier       Notifier
	names          NameResolver
	narrator       Narrator
	logger         *zap.Logger
	laneSize       int
	narrateTimeout time.Duration
	privateWait    time.Duration

	mu      sync.Mutex
	lanes   map[int64]*lane
	ctx     context.Context // set by Run
	stopped bool
	workers sync.WaitGroup
}

type lane struct {
	key     int64
	queue   chan Envelope
	wake    chan struct{} // signalled when the last sender lets go
	started bool
	senders int  // Enqueue calls holding the lane, guarded by Dispatcher.mu
	ending  bool // worker only
}

// NewDispatcher creates a dispatcher whose lanes buffer size envelopes each.
// names and narrator may be nil.
func NewDispatcher(notifier Notifier, names NameResolver, narrator Narrator, logger *zap.Logger, size int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = defaultLaneSize
	}
	return &Dispatcher{
		notifier:       notifier,
		names:          names,
		narrator:       narrator,
		logger:         logger,
		laneSize:       size,
		narrateTimeout: defaultNarrateTimeout,
		privateWait:    defaultPrivateWait,
		lanes:          make(map[int64]*lane),
	}
}

// Enqueue hands envelopes to their session's lane. Public envelopes are
// dropped when the lane is full; private ones wait up to privateWait for room.
func (d *Dispatcher) Enqueue(envs ...Envelope) {
	for _, env := range envs {
		l := d.acquire(env.To.SessionKey)
		if l == nil {
			d.logger.Warn("dispatcher stopped, dropping notification",
				zap.String("id", env.ID),
				zap.String("kind", string(env.Event.Kind)),
			)
			continue
		}
		d.push(l, env)
		d.releaseLane(l)
	}
}

func (d *Dispatcher) push(l *lane, env Envelope) {
	select {
	case l.queue <- env:
		return
	default:
	}

	fields := []zap.Field{
		zap.String("id", env.ID),
		zap.String("kind", string(env.Event.Kind)),
		zap.Int64("session", env.To.SessionKey),
	}
	if !env.To.IsPlayer() {
		d.logger.Warn("notification lane full, dropping", fields...)
		return
	}

	wait := time.NewTimer(d.privateWait)
	defer wait.Stop()
	select {
	case l.queue <- env:
	case <-wait.C:
		d.logger.Error("private notification dropped", append(fields, zap.Int64("player", env.To.PlayerID))...)
	}
}

// acquire returns the lane for key, creating it if needed, and pins it until
// releaseLane. It returns nil once the dispatcher has stopped.
func (d *Dispatcher) acquire(key int64) *lane {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil
	}
	l, ok := d.lanes[key]
	if !ok {
		l = &lane{key: key, queue: make(chan Envelope, d.laneSize), wake: make(chan struct{}, 1)}
		d.lanes[key] = l
	}
	if d.ctx != nil && !l.started {
		d.startLocked(l)
	}
	l.senders++
	return l
}

func (d *Dispatcher) releaseLane(l *lane) {
	d.mu.Lock()
	l.senders--
	idle := l.senders == 0
	d.mu.Unlock()
	if idle {
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}

func (d *Dispatcher) startLocked(l *lane) {
	l.started = true
	d.workers.Add(1)
	go d.work(d.ctx, l)
}

// retire removes a drained lane. It fails while an Enqueue still holds it.
func (d *Dispatcher) retire(l *lane) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l.senders > 0 || len(l.queue) > 0 {
		return false
	}
	if d.lanes[l.key] == l {
		delete(d.lanes, l.key)
	}
	return true
}

// Run starts the lane workers and blocks until ctx is done and every worker
// has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	for _, l := range d.lanes {
		if !l.started {
			d.startLocked(l)
		}
	}
	d.mu.Unlock()

	<-ctx.Done()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.workers.Wait()
}

func (d *Dispatcher) work(ctx context.Context, l *lane) {
	defer d.workers.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-l.queue:
			d.deliver(ctx, env)
			if env.Event.Kind.Terminal() {
				l.ending = true
			}
			if l.ending && d.retire(l) {
				return
			}
		case <-l.wake:
			if l.ending && d.retire(l) {
				return
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) {
	if d.notifier == nil {
		return
	}
	env.Event = d.decorate(ctx, env.Event)
	if err := d.notifier.Notify(ctx, env); err != nil {
		d.logger.Warn("notification not delivered",
			zap.String("id", env.ID),
			zap.String("kind", string(env.Event.Kind)),
			zap.Int64("session", env.To.SessionKey),
			zap.Int64("player", env.To.PlayerID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) decorate(ctx context.Context, ev game.Event) game.Event {
	if ev.Player != nil {
		p := *ev.Player
		p.Name = d.displayName(ctx, p.ID)
		ev.Player = &p
	}
	ev.Players = d.nameAll(ctx, ev.Players)
	ev.Targets = d.nameAll(ctx, ev.Targets)

	if d.narrator != nil && narratable(ev.Kind) {
		nctx, cancel := context.WithTimeout(ctx, d.narrateTimeout)
		text, err := d.narrator.Narrate(nctx, ev)
		cancel()
		if err != nil {
			d.logger.Debug("narration failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
		} else {
			ev.Narration = text
		}
	}
	return ev
}

func (d *Dispatcher) nameAll(ctx context.Context, refs []game.PlayerRef) []game.PlayerRef {
	if len(refs) == 0 {
		return refs
	}
	named := make([]game.PlayerRef, len(refs))
	for i, ref := range refs {
		named[i] = game.PlayerRef{ID: ref.ID, Name: d.displayName(ctx, ref.ID)}
	}
	return named
}

func (d *Dispatcher) displayName(ctx context.Context, id int64) string {
	if d.names != nil {
		name, err := d.names.DisplayName(ctx, id)
		if err == nil && name != "" {
			return name
		}
	}
	return fmt.Sprintf("Player %d", id)
}

func narratable(kind game.EventKind) bool {
	switch kind {
	case game.EventNightStarted, game.EventDayStarted, game.EventNightResult,
		game.EventDayResult, game.EventGameOver:
		return true
	default:
		return false
	}
}
