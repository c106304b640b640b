package mafia

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

type narratorFunc func(ctx context.Context, ev game.Event) (string, error)

func (f narratorFunc) Narrate(ctx context.Context, ev game.Event) (string, error) { return f(ctx, ev) }

func TestDispatcherDecorates(t *testing.T) {
	names := newFakeProfiles()
	require.NoError(t, names.Upsert(context.Background(), 1, "alice"))
	narrate := narratorFunc(func(_ context.Context, ev game.Event) (string, error) {
		if ev.Kind == game.EventDayResult {
			return "", errors.New("model unavailable")
		}
		return "the town sleeps", nil
	})
	d := NewDispatcher(nil, names, narrate, nil, 0)
	ctx := context.Background()

	ev := d.decorate(ctx, game.Event{
		Kind:    game.EventNightStarted,
		Player:  &game.PlayerRef{ID: 1},
		Targets: []game.PlayerRef{{ID: 1}, {ID: 2}},
	})
	assert.Equal(t, "alice", ev.Player.Name)
	assert.Equal(t, []game.PlayerRef{{ID: 1, Name: "alice"}, {ID: 2, Name: "Player 2"}}, ev.Targets)
	assert.Equal(t, "the town sleeps", ev.Narration)

	ev = d.decorate(ctx, game.Event{Kind: game.EventDayResult})
	assert.Empty(t, ev.Narration)

	ev = d.decorate(ctx, game.Event{Kind: game.EventVotePrompt})
	assert.Empty(t, ev.Narration)
}

func TestDispatcherKeepsOrderAndDropsOverflow(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, nil, nil, nil, 2)
	d.Enqueue(
		newEnvelope(ToSession(1), game.Event{Kind: game.EventNightStarted}),
		newEnvelope(ToSession(1), game.Event{Kind: game.EventNightResult}),
		newEnvelope(ToSession(1), game.Event{Kind: game.EventDayStarted}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(rec.kinds()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []game.EventKind{game.EventNightStarted, game.EventNightResult}, rec.kinds())

	cancel()
	<-done

	d.Enqueue(newEnvelope(ToPlayer(1, 2), game.Event{Kind: game.EventRoleAssigned}))
	assert.Len(t, rec.kinds(), 2, "a stopped dispatcher delivers nothing")
}

// hasLane reports whether key currently owns a lane.
func (d *Dispatcher) hasLane(key int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.lanes[key]
	return ok
}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// holdNarration blocks every narration until release is closed.
func holdNarration(entered chan<- struct{}, release <-chan struct{}) narratorFunc {
	return func(ctx context.Context, _ game.Event) (string, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return "night falls", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func TestDispatcherSlowSessionDoesNotDelayOthers(t *testing.T) {
	release := make(chan struct{})
	rec := &recorder{}
	d := NewDispatcher(rec, nil, holdNarration(make(chan struct{}, 1), release), nil, 0)
	runDispatcher(t, d)

	for range 5 {
		d.Enqueue(newEnvelope(ToSession(1), game.Event{Kind: game.EventNightStarted}))
	}
	d.Enqueue(newEnvelope(ToPlayer(2, 7), game.Event{Kind: game.EventInvestigation}))

	require.Eventually(t, func() bool {
		_, ok := rec.find(game.EventInvestigation)
		return ok
	}, time.Second, 5*time.Millisecond, "session 2 waited on session 1's narration")
	assert.NotContains(t, rec.kinds(), game.EventNightStarted)

	close(release)
	require.Eventually(t, func() bool { return len(rec.kinds()) == 6 }, time.Second, 5*time.Millisecond)
}

func TestDispatcherWaitsForRoomForPrivateEnvelopes(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	rec := &recorder{}
	d := NewDispatcher(rec, nil, holdNarration(entered, release), nil, 1)
	d.privateWait = 5 * time.Second
	runDispatcher(t, d)

	d.Enqueue(newEnvelope(ToSession(1), game.Event{Kind: game.EventNightStarted}))
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("worker never picked up the first envelope")
	}
	d.Enqueue(
		newEnvelope(ToSession(1), game.Event{Kind: game.EventDayStarted}),
		newEnvelope(ToSession(1), game.Event{Kind: game.EventVotePrompt}),
	)

	sent := make(chan struct{})
	go func() {
		d.Enqueue(newEnvelope(ToPlayer(1, 3), game.Event{Kind: game.EventRoleAssigned}))
		close(sent)
	}()
	select {
	case <-sent:
		t.Fatal("private envelope was not held back by a full lane")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("private envelope never got room")
	}
	require.Eventually(t, func() bool { return len(rec.kinds()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []game.EventKind{game.EventNightStarted, game.EventDayStarted, game.EventRoleAssigned}, rec.kinds())
}

func TestDispatcherRetiresLaneAfterGameOver(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, nil, nil, nil, 0)
	runDispatcher(t, d)

	d.Enqueue(
		newEnvelope(ToSession(1), game.Event{Kind: game.EventNightStarted}),
		newEnvelope(ToSession(2), game.Event{Kind: game.EventNightStarted}),
		newEnvelope(ToSession(1), game.Event{Kind: game.EventGameOver}),
	)

	require.Eventually(t, func() bool { return len(rec.kinds()) == 3 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !d.hasLane(1) }, time.Second, 5*time.Millisecond)
	assert.True(t, d.hasLane(2))

	d.Enqueue(newEnvelope(ToSession(1), game.Event{Kind: game.EventGameCreated}))
	require.Eventually(t, func() bool {
		_, ok := rec.find(game.EventGameCreated)
		return ok
	}, time.Second, 5*time.Millisecond, "a new game on the same key gets a fresh lane")
}

func TestFanOutReturnsFirstError(t *testing.T) {
	errOffline := errors.New("offline")
	var calls int
	fail := NotifierFunc(func(context.Context, Envelope) error {
		calls++
		return errOffline
	})
	ok := NotifierFunc(func(context.Context, Envelope) error {
		calls++
		return nil
	})

	err := FanOut{ok, fail, fail}.Notify(context.Background(), Envelope{})
	assert.ErrorIs(t, err, errOffline)
	assert.Equal(t, 3, calls)
}

func TestRecipient(t *testing.T) {
	assert.False(t, ToSession(4).IsPlayer())
	assert.True(t, ToPlayer(4, 9).IsPlayer())
	assert.Equal(t, int64(4), ToPlayer(4, 9).SessionKey)
}
