package narrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	victim := &game.PlayerRef{ID: 3, Name: "carol"}
	tests := []struct {
		name string
		ev   game.Event
		want string
	}{
		{"night", game.Event{Kind: game.EventNightStarted, Round: 2}, "Night 2"},
		{"victim", game.Event{Kind: game.EventNightResult, Player: victim}, "carol was found dead"},
		{"quiet night", game.Event{Kind: game.EventNightResult}, "Nobody died"},
		{"condemned", game.Event{Kind: game.EventDayResult, Outcome: game.OutcomeCondemned, Player: &game.PlayerRef{ID: 4}}, "Player 4 is eliminated"},
		{"tie", game.Event{Kind: game.EventDayResult, Outcome: game.OutcomeTie}, "tied"},
		{"no votes", game.Event{Kind: game.EventDayResult, Outcome: game.OutcomeNoVotes}, "Nobody voted"},
		{"mafia wins", game.Event{Kind: game.EventGameOver, Winner: game.WinnerMafia}, "mafia has taken"},
		{"town wins", game.Event{Kind: game.EventGameOver, Winner: game.WinnerCivilians}, "town is safe"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text, err := Static{}.Narrate(ctx, tc.ev)
			require.NoError(t, err)
			assert.Contains(t, text, tc.want)
		})
	}

	text, err := Static{}.Narrate(ctx, game.Event{Kind: game.EventVotePrompt})
	require.NoError(t, err)
	assert.Empty(t, text)
}

type fakeModel struct {
	err   error
	calls int
	seen  []*schema.Message
}

func (m *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls++
	m.seen = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage("The moon rises. "+input[len(input)-1].Content, nil), nil
}

func (m *fakeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestLLMNarrates(t *testing.T) {
	ctx := context.Background()
	fm := &fakeModel{}
	n, err := NewLLM(ctx, fm, "French", nil)
	require.NoError(t, err)

	text, err := n.Narrate(ctx, game.Event{Kind: game.EventNightStarted, Round: 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "The moon rises. Night 1"), text)

	require.Len(t, fm.seen, 2)
	assert.Equal(t, schema.System, fm.seen[0].Role)
	assert.Contains(t, fm.seen[0].Content, "French")
}

func TestLLMFallsBackToTemplate(t *testing.T) {
	ctx := context.Background()
	fm := &fakeModel{err: errors.New("quota exceeded")}
	n, err := NewLLM(ctx, fm, "", nil)
	require.NoError(t, err)

	text, err := n.Narrate(ctx, game.Event{Kind: game.EventNightResult})
	require.NoError(t, err)
	assert.Equal(t, "Morning comes. Nobody died tonight.", text)

	text, err = n.Narrate(ctx, game.Event{Kind: game.EventPlayerJoined})
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, 1, fm.calls, "events without a template skip the model")
}
