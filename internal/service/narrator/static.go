package narrator

import (
	"context"
	"fmt"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// Static narrates phase announcements from fixed templates.
type Static struct{}

// Narrate returns the announcement for ev, or "" for events without one.
func (Static) Narrate(_ context.Context, ev game.Event) (string, error) {
	switch ev.Kind {
	case game.EventNightStarted:
		return fmt.Sprintf("Night %d falls. The town sleeps while the mafia picks a victim.", ev.Round), nil
	case game.EventNightResult:
		if ev.Player != nil {
			return fmt.Sprintf("Morning comes. %s was found dead.", name(ev.Player)), nil
		}
		return "Morning comes. Nobody died tonight.", nil
	case game.EventDayStarted:
		return fmt.Sprintf("Day %d. Discuss and vote for the suspect you trust least.", ev.Round), nil
	case game.EventDayResult:
		switch ev.Outcome {
		case game.OutcomeCondemned:
			if ev.Player != nil {
				return fmt.Sprintf("The town has spoken. %s is eliminated.", name(ev.Player)), nil
			}
		case game.OutcomeTie:
			return "The vote is tied. Nobody is eliminated.", nil
		case game.OutcomeNoVotes:
			return "Nobody voted. Night comes again.", nil
		}
		return "", nil
	case game.EventGameOver:
		if ev.Winner == game.WinnerMafia {
			return "The mafia has taken the town.", nil
		}
		return "The mafia is gone. The town is safe.", nil
	default:
		return "", nil
	}
}

func name(p *game.PlayerRef) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("Player %d", p.ID)
}
