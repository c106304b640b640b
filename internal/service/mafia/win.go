package mafia

import "github.com/zhouzirui/z-mafia/backend/internal/model/game"

// Evaluate decides whether the game is over. Civilians win once no mafia is
// alive; the mafia wins as soon as it is at least as numerous as everyone
// else, which includes a final pair of one mafia and one other player.
func Evaluate(s *Session) game.Winner {
	mafiaAlive := 0
	for _, id := range s.aliveIDs {
		if role := s.roster[id]; role != nil && role.Kind == game.RoleMafia {
			mafiaAlive++
		}
	}
	othersAlive := len(s.aliveIDs) - mafiaAlive

	switch {
	case mafiaAlive == 0:
		return game.WinnerCivilians
	case mafiaAlive >= othersAlive:
		return game.WinnerMafia
	default:
		return game.WinnerNone
	}
}
