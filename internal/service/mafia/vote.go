package mafia

import (
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// DayOutcome describes what a day resolution did.
type DayOutcome struct {
	Applied   bool
	Condemned int64 // zero unless exactly one player led the tally
	Outcome   string
	Tally     map[int64]int
	Winner    game.Winner
}

// castVote records a public vote. The last vote from a voter counts.
func (s *Session) castVote(voterID, targetID int64) error {
	if s.phase != game.PhaseDay {
		return ErrInvalidPhase
	}
	if _, ok := s.roster[voterID]; !ok {
		return ErrNotInGame
	}
	if !s.isAlive(voterID) {
		return ErrDeadActor
	}
	if !s.isAlive(targetID) {
		return ErrUnknownTarget
	}
	s.votes[voterID] = targetID
	return nil
}

// everyoneVoted reports whether every alive player has a vote recorded.
func (s *Session) everyoneVoted() bool {
	return len(s.votes) == len(s.aliveIDs)
}

// Tally counts votes per target and returns the targets sharing the highest
// count.
func Tally(votes map[int64]int64) (map[int64]int, []int64) {
	counts := make(map[int64]int, len(votes))
	for _, target := range votes {
		counts[target]++
	}

	maxVotes := 0
	var top []int64
	for target, n := range counts {
		switch {
		case n > maxVotes:
			maxVotes = n
			top = []int64{target}
		case n == maxVotes:
			top = append(top, target)
		}
	}
	return counts, top
}

// resolveDay eliminates the unique plurality target, if any, once per day.
func (s *Session) resolveDay() DayOutcome {
	if s.phase != game.PhaseDay || !s.markResolved() {
		return DayOutcome{}
	}

	counts, top := Tally(s.votes)
	out := DayOutcome{Applied: true, Tally: counts}
	switch {
	case len(s.votes) == 0:
		out.Outcome = game.OutcomeNoVotes
	case len(top) > 1:
		out.Outcome = game.OutcomeTie
	default:
		out.Outcome = game.OutcomeCondemned
		if err := s.eliminate(top[0]); err == nil {
			out.Condemned = top[0]
		}
	}
	clear(s.votes)

	ev := game.Event{Kind: game.EventDayResult, Round: s.round, Outcome: out.Outcome}
	if out.Condemned != noTarget {
		ev.Player = &game.PlayerRef{ID: out.Condemned}
	}
	s.broadcast(ev)
	s.log.Info("day resolved",
		zap.Int("round", s.round),
		zap.String("outcome", out.Outcome),
		zap.Int64("condemned", out.Condemned),
	)

	out.Winner = Evaluate(s)
	if out.Winner == game.WinnerNone {
		s.enterNight()
	}
	return out
}
