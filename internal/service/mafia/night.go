package mafia

import (
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// NightOutcome describes what a night resolution did.
type NightOutcome struct {
	Applied bool
	Victim  int64 // zero when nobody died
	Saved   bool  // the doctor healed the mafia's target
	Winner  game.Winner
}

// submitAction records a concealed night action. A detective's result is
// computed immediately and returned; it never changes the roster.
func (s *Session) submitAction(actorID int64, action game.ActionKind, targetID int64) (*game.Investigation, error) {
	if s.phase != game.PhaseNight {
		return nil, ErrInvalidPhase
	}
	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	role, ok := s.roster[actorID]
	if !ok || role == nil {
		return nil, ErrNotInGame
	}
	if !role.Alive {
		return nil, ErrDeadActor
	}
	if role.Kind.Action() != action {
		return nil, ErrRoleMismatch
	}
	if role.ActionUsed {
		return nil, ErrAlreadyActed
	}
	if !s.isAlive(targetID) {
		return nil, ErrUnknownTarget
	}

	var result *game.Investigation
	switch role.Kind {
	case game.RoleMafia:
		if targetID == actorID {
			return nil, ErrSelfTarget
		}
		role.KillTarget = targetID
	case game.RoleDoctor:
		if targetID == actorID {
			if role.SelfHealsRemaining <= 0 {
				return nil, ErrQuotaExhausted
			}
			role.SelfHealsRemaining--
		}
		role.HealTarget = targetID
	case game.RoleDetective:
		if targetID == actorID {
			return nil, ErrSelfTarget
		}
		role.InvestigateTarget = targetID
		target := s.roster[targetID]
		result = &game.Investigation{
			Round:    s.round,
			TargetID: targetID,
			IsMafia:  target != nil && target.Kind == game.RoleMafia,
		}
		role.investigations = append(role.investigations, *result)
		s.emit(ToPlayer(s.key, actorID), game.Event{
			Kind:          game.EventInvestigation,
			Round:         s.round,
			Player:        &game.PlayerRef{ID: targetID},
			Investigation: result,
		})
	default:
		return nil, ErrRoleMismatch
	}
	role.ActionUsed = true
	return result, nil
}

// nightComplete reports whether every alive role with a night action has
// submitted it.
func (s *Session) nightComplete() bool {
	for _, role := range s.roster {
		if role != nil && role.awaitingAction() {
			return false
		}
	}
	return true
}

// resolveNight applies the night's actions once per night. Later calls for
// the same night return an outcome with Applied unset and change nothing.
func (s *Session) resolveNight() NightOutcome {
	if s.phase != game.PhaseNight || !s.markResolved() {
		return NightOutcome{}
	}

	var kill, heal int64
	for _, role := range s.roster {
		if role == nil || !role.Alive {
			continue
		}
		switch role.Kind {
		case game.RoleMafia:
			kill = role.KillTarget
		case game.RoleDoctor:
			heal = role.HealTarget
		}
	}

	out := NightOutcome{Applied: true}
	switch {
	case kill == noTarget:
	case kill == heal:
		out.Saved = true
	default:
		if err := s.eliminate(kill); err == nil {
			out.Victim = kill
		}
	}

	for _, role := range s.roster {
		role.resetNight()
	}

	ev := game.Event{Kind: game.EventNightResult, Round: s.round}
	if out.Victim != noTarget {
		ev.Player = &game.PlayerRef{ID: out.Victim}
	}
	s.broadcast(ev)
	s.log.Info("night resolved",
		zap.Int("round", s.round),
		zap.Int64("victim", out.Victim),
		zap.Bool("saved", out.Saved),
	)

	out.Winner = Evaluate(s)
	if out.Winner == game.WinnerNone {
		s.enterDay()
	}
	return out
}

// nightTargets lists who a role may target tonight.
func (s *Session) nightTargets(role *Role) []int64 {
	targets := make([]int64, 0, len(s.aliveIDs))
	for _, id := range s.aliveIDs {
		if id == role.PlayerID {
			if role.Kind != game.RoleDoctor || role.SelfHealsRemaining <= 0 {
				continue
			}
		}
		targets = append(targets, id)
	}
	return targets
}
