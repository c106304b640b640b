package mafia

import "github.com/zhouzirui/z-mafia/backend/internal/model/game"

// noTarget marks an unset night target. Player ids are caller supplied and
// never zero.
const noTarget int64 = 0

// Role is the per-player game state. Kind selects which of the target fields
// are meaningful; the others stay unset.
type Role struct {
	PlayerID   int64
	Kind       game.RoleKind
	Alive      bool
	ActionUsed bool

	KillTarget         int64 // mafia
	HealTarget         int64 // doctor
	SelfHealsRemaining int   // doctor
	InvestigateTarget  int64 // detective

	investigations []game.Investigation
}

func newRole(playerID int64, kind game.RoleKind) *Role {
	r := &Role{PlayerID: playerID, Kind: kind, Alive: true}
	if kind == game.RoleDoctor {
		r.SelfHealsRemaining = 1
	}
	return r
}

// resetNight clears every per-night field.
func (r *Role) resetNight() {
	r.ActionUsed = false
	r.KillTarget = noTarget
	r.HealTarget = noTarget
	r.InvestigateTarget = noTarget
}

// awaitingAction reports whether the role still owes a night action.
func (r *Role) awaitingAction() bool {
	return r.Alive && r.Kind.HasNightAction() && !r.ActionUsed
}

func (r *Role) view(sessionKey int64) game.PrivateView {
	v := game.PrivateView{
		SessionKey: sessionKey,
		PlayerID:   r.PlayerID,
		Role:       r.Kind,
		Alive:      r.Alive,
		ActionUsed: r.ActionUsed,
	}
	switch r.Kind {
	case game.RoleDoctor:
		left := r.SelfHealsRemaining
		v.SelfHealsRemaining = &left
	case game.RoleDetective:
		v.Investigations = append([]game.Investigation(nil), r.investigations...)
	}
	return v
}
