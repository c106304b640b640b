package game

// Phase governs which events a session accepts.
type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhaseNight   Phase = "night"
	PhaseDay     Phase = "day"
	PhaseEnded   Phase = "ended"
)

// RoleKind is the closed set of roles a player can hold.
type RoleKind string

const (
	RoleMafia     RoleKind = "mafia"
	RoleDoctor    RoleKind = "doctor"
	RoleDetective RoleKind = "detective"
	RoleCivilian  RoleKind = "civilian"
)

// HasNightAction reports whether the role submits a night action.
func (k RoleKind) HasNightAction() bool {
	switch k {
	case RoleMafia, RoleDoctor, RoleDetective:
		return true
	default:
		return false
	}
}

// Action returns the night action the role performs, or "" for civilians.
func (k RoleKind) Action() ActionKind {
	switch k {
	case RoleMafia:
		return ActionKill
	case RoleDoctor:
		return ActionHeal
	case RoleDetective:
		return ActionInvestigate
	default:
		return ""
	}
}

// ActionKind names a concealed night action.
type ActionKind string

const (
	ActionKill        ActionKind = "kill"
	ActionHeal        ActionKind = "heal"
	ActionInvestigate ActionKind = "investigate"
)

// Valid reports whether the action is one of the known kinds.
func (a ActionKind) Valid() bool {
	switch a {
	case ActionKill, ActionHeal, ActionInvestigate:
		return true
	default:
		return false
	}
}

// Winner is the outcome of a win-condition check.
type Winner string

const (
	WinnerNone      Winner = ""
	WinnerCivilians Winner = "civilians"
	WinnerMafia     Winner = "mafia"
)
