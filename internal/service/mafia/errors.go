package mafia

import "errors"

// Kind classifies engine errors so transports can map them without matching
// on individual sentinels.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindLookup
	KindCapacity
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindLookup:
		return "lookup"
	case KindCapacity:
		return "capacity"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is a classified engine error. Sentinels below are compared with
// errors.Is by identity.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidPhase   = newError(KindValidation, "invalid_phase", "action not allowed in the current phase")
	ErrDeadActor      = newError(KindValidation, "dead_actor", "player is not alive in this game")
	ErrAlreadyActed   = newError(KindValidation, "already_acted", "night action already submitted")
	ErrRoleMismatch   = newError(KindValidation, "role_mismatch", "role cannot perform this action")
	ErrQuotaExhausted = newError(KindValidation, "quota_exhausted", "self-heal already used")
	ErrSelfTarget     = newError(KindValidation, "self_target", "cannot target yourself")
	ErrUnknownTarget  = newError(KindValidation, "unknown_target", "target is not an alive player")
	ErrAlreadyJoined  = newError(KindValidation, "already_joined", "player already joined")
	ErrInvalidAction  = newError(KindValidation, "invalid_action", "unknown action")

	ErrSessionNotFound = newError(KindLookup, "session_not_found", "game not found")
	ErrSessionEnded    = newError(KindLookup, "session_ended", "game is over")
	ErrNotInGame       = newError(KindLookup, "not_in_game", "player is not in this game")
	ErrAlreadyExists   = newError(KindLookup, "already_exists", "a game already exists for this chat")

	ErrInsufficientPlayers = newError(KindCapacity, "insufficient_players", "at least 3 players are required")
	ErrRosterFull          = newError(KindCapacity, "roster_full", "maximum number of players reached")

	ErrInvariantViolation = newError(KindInvariant, "invariant_violation", "internal game state error")
)

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf returns the machine-readable code of err, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
