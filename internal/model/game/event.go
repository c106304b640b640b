package game

// EventKind tags an outbound game notification.
type EventKind string

const (
	EventGameCreated   EventKind = "game_created"
	EventPlayerJoined  EventKind = "player_joined"
	EventPlayerLeft    EventKind = "player_left"
	EventGameStarted   EventKind = "game_started"
	EventRoleAssigned  EventKind = "role_assigned"
	EventNightStarted  EventKind = "night_started"
	EventNightPrompt   EventKind = "night_prompt"
	EventInvestigation EventKind = "investigation"
	EventNightResult   EventKind = "night_result"
	EventDayStarted    EventKind = "day_started"
	EventVotePrompt    EventKind = "vote_prompt"
	EventDayResult     EventKind = "day_result"
	EventGameOver      EventKind = "game_over"
	EventGameCancelled EventKind = "game_cancelled"
)

// Terminal reports whether no further events follow k for its session.
func (k EventKind) Terminal() bool {
	return k == EventGameOver || k == EventGameCancelled
}

// Cancellation reasons.
const (
	ReasonNotEnoughPlayers = "not_enough_players"
	ReasonExpired          = "expired"
)

// Day outcomes.
const (
	OutcomeCondemned = "condemned"
	OutcomeTie       = "tie"
	OutcomeNoVotes   = "no_votes"
)

// PlayerRef identifies a player in an announcement. Name is filled at
// delivery time and may fall back to a generic label.
type PlayerRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// Event is the payload of every notification. Fields irrelevant to Kind are
// left zero.
type Event struct {
	Kind          EventKind      `json:"kind"`
	SessionKey    int64          `json:"sessionKey"`
	Round         int            `json:"round,omitempty"`
	Player        *PlayerRef     `json:"player,omitempty"`
	Players       []PlayerRef    `json:"players,omitempty"`
	Targets       []PlayerRef    `json:"targets,omitempty"`
	Action        ActionKind     `json:"action,omitempty"`
	Role          RoleKind       `json:"role,omitempty"`
	Description   string         `json:"description,omitempty"`
	Investigation *Investigation `json:"investigation,omitempty"`
	Outcome       string         `json:"outcome,omitempty"`
	Winner        Winner         `json:"winner,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Count         int            `json:"count,omitempty"`
	Max           int            `json:"max,omitempty"`
	Narration     string         `json:"narration,omitempty"`
}

// Refs converts ids to unnamed player references preserving order.
func Refs(ids []int64) []PlayerRef {
	refs := make([]PlayerRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, PlayerRef{ID: id})
	}
	return refs
}
