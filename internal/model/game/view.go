package game

import "time"

// Snapshot is the public view of a session. It never carries roles.
type Snapshot struct {
	SessionKey int64     `json:"sessionKey"`
	Phase      Phase     `json:"phase"`
	Round      int       `json:"round"`
	Alive      []int64   `json:"alive"`
	Dead       []int64   `json:"dead"`
	VotesCast  int       `json:"votesCast"`
	Deadline   time.Time `json:"deadline,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Investigation is a detective's night result.
type Investigation struct {
	Round    int   `json:"round"`
	TargetID int64 `json:"targetId"`
	IsMafia  bool  `json:"isMafia"`
}

// PrivateView is what a single player is allowed to know about their own role.
type PrivateView struct {
	SessionKey         int64           `json:"sessionKey"`
	PlayerID           int64           `json:"playerId"`
	Role               RoleKind        `json:"role,omitempty"`
	Alive              bool            `json:"alive"`
	ActionUsed         bool            `json:"actionUsed"`
	SelfHealsRemaining *int            `json:"selfHealsRemaining,omitempty"`
	Investigations     []Investigation `json:"investigations,omitempty"`
}

// Rules describes the fixed ruleset served to clients.
type Rules struct {
	MinPlayers   int           `json:"minPlayers"`
	MaxPlayers   int           `json:"maxPlayers"`
	JoinTimeout  time.Duration `json:"joinTimeout"`
	NightTimeout time.Duration `json:"nightTimeout"`
	DayTimeout   time.Duration `json:"dayTimeout"`
	Roles        []RoleInfo    `json:"roles"`
}

// RoleInfo documents one role.
type RoleInfo struct {
	Kind        RoleKind   `json:"kind"`
	Action      ActionKind `json:"action,omitempty"`
	Description string     `json:"description"`
	MinRoster   int        `json:"minRoster"`
}

// RoleCatalog lists every role with the roster size at which it appears.
func RoleCatalog() []RoleInfo {
	return []RoleInfo{
		{Kind: RoleMafia, Action: ActionKill, MinRoster: 3,
			Description: "Head of the family. Picks one player to eliminate each night."},
		{Kind: RoleDoctor, Action: ActionHeal, MinRoster: 3,
			Description: "Heals one player each night. May heal themself once per game."},
		{Kind: RoleDetective, Action: ActionInvestigate, MinRoster: 4,
			Description: "Checks one player each night and learns whether they are the mafia."},
		{Kind: RoleCivilian, MinRoster: 3,
			Description: "Sleeps through the night. Finds and votes out the mafia by day."},
	}
}

// Describe returns the catalog description for a role kind.
func Describe(kind RoleKind) string {
	for _, info := range RoleCatalog() {
		if info.Kind == kind {
			return info.Description
		}
	}
	return ""
}
