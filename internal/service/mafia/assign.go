package mafia

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
)

// MinPlayers is the smallest roster that can start a game.
const MinPlayers = 3

// Shuffler permutes a sequence in place. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// NewShuffler returns a fresh generator seeded from crypto/rand. Each role
// assignment gets its own source.
func NewShuffler() Shuffler {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])))
}

// AssignRoles distributes roles over aliveIDs: one mafia, one doctor, a
// detective when at least four players are present, civilians for the rest.
func AssignRoles(aliveIDs []int64, rng Shuffler) (map[int64]*Role, error) {
	if len(aliveIDs) < MinPlayers {
		return nil, ErrInsufficientPlayers
	}

	players := append([]int64(nil), aliveIDs...)
	rng.Shuffle(len(players), func(i, j int) {
		players[i], players[j] = players[j], players[i]
	})

	pop := func() int64 {
		last := players[len(players)-1]
		players = players[:len(players)-1]
		return last
	}

	roles := make(map[int64]*Role, len(aliveIDs))
	mafiaID := pop()
	roles[mafiaID] = newRole(mafiaID, game.RoleMafia)
	doctorID := pop()
	roles[doctorID] = newRole(doctorID, game.RoleDoctor)
	if len(players) >= 2 {
		detectiveID := pop()
		roles[detectiveID] = newRole(detectiveID, game.RoleDetective)
	}
	for _, id := range players {
		roles[id] = newRole(id, game.RoleCivilian)
	}
	return roles, nil
}
