package game

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
	"github.com/zhouzirui/z-mafia/backend/internal/model/profile"
	"github.com/zhouzirui/z-mafia/backend/internal/service/mafia"
	"github.com/zhouzirui/z-mafia/backend/pkg/utils"
)

type keepOrder struct{}

func (keepOrder) Shuffle(int, func(i, j int)) {}

func setupRouter(t *testing.T) (*chi.Mux, *profile.MemoryStore) {
	t.Helper()
	profiles := profile.NewMemoryStore()
	svc := mafia.NewService(mafia.Options{
		NewShuffler: func() mafia.Shuffler { return keepOrder{} },
		Profiles:    profiles,
	})
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Close)

	r := chi.NewRouter()
	New(svc, profiles, nil).RegisterRoutes(r)
	return r, profiles
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) utils.ErrorBody {
	t.Helper()
	var body utils.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

// seatPlayers creates game 100 with players 1..n in join order.
func seatPlayers(t *testing.T, r http.Handler, n int) {
	t.Helper()
	resp := do(t, r, http.MethodPost, "/games", map[string]int64{"sessionKey": 100})
	require.Equal(t, http.StatusCreated, resp.Code)
	for id := 1; id <= n; id++ {
		resp = do(t, r, http.MethodPost, "/games/100/players", map[string]any{"playerId": id, "name": "p"})
		require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	}
}

func TestCreateGame(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(t, r, http.MethodPost, "/games", map[string]int64{"sessionKey": 100})
	require.Equal(t, http.StatusCreated, resp.Code)
	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, game.PhaseWaiting, snap.Phase)
	assert.Equal(t, int64(100), snap.SessionKey)

	resp = do(t, r, http.MethodPost, "/games", map[string]int64{"sessionKey": 100})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "already_exists", decodeError(t, resp).Code)

	resp = do(t, r, http.MethodPost, "/games", map[string]int64{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUnknownGame(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(t, r, http.MethodGet, "/games/404", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "session_not_found", decodeError(t, resp).Code)

	resp = do(t, r, http.MethodGet, "/games/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestJoinLeaveAndStart(t *testing.T) {
	r, profiles := setupRouter(t)
	seatPlayers(t, r, 2)

	resp := do(t, r, http.MethodPost, "/games/100/players", map[string]any{"playerId": 2, "name": "again"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "already_joined", decodeError(t, resp).Code)

	resp = do(t, r, http.MethodPost, "/games/100/start", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "insufficient_players", decodeError(t, resp).Code)

	resp = do(t, r, http.MethodPost, "/games/100/players", map[string]any{"playerId": 3, "name": "carol"})
	require.Equal(t, http.StatusAccepted, resp.Code)
	resp = do(t, r, http.MethodDelete, "/games/100/players/3", nil)
	require.Equal(t, http.StatusAccepted, resp.Code)
	resp = do(t, r, http.MethodPost, "/games/100/players", map[string]any{"playerId": 4, "name": "dave"})
	require.Equal(t, http.StatusAccepted, resp.Code)

	resp = do(t, r, http.MethodPost, "/games/100/start", nil)
	require.Equal(t, http.StatusAccepted, resp.Code)

	resp = do(t, r, http.MethodGet, "/games/100", nil)
	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, game.PhaseNight, snap.Phase)
	assert.Equal(t, []int64{1, 2, 4}, snap.Alive)

	name, err := profiles.DisplayName(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "dave", name)
}

func TestNightActionsAndVotes(t *testing.T) {
	r, _ := setupRouter(t)
	// mafia 4, doctor 3, detective 2, civilian 1
	seatPlayers(t, r, 4)
	require.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, "/games/100/start", nil).Code)

	resp := do(t, r, http.MethodPost, "/games/100/actions", map[string]any{"actorId": 1, "action": "kill", "targetId": 2})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "role_mismatch", decodeError(t, resp).Code)

	resp = do(t, r, http.MethodPost, "/games/100/actions", map[string]any{"actorId": 4, "action": "poison", "targetId": 2})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, r, http.MethodPost, "/games/100/actions", map[string]any{"actorId": 2, "action": "investigate", "targetId": 4})
	require.Equal(t, http.StatusAccepted, resp.Code)
	var investigation struct {
		IsMafia bool `json:"isMafia"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&investigation))
	assert.True(t, investigation.IsMafia)

	resp = do(t, r, http.MethodPost, "/games/100/votes", map[string]any{"voterId": 1, "targetId": 4})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "invalid_phase", decodeError(t, resp).Code)

	require.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, "/games/100/actions",
		map[string]any{"actorId": 4, "action": "kill", "targetId": 1}).Code)
	require.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, "/games/100/actions",
		map[string]any{"actorId": 3, "action": "heal", "targetId": 3}).Code)

	resp = do(t, r, http.MethodGet, "/games/100", nil)
	var snap game.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, game.PhaseDay, snap.Phase)
	assert.Equal(t, []int64{1}, snap.Dead)

	resp = do(t, r, http.MethodPost, "/games/100/votes", map[string]any{"voterId": 1, "targetId": 4})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "dead_actor", decodeError(t, resp).Code)

	for _, voter := range []int64{2, 3, 4} {
		resp = do(t, r, http.MethodPost, "/games/100/votes", map[string]any{"voterId": voter, "targetId": 4})
		require.Equal(t, http.StatusAccepted, resp.Code)
	}

	resp = do(t, r, http.MethodGet, "/games/100", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code, "a finished game is removed")
}

func TestPrivateViewAndProfile(t *testing.T) {
	r, _ := setupRouter(t)
	seatPlayers(t, r, 3)
	require.Equal(t, http.StatusAccepted, do(t, r, http.MethodPost, "/games/100/start", nil).Code)

	resp := do(t, r, http.MethodGet, "/games/100/players/2", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var view game.PrivateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, game.RoleDoctor, view.Role)

	resp = do(t, r, http.MethodGet, "/games/100/players/9", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(t, r, http.MethodGet, "/profiles/1", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var p profile.Profile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, int64(1), p.PlayerID)

	resp = do(t, r, http.MethodGet, "/profiles/77", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestRules(t *testing.T) {
	r, _ := setupRouter(t)
	resp := do(t, r, http.MethodGet, "/rules", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var rules game.Rules
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rules))
	assert.Equal(t, 3, rules.MinPlayers)
	assert.Equal(t, 10, rules.MaxPlayers)
	assert.NotEmpty(t, rules.Roles)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{mafia.ErrInvalidPhase, http.StatusConflict},
		{mafia.ErrInvalidAction, http.StatusBadRequest},
		{mafia.ErrSessionNotFound, http.StatusNotFound},
		{mafia.ErrSessionEnded, http.StatusGone},
		{mafia.ErrAlreadyExists, http.StatusConflict},
		{mafia.ErrRosterFull, http.StatusUnprocessableEntity},
		{mafia.ErrInvariantViolation, http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
