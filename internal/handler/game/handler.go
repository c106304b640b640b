package game

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
	"github.com/zhouzirui/z-mafia/backend/internal/model/profile"
	"github.com/zhouzirui/z-mafia/backend/internal/service/mafia"
	"github.com/zhouzirui/z-mafia/backend/pkg/utils"
)

// Service 是 HTTP 层依赖的对局操作集合。
type Service interface {
	NewGame(ctx context.Context, key int64) (game.Snapshot, error)
	Join(ctx context.Context, key, playerID int64, name string) error
	Leave(ctx context.Context, key, playerID int64) error
	ForceStart(ctx context.Context, key int64) error
	SubmitAction(ctx context.Context, key, actorID int64, action game.ActionKind, targetID int64) (*game.Investigation, error)
	Vote(ctx context.Context, key, voterID, targetID int64) error
	Snapshot(ctx context.Context, key int64) (game.Snapshot, error)
	PrivateView(ctx context.Context, key, playerID int64) (game.PrivateView, error)
	Rules() game.Rules
}

// Handler 对局服务的HTTP处理器
type Handler struct {
	games    Service
	profiles profile.Store
	logger   *zap.Logger
}

// New 创建对局处理器。profiles 可以为 nil。
func New(games Service, profiles profile.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{games: games, profiles: profiles, logger: logger}
}

// RegisterRoutes 注册对局相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rules", h.handleRules)
	r.Post("/games", h.handleCreateGame)
	r.Get("/games/{key}", h.handleSnapshot)
	r.Post("/games/{key}/players", h.handleJoin)
	r.Delete("/games/{key}/players/{playerID}", h.handleLeave)
	r.Get("/games/{key}/players/{playerID}", h.handlePrivateView)
	r.Post("/games/{key}/start", h.handleStart)
	r.Post("/games/{key}/actions", h.handleAction)
	r.Post("/games/{key}/votes", h.handleVote)
	if h.profiles != nil {
		r.Get("/profiles/{playerID}", h.handleProfile)
	}
}

// handleRules 返回规则说明
func (h *Handler) handleRules(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.games.Rules())
}

// handleCreateGame 创建对局
func (h *Handler) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionKey int64 `json:"sessionKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if payload.SessionKey == 0 {
		utils.RespondError(w, http.StatusBadRequest, "bad_request", "sessionKey is required")
		return
	}

	snap, err := h.games.NewGame(r.Context(), payload.SessionKey)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, snap)
}

// handleSnapshot 返回公开的对局状态
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	key, ok := pathID(w, r, "key")
	if !ok {
		return
	}
	snap, err := h.games.Snapshot(r.Context(), key)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleJoin 加入对局
func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	key, ok := pathID(w, r, "key")
	if !ok {
		return
	}
	var payload struct {
		PlayerID int64  `json:"playerId"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if payload.PlayerID == 0 {
		utils.RespondError(w, http.StatusBadRequest, "bad_request", "playerId is required")
		return
	}

	if err := h.games.Join(r.Context(), key, payload.PlayerID, payload.Name); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "joined"})
}

// handleLeave 离开尚未开始的对局
func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	key, ok := pathID(w, r, "key")
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	if err := h.games.Leave(r.Context(), key, playerID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "left"})
}

// handlePrivateView 返回玩家自己的身份信息
func (h *Handler) handlePrivateView(w http.ResponseWriter, r *http.Request) {
	key, ok := pathID(w, r, "key")
	if !ok {
		return
	}
	playerID, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	view, err := h.games.PrivateView(r.Context(), key, playerID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// handleStart 立即开始对局
func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	key, ok := pathID(w, r, "key")
	if !ok {
		return
	}
	if err := h.games.ForceStart(r.Context(), key); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// handleAction 提交夜间行动
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	key, ok := pathID(w, r, "key")
	if !ok {
		return
	}
	var payload struct {
		ActorID  int64           `json:"actorId"`
		Action   game.ActionKind `json:"action"`
		TargetID int64           `json:"targetId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	res, err := h.games.SubmitAction(r.Context(), key, payload.ActorID, payload.Action, payload.TargetID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	body := map[string]any{"status": "accepted"}
	if res != nil {
		body["isMafia"] = res.IsMafia
	}
	utils.RespondJSON(w, http.StatusAccepted, body)
}

// handleVote 提交白天投票
func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	key, ok := pathID(w, r, "key")
	if !ok {
		return
	}
	var payload struct {
		VoterID  int64 `json:"voterId"`
		TargetID int64 `json:"targetId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	if err := h.games.Vote(r.Context(), key, payload.VoterID, payload.TargetID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleProfile 返回玩家档案
func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathID(w, r, "playerID")
	if !ok {
		return
	}
	p, err := h.profiles.FindByID(r.Context(), playerID)
	if errors.Is(err, profile.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "profile_not_found", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("load profile failed", zap.Int64("player", playerID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal", "failed to load profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("game request failed", zap.Error(err))
	}
	utils.RespondError(w, status, mafia.CodeOf(err), err.Error())
}

// statusFor 将引擎错误分类映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, mafia.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, mafia.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, mafia.ErrSessionEnded):
		return http.StatusGone
	}

	switch mafia.KindOf(err) {
	case mafia.KindValidation:
		return http.StatusConflict
	case mafia.KindLookup:
		return http.StatusNotFound
	case mafia.KindCapacity:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "bad_request", "invalid "+name)
		return 0, false
	}
	return id, true
}
