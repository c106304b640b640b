package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mafia/backend/internal/model/game"
	"github.com/zhouzirui/z-mafia/backend/internal/service/mafia"
)

// ErrNoSubscriber 表示没有连接订阅该消息的接收方。
var ErrNoSubscriber = errors.New("no subscriber for recipient")

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
	sendBuffer   = 32
)

// GameService 是连接上的玩家可以触发的对局操作。
type GameService interface {
	SubmitAction(ctx context.Context, key, actorID int64, action game.ActionKind, targetID int64) (*game.Investigation, error)
	Vote(ctx context.Context, key, voterID, targetID int64) error
}

// Hub 维护 WebSocket 连接，并把对局事件推送给对应的会话或玩家。
type Hub struct {
	games    GameService
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
}

type client struct {
	id         string
	sessionKey int64
	playerID   int64
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// NewHub 创建 Hub。
func NewHub(games GameService, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		games:  games,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[int64]map[*client]struct{}),
	}
}

// Attach 设置处理玩家操作的对局服务，需在开始服务前调用。
func (h *Hub) Attach(games GameService) {
	h.games = games
}

// RegisterRoutes 注册 WebSocket 路由。
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionKey}/{playerID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type     string          `json:"type"`
	Action   game.ActionKind `json:"action,omitempty"`
	TargetID int64           `json:"targetId"`
}

type outgoingMessage struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	SessionKey int64  `json:"sessionKey,omitempty"`
	Data       any    `json:"data,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Notify 实现 mafia.Notifier。
func (h *Hub) Notify(_ context.Context, env mafia.Envelope) error {
	payload, err := json.Marshal(outgoingMessage{
		Type:       "event",
		ID:         env.ID,
		SessionKey: env.To.SessionKey,
		Data:       env.Event,
		Timestamp:  env.CreatedAt.Unix(),
	})
	if err != nil {
		return err
	}

	h.mu.RLock()
	var targets []*client
	for c := range h.clients[env.To.SessionKey] {
		if env.To.IsPlayer() && c.playerID != env.To.PlayerID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return ErrNoSubscriber
	}
	for _, c := range targets {
		h.enqueue(c, payload)
	}
	return nil
}

// Subscribers 返回某个会话当前的连接数。
func (h *Hub) Subscribers(sessionKey int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionKey])
}

func (h *Hub) enqueue(c *client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("client buffer full, dropping message",
			zap.String("client", c.id),
			zap.Int64("session", c.sessionKey),
			zap.Int64("player", c.playerID),
		)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.sessionKey]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.sessionKey] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.sessionKey]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.sessionKey)
		}
	}
	h.mu.Unlock()
	c.close()
}

// handleWebSocket 处理 WebSocket 连接
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionKey, err := strconv.ParseInt(chi.URLParam(r, "sessionKey"), 10, 64)
	if err != nil {
		http.Error(w, "invalid sessionKey", http.StatusBadRequest)
		return
	}
	playerID, err := strconv.ParseInt(chi.URLParam(r, "playerID"), 10, 64)
	if err != nil || playerID == 0 {
		http.Error(w, "invalid playerID", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:         uuid.NewString(),
		sessionKey: sessionKey,
		playerID:   playerID,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
	h.register(c)
	h.logger.Info("websocket connected",
		zap.String("client", c.id),
		zap.Int64("session", sessionKey),
		zap.Int64("player", playerID),
	)

	go h.writePump(c)
	h.readLoop(r.Context(), c)
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer h.unregister(c)

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, c, msg)
	}
}

func (h *Hub) handleMessage(ctx context.Context, c *client, msg inboundMessage) {
	if h.games == nil {
		h.reply(c, "error", map[string]string{"message": "game service unavailable", "code": "unavailable"})
		return
	}

	var err error
	switch msg.Type {
	case "action":
		_, err = h.games.SubmitAction(ctx, c.sessionKey, c.playerID, msg.Action, msg.TargetID)
	case "vote":
		err = h.games.Vote(ctx, c.sessionKey, c.playerID, msg.TargetID)
	default:
		h.reply(c, "error", map[string]string{"message": "unsupported message type", "code": "bad_request"})
		return
	}

	if err != nil {
		h.reply(c, "error", map[string]string{"message": err.Error(), "code": mafia.CodeOf(err)})
		return
	}
	h.reply(c, "ack", map[string]string{"type": msg.Type})
}

func (h *Hub) reply(c *client, kind string, data any) {
	payload, err := json.Marshal(outgoingMessage{
		Type:       kind,
		SessionKey: c.sessionKey,
		Data:       data,
		Timestamp:  time.Now().Unix(),
	})
	if err != nil {
		h.logger.Error("encode reply failed", zap.Error(err))
		return
	}
	h.enqueue(c, payload)
}

// writePump 是连接上唯一的写入方，同时负责定期发送 ping。
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Debug("websocket write failed", zap.String("client", c.id), zap.Error(err))
				h.unregister(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}
