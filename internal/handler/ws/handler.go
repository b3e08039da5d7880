package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	channelModel "github.com/zhouzirui/resume-studio/backend/internal/model/channel"
	"github.com/zhouzirui/resume-studio/backend/internal/service/channel"
	"github.com/zhouzirui/resume-studio/backend/internal/service/session"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second

	msgSessionExpired = "Your session has expired. Please refresh."
)

// Sessions 是 WebSocket 连接依赖的会话操作
type Sessions interface {
	IsValid(token string) bool
	Bind(token string, conn session.Conn) error
	Channel(token string) (session.Channel, bool)
}

// Dispatcher 接收客户端消息，由会话的通道处理器实现
type Dispatcher interface {
	Submit(msg channelModel.Inbound) error
}

// Handler WebSocket 处理器
type Handler struct {
	sessions Sessions
	upgrader websocket.Upgrader
}

// New 创建 WebSocket 处理器
func New(sessions Sessions) *Handler {
	return &Handler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册 WebSocket 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

// conn 串行化写操作，gorilla 连接不支持并发写
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

var _ session.Conn = (*conn)(nil)

func (c *conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer wsConn.Close()

	if sessionID == "" || !h.sessions.IsValid(sessionID) {
		log.Printf("[ws] rejected session=%q", sessionID)
		closeWith(wsConn, websocket.ClosePolicyViolation, "Invalid or missing session_id")
		return
	}

	ch, ok := h.sessions.Channel(sessionID)
	if !ok {
		closeWith(wsConn, websocket.ClosePolicyViolation, "Invalid or missing session_id")
		return
	}
	dispatcher, ok := ch.(Dispatcher)
	if !ok {
		log.Printf("[ws] channel for session=%s cannot accept messages", sessionID)
		closeWith(wsConn, websocket.CloseInternalServerErr, "channel unavailable")
		return
	}

	c := &conn{ws: wsConn}
	if err := h.sessions.Bind(sessionID, c); err != nil {
		log.Printf("[ws] bind session=%s failed: %v", sessionID, err)
		closeWith(wsConn, websocket.ClosePolicyViolation, "Invalid or missing session_id")
		return
	}
	defer ch.Detach(c)

	log.Printf("[ws] connected session=%s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	wsConn.SetReadDeadline(time.Now().Add(readTimeout))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, c)

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Printf("[ws] read error session=%s: %v", sessionID, err)
			} else {
				log.Printf("[ws] disconnected session=%s", sessionID)
			}
			return
		}

		wsConn.SetReadDeadline(time.Now().Add(readTimeout))

		var msg channelModel.Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			if writeErr := c.WriteJSON(channelModel.Error("Invalid message format")); writeErr != nil {
				return
			}
			continue
		}

		if err := dispatcher.Submit(msg); err != nil {
			// 会话已被删除或过期，通知客户端后断开
			if errors.Is(err, channel.ErrClosed) {
				log.Printf("[ws] session=%s closed, dropping connection", sessionID)
				c.WriteJSON(channelModel.Error(msgSessionExpired))
				closeWith(wsConn, websocket.ClosePolicyViolation, "session expired")
				return
			}
			log.Printf("[ws] session=%s message type=%q not handled: %v", sessionID, msg.Type, err)
		}
	}
}

func (h *Handler) pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func closeWith(wsConn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := wsConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err != nil {
		log.Printf("[ws] write close frame failed: %v", err)
	}
}
