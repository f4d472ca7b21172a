// Package ws relays generation streams over a WebSocket connection for
// clients that keep one socket open instead of one SSE request per turn.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sitesmith/backend/internal/domain/generate"
	"github.com/sitesmith/backend/internal/infrastructure/logging"
	"github.com/sitesmith/backend/internal/infrastructure/monitoring"
	"github.com/sitesmith/backend/internal/shared/types"
)

const turnTimeout = 5 * time.Minute

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is one client request on the socket.
type Message struct {
	Type      string `json:"type"`
	AppID     uint64 `json:"appId,omitempty"`
	MessageID uint64 `json:"messageId,omitempty"`
	UserID    uint64 `json:"userId,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
}

// Handler manages WebSocket connections.
type Handler struct {
	router  *generate.Router
	metrics *monitoring.Metrics
	log     *logging.Logger
}

// NewHandler creates a WebSocket handler.
func NewHandler(router *generate.Router, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	return &Handler{router: router, metrics: metrics, log: log}
}

// HandleConnection upgrades the request and serves messages until the client
// disconnects. Turns run sequentially per connection.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	reqCtx := c.Request.Context()
	h.send(conn, gin.H{"type": "system", "message": "connected"})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "generate":
			h.relay(conn, reqCtx, func(ctx context.Context) (<-chan types.StreamEvent, error) {
				return h.router.Dispatch(ctx, msg.AppID, msg.UserID, msg.Prompt)
			})
		case "retry":
			h.relay(conn, reqCtx, func(ctx context.Context) (<-chan types.StreamEvent, error) {
				return h.router.Retry(ctx, msg.MessageID, msg.UserID)
			})
		case "ping":
			h.send(conn, gin.H{"type": "pong"})
		default:
			h.sendError(conn, "unknown message type")
		}
	}
}

// relay runs one turn and forwards its events onto the socket.
func (h *Handler) relay(conn *websocket.Conn, parent context.Context, start func(context.Context) (<-chan types.StreamEvent, error)) {
	ctx, cancel := context.WithTimeout(parent, turnTimeout)
	defer cancel()

	events, err := start(ctx)
	if err != nil {
		h.sendError(conn, err.Error())
		return
	}

	for ev := range events {
		if h.metrics != nil {
			h.metrics.StreamEvents.WithLabelValues(string(ev.Kind)).Inc()
		}
		payload := gin.H{
			"type":      string(ev.Kind),
			"timestamp": time.Now().Unix(),
		}
		if ev.Content != "" {
			payload["content"] = ev.Content
		}
		if ev.Tool != "" {
			payload["tool"] = ev.Tool
			payload["args"] = ev.Args
			payload["index"] = ev.Index
		}
		if ev.Result != "" {
			payload["result"] = ev.Result
		}
		if ev.Error != "" {
			payload["message"] = ev.Error
		}
		if err := h.send(conn, payload); err != nil {
			// Client is gone; stop the turn instead of streaming into the void.
			cancel()
			for range events {
			}
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, data any) error {
	return conn.WriteJSON(data)
}

func (h *Handler) sendError(conn *websocket.Conn, msg string) error {
	return h.send(conn, gin.H{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
