package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/api/middleware/auth"
)

// ConnectionHub accepts upgraded chat subscriptions
type ConnectionHub interface {
	HandleWebSocketConnection(conn *websocket.Conn, chatID, userID int64, sessionID string)
	CheckInactiveClients(maxIdle time.Duration) int
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub    ConnectionHub
	secret string
	logger *zap.SugaredLogger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub ConnectionHub, secret string, logger *zap.SugaredLogger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, secret: secret, logger: logger}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StartPingPongMonitor periodically drops clients that stopped answering pings
func (h *WebSocketHandler) StartPingPongMonitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if closed := h.hub.CheckInactiveClients(90 * time.Second); closed > 0 {
					h.logger.Infof("Closed %d inactive WebSocket connections", closed)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	h.logger.Info("Started ping/pong monitor for inactive client detection")
}

// HandleConnection subscribes the caller to a chat's events. The token may
// come from the JWT middleware or the token query parameter.
func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		h.logger.Warnf("Connection attempt with invalid chat ID %q", c.Param("chatId"))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid chat ID")
	}

	userID, ok := c.Get(auth.ContextUserID).(int64)
	if !ok || userID == 0 {
		claims, err := auth.ParseToken(c.QueryParam("token"), h.secret)
		if err != nil {
			h.logger.Warnf("WebSocket connection rejected: %v", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized: Invalid token")
		}
		userID = claims.UserID
	}

	sessionID := c.QueryParam("sessionId")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Errorf("Failed to upgrade connection: %v", err)
		return nil
	}

	h.hub.HandleWebSocketConnection(conn, chatID, userID, sessionID)
	return nil
}
