package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNoListeners is returned when a chat has no connected front end
var ErrNoListeners = errors.New("no listeners connected to chat")

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	maxMessage   = 4096
	sendBuffer   = 256
	maxBatchSize = 10
)

// Hub keeps the WebSocket subscriptions of every chat and fans chat events
// out to them
type Hub struct {
	// Registered clients by chatID
	clients      map[int64]map[*Client]bool
	clientsMutex sync.RWMutex

	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	logger *zap.SugaredLogger
}

// Client is one WebSocket subscription to a chat
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	chatID    int64
	userID    int64
	sessionID string

	// Last time a pong was received from this client
	lastPongTime time.Time
	pongMutex    sync.RWMutex

	connectedAt time.Time
	closeOnce   sync.Once
}

// NewHub creates a hub bound to ctx. Run must be started before clients connect.
func NewHub(ctx context.Context, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		logger:     logger,
	}
}

// Run processes registrations until the hub context is cancelled
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clientsMutex.Lock()
			if h.clients[client.chatID] == nil {
				h.clients[client.chatID] = make(map[*Client]bool)
			}
			h.clients[client.chatID][client] = true
			h.clientsMutex.Unlock()
			h.logger.Infof("Client registered for chat %d, user %d, session %s", client.chatID, client.userID, client.sessionID)

		case client := <-h.unregister:
			h.clientsMutex.Lock()
			if chat, ok := h.clients[client.chatID]; ok {
				if _, ok := chat[client]; ok {
					delete(chat, client)
					client.closeSend()
				}
				if len(chat) == 0 {
					delete(h.clients, client.chatID)
				}
			}
			h.clientsMutex.Unlock()
			h.logger.Infof("Client unregistered for chat %d, user %d, session %s (connected %s)",
				client.chatID, client.userID, client.sessionID, time.Since(client.connectedAt).Round(time.Second))

		case <-h.ctx.Done():
			h.clientsMutex.Lock()
			for chatID, chat := range h.clients {
				for client := range chat {
					client.conn.Close()
				}
				delete(h.clients, chatID)
			}
			h.clientsMutex.Unlock()
			return
		}
	}
}

// BroadcastToChat queues message on every subscription of the chat. Slow
// clients with a full buffer miss the message.
func (h *Hub) BroadcastToChat(chatID int64, message []byte) error {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	chat := h.clients[chatID]
	if len(chat) == 0 {
		return ErrNoListeners
	}
	for client := range chat {
		select {
		case client.send <- message:
		default:
			h.logger.Warnf("Failed to send message to user %d in chat %d (buffer full)", client.userID, chatID)
		}
	}
	return nil
}

// Listeners returns how many subscriptions a chat has
func (h *Hub) Listeners(chatID int64) int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients[chatID])
}

// ActiveChats returns the number of chats with at least one subscription
func (h *Hub) ActiveChats() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// CheckInactiveClients closes connections that have not answered a ping
// within maxIdle. The read pump then unregisters them.
func (h *Hub) CheckInactiveClients(maxIdle time.Duration) int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	closed := 0
	for chatID, chat := range h.clients {
		for client := range chat {
			if client.isActive(maxIdle) {
				continue
			}
			h.logger.Warnf("Closing inactive connection for user %d in chat %d", client.userID, chatID)
			client.conn.Close()
			closed++
		}
	}
	return closed
}

// HandleWebSocketConnection subscribes an upgraded connection to a chat
func (h *Hub) HandleWebSocketConnection(conn *websocket.Conn, chatID, userID int64, sessionID string) {
	h.logger.Infof("New WebSocket connection: Chat ID: %d, User ID: %d, Session ID: %s", chatID, userID, sessionID)

	now := time.Now()
	client := &Client{
		hub:          h,
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
		chatID:       chatID,
		userID:       userID,
		sessionID:    sessionID,
		connectedAt:  now,
		lastPongTime: now,
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// isActive checks if the client answered a ping within the given duration
func (c *Client) isActive(duration time.Duration) bool {
	c.pongMutex.RLock()
	defer c.pongMutex.RUnlock()
	return time.Since(c.lastPongTime) <= duration
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.pongMutex.Lock()
		c.lastPongTime = time.Now()
		c.pongMutex.Unlock()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warnf("WebSocket read error for Chat: %d, User: %d, Session: %s - Error: %v",
					c.chatID, c.userID, c.sessionID, err)
			}
			return
		}
		c.handleMessage(message)
	}
}

// handleMessage answers application level pings. Game commands go through
// the HTTP API, so anything else is ignored.
func (c *Client) handleMessage(message []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		c.hub.logger.Debugf("Ignoring malformed message from user %d: %v", c.userID, err)
		return
	}

	switch msg.Type {
	case "ping":
		reply, _ := json.Marshal(map[string]interface{}{
			"type":      "pong",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		select {
		case c.send <- reply:
		default:
		}
	default:
		c.hub.logger.Debugf("Ignoring message type %q from user %d in chat %d", msg.Type, c.userID, c.chatID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.write(message) {
				return
			}
			if !c.flush() {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Warnf("Error sending ping for Chat: %d, User: %d - Error: %v", c.chatID, c.userID, err)
				return
			}
		}
	}
}

// flush sends up to maxBatchSize queued messages without waiting
func (c *Client) flush() bool {
	for i := 0; i < maxBatchSize; i++ {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return false
			}
			if !c.write(message) {
				return false
			}
		default:
			return true
		}
	}
	return true
}

func (c *Client) write(message []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.hub.logger.Errorf("Error writing message for Chat: %d, User: %d, Session: %s - Error: %v",
			c.chatID, c.userID, c.sessionID, err)
		return false
	}
	return true
}
