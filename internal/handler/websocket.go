package handler

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/CageChen/modmirror/internal/mirror"
	"github.com/CageChen/modmirror/internal/watcher"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local tool, any origin
	},
}

// Message types pushed to clients.
const (
	MsgRunStarted   = "runStarted"
	MsgRunCompleted = "runCompleted"
	MsgSourceChange = "sourceChange"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHandler pushes run and source events to connected clients.
type WSHandler struct {
	clients map[*websocket.Conn]*wsClient
	mu      sync.RWMutex
	log     *zap.Logger
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		clients: make(map[*websocket.Conn]*wsClient),
		log:     logger,
	}
}

// HandleWS handles WebSocket upgrade and connection
func (h *WSHandler) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.String("op", "ws"), zap.Error(err))
		return
	}
	defer func() {
		h.removeClient(conn)
		_ = conn.Close()
	}()

	h.addClient(conn)

	// Keep connection alive; clients never send anything meaningful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *WSHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnRunStarted announces a run.
func (h *WSHandler) OnRunStarted() {
	h.broadcast(WSMessage{Type: MsgRunStarted})
}

// OnRunCompleted publishes the report of a finished run.
func (h *WSHandler) OnRunCompleted(r *mirror.Report, err error) {
	payload := gin.H{"report": r}
	if err != nil {
		payload["error"] = err.Error()
	}
	h.broadcast(WSMessage{Type: MsgRunCompleted, Payload: payload})
}

// OnSourceChange publishes a batch of source changes.
func (h *WSHandler) OnSourceChange(events []watcher.Event) {
	h.broadcast(WSMessage{Type: MsgSourceChange, Payload: events})
}

func (h *WSHandler) addClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = &wsClient{conn: conn}
}

func (h *WSHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (h *WSHandler) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warn("encode websocket message", zap.String("op", "ws"), zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.removeClient(client.conn)
		}
	}
}
