package board

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"minute/internal/models"
	"minute/internal/ordering"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Message types sent to board clients.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
)

// Message is the envelope written to every board connection.
type Message struct {
	Type   string          `json:"type"`
	Orders []models.Order  `json:"orders,omitempty"`
	Event  *ordering.Event `json:"event,omitempty"`
}

// SnapshotFunc loads the open orders a new client starts from.
type SnapshotFunc func(ctx context.Context) ([]models.Order, error)

// Hub pushes order changes to connected kitchen displays.
type Hub struct {
	snapshot SnapshotFunc
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a hub. snapshot may be nil, in which case new clients get
// an empty snapshot.
func NewHub(snapshot SnapshotFunc, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		snapshot: snapshot,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The board is read-only and unauthenticated.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Notify forwards created and status-changed events to every client.
func (h *Hub) Notify(_ context.Context, ev ordering.Event) {
	if ev.Type != ordering.EventOrderCreated && ev.Type != ordering.EventOrderStatusChanged {
		return
	}
	data, err := json.Marshal(Message{Type: MessageEvent, Event: &ev})
	if err != nil {
		h.logger.Error("failed to marshal board event", zap.Error(err))
		return
	}
	h.broadcast(data)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.enqueue(data)
	}
}

// register adds c and queues its first message under the same lock, so a
// client that has read its snapshot is guaranteed to see every later event.
func (h *Hub) register(c *client, first []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	c.enqueue(first)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeWS upgrades the request and streams the board to the client.
func (h *Hub) ServeWS(c *gin.Context) {
	var orders []models.Order
	if h.snapshot != nil {
		var err error
		orders, err = h.snapshot(c.Request.Context())
		if err != nil {
			h.logger.Error("failed to load board snapshot", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load open orders"})
			return
		}
	}
	snapshot, err := json.Marshal(Message{Type: MessageSnapshot, Orders: orders})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade board connection", zap.Error(err))
		return
	}

	cl := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(cl, snapshot)

	go cl.writePump()
	go cl.readPump()
}

// client is one websocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// enqueue drops the message when the client can't keep up; the board must
// never slow down order handling. Callers hold the hub lock.
func (c *client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		c.hub.logger.Warn("board client buffer full, dropping message")
	}
}

// readPump discards client messages and notices disconnects.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Info("board connection closed", zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
