package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	sendBuffer = 64
)

// Message is one view-state update pushed to connected UIs.
type Message struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan Message
}

// Hub fans view-state updates out to every connected WebSocket client.
type Hub struct {
	upgrader websocket.Upgrader
	welcome  func() any

	mu      sync.RWMutex
	clients map[string]*wsClient
}

// NewHub builds a hub accepting connections from allowedOrigins. welcome, if
// set, supplies the payload of the first message each client receives.
func NewHub(allowedOrigins []string, welcome func() any) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || originAllowed(allowedOrigins, origin)
			},
		},
		welcome: welcome,
		clients: make(map[string]*wsClient),
	}
}

// Publish queues msg for every client. Clients whose buffer is full miss it.
func (h *Hub) Publish(typ, name string, payload any) {
	msg := Message{Type: typ, Name: name, Payload: payload, Timestamp: time.Now().Unix()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slog.Warn("websocket client too slow, dropping update", "client", c.id, "type", typ, "name", name)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{id: uuid.NewString(), conn: conn, send: make(chan Message, sendBuffer)}
	if h.welcome != nil {
		c.send <- Message{Type: "welcome", Payload: h.welcome(), Timestamp: time.Now().Unix()}
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	slog.Info("websocket client connected", "client", c.id)

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	delete(h.clients, c.id)
	close(c.send)
	h.mu.Unlock()
	slog.Info("websocket client disconnected", "client", c.id)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.conn.Close()
	}
}

// readPump only services control frames; clients do not send commands.
func (c *wsClient) readPump() {
	defer c.conn.Close()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
