package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"go-inventory-tracker/pkg/metrics"

	"github.com/gofiber/contrib/websocket"
)

// Event is the JSON envelope pushed to every connected client.
type Event struct {
	Type    string      `json:"type"`
	Action  string      `json:"action"`
	Data    interface{} `json:"data,omitempty"`
	User    string      `json:"user,omitempty"`
	Message string      `json:"message,omitempty"`
}

const (
	ActionProductCreated   = "product_created"
	ActionProductUpdated   = "product_updated"
	ActionProductDeleted   = "product_deleted"
	ActionProductsImported = "products_imported"
)

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// clientConn is a Conn that can also be read from, as *websocket.Conn is.
type clientConn interface {
	Conn
	ReadMessage() (messageType int, p []byte, err error)
}

type Hub struct {
	Clients    map[Conn]bool
	Register   chan Conn
	Unregister chan Conn
	Broadcast  chan []byte
	mutex      sync.Mutex
	log        *slog.Logger
	stopped    chan struct{}
	stopOnce   sync.Once
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		Clients:    make(map[Conn]bool),
		Register:   make(chan Conn),
		Unregister: make(chan Conn),
		Broadcast:  make(chan []byte, 64),
		log:        log,
		stopped:    make(chan struct{}),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.stopped) })
			h.mutex.Lock()
			for conn := range h.Clients {
				conn.Close()
				delete(h.Clients, conn)
			}
			metrics.WSClients.Set(0)
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.Clients[conn] = true
			metrics.WSClients.Set(float64(len(h.Clients)))
			h.mutex.Unlock()
			h.log.Debug("websocket client connected")

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			metrics.WSClients.Set(float64(len(h.Clients)))
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.Clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			metrics.WSClients.Set(float64(len(h.Clients)))
			h.mutex.Unlock()
		}
	}
}

// Publish queues ev for broadcast. It never blocks the caller; when the
// queue is full the event is dropped.
func (h *Hub) Publish(ev Event) {
	if ev.Type == "" {
		ev.Type = "stock_update"
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal websocket event", "action", ev.Action, "error", err)
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		h.log.Warn("websocket broadcast queue full, dropping event", "action", ev.Action)
	}
}

// ClientCount is safe to call from any goroutine.
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}

// Serve registers an upgraded connection and blocks until the client goes
// away. Clients only listen; anything they send is discarded.
func (h *Hub) Serve(c *websocket.Conn) {
	h.serve(c)
}

func (h *Hub) serve(c clientConn) {
	select {
	case h.Register <- c:
	case <-h.stopped:
		c.Close()
		return
	}
	defer func() {
		select {
		case h.Unregister <- c:
		case <-h.stopped:
		}
	}()

	for {
		// Keep alive loop
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
