package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-signalcore/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// Hub is the server side of the feed: it upgrades HTTP requests and
// broadcasts events to every connected client. A slow client loses events
// rather than stalling the others.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte

	// PingInterval keeps idle connections alive. Defaults to 20s.
	PingInterval time.Duration
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*websocket.Conn]chan []byte),
		PingInterval: 20 * time.Second,
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes ev and queues it for every client.
func (h *Hub) Broadcast(ev model.Event) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default: // slow client
		}
	}
	return nil
}

func (h *Hub) register(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 256)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection and runs its write pump.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("upgrade failed", "component", "feed_hub", "error", err)
		return
	}
	slog.Info("client connected", "component", "feed_hub", "remote", r.RemoteAddr)

	ch := h.register(conn)
	defer func() {
		h.unregister(conn)
		conn.Close()
		slog.Info("client disconnected", "component", "feed_hub", "remote", r.RemoteAddr)
	}()

	// drain client frames so close and pong are processed
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.PingInterval)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}
