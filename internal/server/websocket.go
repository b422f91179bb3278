package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeongseonghan/qam-channel/internal/experiment"
)

// writeWait bounds a single message write to a client.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProgressPayload is one finished sweep point of run ID.
type ProgressPayload struct {
	ID string `json:"id"`
	experiment.Progress
	Fraction float64 `json:"fraction"` // 0.0 to 1.0
}

// StatusPayload reports a run state change.
type StatusPayload struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WSHub manages WebSocket connections.
type WSHub struct {
	clients   map[*websocket.Conn]bool
	mu        sync.Mutex
	writeWait time.Duration
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:   make(map[*websocket.Conn]bool),
		writeWait: writeWait,
	}
}

// AddClient registers a new WebSocket connection.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	log.Printf("WebSocket client connected (%d total)", len(h.clients))
}

// RemoveClient removes a WebSocket connection.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[conn] {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	log.Printf("WebSocket client disconnected (%d remaining)", len(h.clients))
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends a message to all connected clients. Writes are
// serialized, a connection allows only one concurrent writer. A client that
// does not accept the message within the write deadline is dropped.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WebSocket marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("WebSocket write error: %v", err)
			delete(h.clients, conn)
			conn.Close()
			log.Printf("WebSocket client dropped (%d remaining)", len(h.clients))
		}
	}
}

// BroadcastProgress sends a finished sweep point to all clients.
func (h *WSHub) BroadcastProgress(id string, p experiment.Progress) {
	var fraction float64
	if p.Total > 0 {
		fraction = float64(p.Done) / float64(p.Total)
	}
	h.Broadcast(WSMessage{
		Type: "progress",
		Payload: ProgressPayload{
			ID:       id,
			Progress: p,
			Fraction: fraction,
		},
	})
}

// BroadcastStatus sends a status update to all clients.
func (h *WSHub) BroadcastStatus(id, status, message string) {
	h.Broadcast(WSMessage{
		Type: "status",
		Payload: StatusPayload{
			ID:      id,
			Status:  status,
			Message: message,
		},
	})
}

// BroadcastLog sends a log message to all clients.
func (h *WSHub) BroadcastLog(level, message string) {
	h.Broadcast(WSMessage{
		Type: "log",
		Payload: map[string]string{
			"level":   level,
			"message": message,
		},
	})
}
