// Package notify pushes job record transitions to websocket clients.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/timmy/scribe/internal/domain"
	"github.com/timmy/scribe/internal/logger"
)

const (
	writeWait       = 10 * time.Second
	broadcastBuffer = 64
)

// Update is the message sent after each persisted transition.
type Update struct {
	Type            string                     `json:"type"`
	TranscriptionID string                     `json:"transcription_id"`
	Status          domain.TranscriptionStatus `json:"status"`
	MarkdownFile    string                     `json:"markdown_file,omitempty"`
	Error           string                     `json:"error,omitempty"`
	Timestamp       time.Time                  `json:"timestamp"`
}

// Publisher receives record transitions.
type Publisher interface {
	Publish(rec *domain.Transcription)
}

// Hub fans record updates out to connected websocket clients.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.Mutex
	upgrader   websocket.Upgrader
	done       chan struct{}
}

// NewHub creates a hub. Call Run to start delivering messages.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Run delivers messages until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			logger.Debug("WebSocket client connected. Total clients: %d", n)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Debug("WebSocket client disconnected. Remaining clients: %d", n)
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					logger.Warn("Error sending message to websocket client: %v", err)
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues an update for rec without blocking. Updates are dropped
// while the broadcast buffer is full.
func (h *Hub) Publish(rec *domain.Transcription) {
	update := Update{
		Type:            "transcription_update",
		TranscriptionID: rec.ID,
		Status:          rec.Status,
		MarkdownFile:    rec.MarkdownFile,
		Error:           rec.ErrorDetail(),
		Timestamp:       time.Now().UTC(),
	}
	data, err := json.Marshal(update)
	if err != nil {
		logger.Error("Failed to marshal transcription update: %v", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		logger.Warn("Dropping transcription update for %s: broadcast buffer full", rec.ID)
	}
}

// ServeWS upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.CtxWarn(r.Context(), "WebSocket upgrade failed: %v", err)
		return
	}

	select {
	case h.register <- conn:
	case <-h.done:
		conn.Close()
		return
	}

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
			return
		}
	}
}
