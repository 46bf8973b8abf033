package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/sir-codec/pkg/frame"
	"github.com/dbehnke/sir-codec/pkg/ircode"
	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/metrics"
	"github.com/gorilla/websocket"
)

// Event represents a WebSocket event to be broadcast to clients
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Marshal converts an event to JSON bytes
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	conn     *websocket.Conn
	messages chan []byte
}

// WebSocketHub manages WebSocket client connections and broadcasts
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	logger     *logger.Logger
	metrics    *metrics.Collector
	done       chan struct{} // Closed when Run returns
	mu         sync.RWMutex
}

// NewWebSocketHub creates a new WebSocket hub. collector may be nil.
func NewWebSocketHub(log *logger.Logger, collector *metrics.Collector) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
		metrics:    collector,
		done:       make(chan struct{}),
	}
}

// Run starts the WebSocket hub event loop. It must be called at most once.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			if h.metrics != nil {
				h.metrics.ClientConnected(client.ID)
			}
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered",
				logger.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.messages)
			}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.ClientDisconnected(client.ID)
			}
			h.logger.Debug("WebSocket client unregistered",
				logger.String("client_id", client.ID))

		case event := <-h.broadcast:
			// Marshal event to JSON
			data, err := event.Marshal()
			if err != nil {
				h.logger.Error("Failed to marshal event",
					logger.Error(err))
				continue
			}

			// Broadcast to all clients
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.messages <- data:
				default:
					// Client buffer full, skip
					h.logger.Warn("Client message buffer full, skipping",
						logger.String("client_id", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			// Close all client connections
			h.mu.Lock()
			for client := range h.clients {
				close(client.messages)
				if h.metrics != nil {
					h.metrics.ClientDisconnected(client.ID)
				}
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			logger.String("event_type", event.Type))
	}
}

// Handler returns an HTTP handler for WebSocket connections
func (h *WebSocketHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		client := &Client{ID: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		// Reader goroutine: drain read to detect close
		go func() {
			defer func() {
				select {
				case h.unregister <- client:
				case <-h.done:
				}
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// Writer loop
		go func() {
			for msg := range client.messages {
				_ = client.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Event types pushed to clients
const (
	EventCapture      = "capture"
	EventPreProcess   = "preprocess"
	EventConvert      = "convert"
	EventCommandSaved = "command_saved"
	EventLearner      = "learner"
)

// BroadcastCapture announces a raw capture received from the learner
func (h *WebSocketHub) BroadcastCapture(raw string) {
	h.Broadcast(Event{
		Type:      EventCapture,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"raw": raw,
		},
	})
}

// BroadcastPreProcess announces the outcome of a pre-processing run
func (h *WebSocketHub) BroadcastPreProcess(r *frame.Result) {
	h.Broadcast(Event{
		Type:      EventPreProcess,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"new_sir2":              r.NewSir2,
			"returned_frames":       r.ReturnedFrames,
			"equal_frames_detected": r.EqualFramesDetected,
			"total_frames_received": r.TotalFramesReceived,
			"pulses_normalized":     r.PulsesNormalized,
			"pairs_preserved":       r.PairsPreserved,
			"duration_us":           r.DurationMicros,
		},
	})
}

// BroadcastConvert announces a converted command
func (h *WebSocketHub) BroadcastConvert(c *ircode.Conversion) {
	h.Broadcast(Event{
		Type:      EventConvert,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"converted": c.Converted,
			"plot_data": c.PlotData,
			"format":    c.Format,
		},
	})
}

// BroadcastCommandSaved announces a command stored in the library
func (h *WebSocketHub) BroadcastCommandSaved(tag, format, command string) {
	h.Broadcast(Event{
		Type:      EventCommandSaved,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"tag":     tag,
			"format":  format,
			"command": command,
		},
	})
}

// BroadcastLearnerState announces the learner entering or leaving learning mode
func (h *WebSocketHub) BroadcastLearnerState(learning bool) {
	h.Broadcast(Event{
		Type:      EventLearner,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"learning": learning,
		},
	})
}
