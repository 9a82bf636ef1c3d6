package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/fanflow/fanflow/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// streamedEvents are the lifecycle events broadcast to connected clients
var streamedEvents = []interfaces.EventType{
	interfaces.EventJobCreated,
	interfaces.EventJobClaimed,
	interfaces.EventJobCompleted,
	interfaces.EventJobFailed,
	interfaces.EventJobRequeued,
	interfaces.EventSessionVerified,
	interfaces.EventSessionLost,
	interfaces.EventChallengeSolved,
	interfaces.EventChallengeFailed,
}

// wsMessage is the frame sent to clients
type wsMessage struct {
	Type             string                 `json:"type"`
	Timestamp        time.Time              `json:"timestamp"`
	Payload          map[string]interface{} `json:"payload,omitempty"`
	ServerInstanceID string                 `json:"server_instance_id"`
}

// WebSocketHandler streams job and session lifecycle events to clients
type WebSocketHandler struct {
	logger           arbor.ILogger
	clients          map[*websocket.Conn]*sync.Mutex
	mu               sync.RWMutex
	serverInstanceID string // Clients use this to detect server restarts
}

// NewWebSocketHandler creates the handler and subscribes it to the event bus
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger) (*WebSocketHandler, error) {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	for _, eventType := range streamedEvents {
		if err := eventService.Subscribe(eventType, h.onEvent); err != nil {
			return nil, err
		}
	}

	logger.Debug().
		Str("server_instance_id", h.serverInstanceID).
		Int("event_types", len(streamedEvents)).
		Msg("WebSocket handler subscribed to event bus")
	return h, nil
}

// HandleWebSocket upgrades the connection and registers the client
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("clients", count).Msg("WebSocket client connected")

	// Reader loop exists only to detect disconnects
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Info().Int("clients", count).Msg("WebSocket client disconnected")
}

// onEvent broadcasts one bus event to every connected client
func (h *WebSocketHandler) onEvent(ctx context.Context, event interfaces.Event) error {
	msg := wsMessage{
		Type:             string(event.Type),
		Timestamp:        event.Timestamp,
		Payload:          event.Payload,
		ServerInstanceID: h.serverInstanceID,
	}

	h.mu.RLock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(h.clients))
	for conn, mu := range h.clients {
		conns[conn] = mu
	}
	h.mu.RUnlock()

	for conn, mu := range conns {
		mu.Lock()
		err := conn.WriteJSON(msg)
		mu.Unlock()
		if err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
			h.removeClient(conn)
		}
	}
	return nil
}
