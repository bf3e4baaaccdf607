package boundary

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/moritzcube/cubed/internal/codec"
	"github.com/moritzcube/cubed/internal/eventbus"
)

// EventMessageType names the kind of payload carried in an
// EventMessage pushed to WebSocket subscribers.
type EventMessageType string

const (
	EventPairRequest     EventMessageType = "device_pair_request"
	EventPairAccepted    EventMessageType = "device_pair_accepted"
	EventThermostatState EventMessageType = "thermostatstate_received"
)

// EventMessage is the JSON envelope pushed to every connected
// WebSocket client, one per event-bus publication.
type EventMessage struct {
	Type      EventMessageType `json:"type"`
	ID        string           `json:"id"`
	Timestamp int64            `json:"timestamp"`
	DeviceID  uint32           `json:"device_id"`
	Payload   json.RawMessage  `json:"payload"`
}

// WebSocketBroadcaster upgrades incoming HTTP connections to
// WebSocket and fans every subscribed event out to all of them as
// JSON. It is a thin live-push layer over the API's SubscribeEvent;
// it holds no protocol state of its own.
type WebSocketBroadcaster struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWebSocketBroadcaster constructs a broadcaster and subscribes it
// to all three event-bus topics on api.
func NewWebSocketBroadcaster(api *API) *WebSocketBroadcaster {
	b := &WebSocketBroadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}

	api.SubscribeEvent(eventbus.TopicDevicePairRequest, b.forward(EventPairRequest))
	api.SubscribeEvent(eventbus.TopicDevicePairAccepted, b.forward(EventPairAccepted))
	api.SubscribeEvent(eventbus.TopicThermostatStateRecv, b.forward(EventThermostatState))

	return b
}

func (b *WebSocketBroadcaster) forward(t EventMessageType) eventbus.Handler {
	return func(payload any) {
		m, ok := payload.(*codec.Message)
		if !ok {
			return
		}
		raw, err := json.Marshal(m)
		if err != nil {
			log.Printf("boundary: failed to marshal event payload: %v", err)
			return
		}
		b.broadcast(EventMessage{
			Type:      t,
			ID:        uuid.NewString(),
			Timestamp: time.Now().Unix(),
			DeviceID:  m.SenderID,
			Payload:   raw,
		})
	}
}

// ServeHTTP upgrades the connection and registers it as a
// broadcast recipient until it disconnects.
func (b *WebSocketBroadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("boundary: websocket upgrade failed: %v", err)
		return
	}

	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.clients, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	// Subscribers are read-only from this side; drain and discard
	// anything they send so control frames are processed and a
	// client-initiated close is observed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *WebSocketBroadcaster) broadcast(msg EventMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("boundary: failed to marshal envelope: %v", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("boundary: dropping unresponsive websocket client: %v", err)
			conn.Close()
			delete(b.clients, conn)
		}
	}
}
