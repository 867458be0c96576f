// Package hub broadcasts lifecycle state and alert events to connected
// presentation clients over SockJS.
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Event types pushed to the presentation layer.
const (
	EventState  = "state"
	EventAlert  = "alert"
	EventBanner = "banner"
)

type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type Client struct {
	ID   string
	Send chan []byte

	mu     sync.Mutex
	topics map[string]bool
}

type SubscribeMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

// Subscribe replaces the client's topic filter. An empty topic list means
// every event type.
func (h *Hub) Subscribe(client *Client, topics []string) {
	client.mu.Lock()
	defer client.mu.Unlock()
	if len(topics) == 0 {
		client.topics = nil
		return
	}
	client.topics = make(map[string]bool, len(topics))
	for _, topic := range topics {
		client.topics[topic] = true
	}
}

func (c *Client) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics == nil || c.topics[eventType]
}

// Broadcast marshals payload into an envelope and fans it out. Slow clients
// drop messages rather than block the control path.
func (h *Hub) Broadcast(eventType string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("hub marshal error: %v", err)
		return
	}
	env := Envelope{Type: eventType, Payload: body, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("hub marshal error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !client.wants(eventType) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			log.Printf("drop %s event for client %s", eventType, client.ID)
		}
	}
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
