package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/sovaehr/internal/notify"
)

// Message is a live event delivered to one browser.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub tracks open connections grouped by browser client id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a connection to its browser's group.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.clients[c.clientID]
	if !ok {
		group = make(map[*Client]struct{})
		h.clients[c.clientID] = group
	}
	group[c] = struct{}{}
}

// Unregister removes a connection and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.clients[c.clientID]
	if !ok {
		return
	}
	if _, ok := group[c]; ok {
		delete(group, c)
		close(c.send)
	}
	if len(group) == 0 {
		delete(h.clients, c.clientID)
	}
}

// SendTo delivers msg to every open connection of one browser.
func (h *Hub) SendTo(clientID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[clientID] {
		select {
		case c.send <- data:
		default:
			// buffer full, drop
			h.logger.Warn("dropping live message", "client_id", clientID, "type", msg.Type)
		}
	}
}

// Notify relays a notification lifecycle step to the browser.
func (h *Hub) Notify(clientID, action string, n notify.Notification) {
	var extra map[string]any
	if action == "insert" {
		extra = map[string]any{
			"message":  n.Message,
			"tone":     string(n.Tone),
			"closable": n.Closable,
			"dwell_ms": n.Dwell.Milliseconds(),
		}
	}
	h.SendTo(clientID, NewMessage("notification", action, n.ID, extra))
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, group := range h.clients {
		n += len(group)
	}
	return n
}
