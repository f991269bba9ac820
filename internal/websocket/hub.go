package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/larder/internal/identity"
	"github.com/dukerupert/larder/internal/metrics"
)

// Message is pushed to every client of a household. Entity events carry the
// changed entity's id; snapshots carry the whole collection in Data.
type Message struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, data any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Data:   data,
	}
}

// Hub tracks connected clients per household.
type Hub struct {
	mu         sync.RWMutex
	households map[string]map[*Client]struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		households: make(map[string]map[*Client]struct{}),
		logger:     logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	clients, ok := h.households[c.householdID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.households[c.householdID] = clients
	}
	if _, dup := clients[c]; !dup {
		clients[c] = struct{}{}
		metrics.WebsocketClients.Inc()
	}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if clients, ok := h.households[c.householdID]; ok {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			metrics.WebsocketClients.Dec()
		}
		if len(clients) == 0 {
			delete(h.households, c.householdID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends msg to the household's clients. Clients whose buffer is
// full miss the message; their next snapshot still converges them.
func (h *Hub) Broadcast(householdID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.households[householdID] {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, dropping message", "household_id", householdID, "type", msg.Type)
		}
	}
}

// Disconnect closes every client that authenticated with token and returns
// how many there were.
func (h *Hub) Disconnect(token string) int {
	if token == "" {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, clients := range h.households {
		for c := range clients {
			if c.token == token && c.cancel != nil {
				c.cancel()
				n++
			}
		}
	}
	return n
}

// Attach disconnects a token's clients as soon as its session signs out or
// expires.
func (h *Hub) Attach(p *identity.Provider) (detach func()) {
	return p.OnAuthStateChange(func(state identity.AuthState) {
		if state.SignedIn() {
			return
		}
		if n := h.Disconnect(state.Token); n > 0 {
			h.logger.Info("session ended, closed connections", "household_id", state.HouseholdID, "connections", n)
		}
	})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.households {
		n += len(clients)
	}
	return n
}

// HouseholdClientCount returns the number of clients of one household.
func (h *Hub) HouseholdClientCount(householdID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.households[householdID])
}
