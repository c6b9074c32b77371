// Package realtime pushes events to connected clients over websockets.
// Each client is subscribed to logical addresses; every user gets a
// personal user_{id} address at connect time.
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scholarsync/collab-plane/pkg/config"
)

// Message is the wire frame pushed to clients.
type Message struct {
	Event   string `json:"event"`
	Address string `json:"address"`
	Payload any    `json:"payload,omitempty"`
}

// UserAddress returns the personal address for a user.
func UserAddress(userID string) string {
	return "user_" + userID
}

// RoomAddress returns the shared address for a room.
func RoomAddress(roomID string) string {
	return "room_" + roomID
}

// Authorizer decides whether a user may join an address beyond their
// personal one.
type Authorizer interface {
	CanJoin(userID, address string) bool
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(userID, address string) bool

// CanJoin implements Authorizer.
func (f AuthorizerFunc) CanJoin(userID, address string) bool { return f(userID, address) }

// Hub routes messages to connected clients by address.
type Hub struct {
	mu        sync.RWMutex
	addresses map[string]map[*Client]struct{}

	auth   Authorizer
	cfg    config.RealtimeConfig
	logger *slog.Logger
}

// NewHub creates a hub. A nil authorizer restricts every client to its
// personal address.
func NewHub(auth Authorizer, cfg config.RealtimeConfig, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if auth == nil {
		auth = AuthorizerFunc(func(string, string) bool { return false })
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 32
	}
	return &Hub{
		addresses: make(map[string]map[*Client]struct{}),
		auth:      auth,
		cfg:       cfg,
		logger:    logger.With("component", "realtime"),
	}
}

// Emit sends an event to every client subscribed to the address. A
// client whose send buffer is full is dropped rather than blocking the
// emitter.
func (h *Hub) Emit(address, event string, payload any) {
	msg := Message{Event: event, Address: address, Payload: payload}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshaling realtime message", "event", event, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.addresses[address]))
	for c := range h.addresses[address] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(data) {
			h.logger.Warn("dropping slow realtime client",
				"user_id", c.userID, "address", address)
			h.disconnect(c)
		}
	}
}

// EmitToUser sends an event to a user's personal address. This is the
// push half of notification fan-out.
func (h *Hub) EmitToUser(userID, event string, payload any) {
	h.Emit(UserAddress(userID), event, payload)
}

// join subscribes a client to an address.
func (h *Hub) join(c *Client, address string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.addresses[address]
	if !ok {
		set = make(map[*Client]struct{})
		h.addresses[address] = set
	}
	set[c] = struct{}{}
	c.joined[address] = struct{}{}
}

// leave unsubscribes a client from an address.
func (h *Hub) leave(c *Client, address string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, address)
}

// disconnect removes a client from every address and closes its send
// channel, which ends the write pump.
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	for address := range c.joined {
		h.removeLocked(c, address)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) removeLocked(c *Client, address string) {
	if set, ok := h.addresses[address]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.addresses, address)
		}
	}
	delete(c.joined, address)
}

// ClientCount returns the number of clients subscribed to an address.
func (h *Hub) ClientCount(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.addresses[address])
}

// handleControl applies a client's join/leave request.
func (h *Hub) handleControl(c *Client, raw []byte) {
	var ctrl struct {
		Action  string `json:"action"`
		Address string `json:"address"`
	}
	if err := json.Unmarshal(raw, &ctrl); err != nil {
		h.logger.Debug("ignoring malformed control frame", "user_id", c.userID, "error", err)
		return
	}
	switch ctrl.Action {
	case "join":
		if ctrl.Address == UserAddress(c.userID) || h.auth.CanJoin(c.userID, ctrl.Address) {
			h.join(c, ctrl.Address)
			return
		}
		h.logger.Warn("join refused", "user_id", c.userID, "address", ctrl.Address)
		c.sendError(fmt.Sprintf("cannot join %s", ctrl.Address))
	case "leave":
		h.leave(c, ctrl.Address)
	default:
		h.logger.Debug("ignoring unknown control action",
			"user_id", c.userID, "action", ctrl.Action)
	}
}
