package ws

import (
	"sync"

	"github.com/musorogski/cucme/internal/infrastructure/logging"
	"github.com/musorogski/cucme/internal/infrastructure/metrics"
)

// Hub tracks live connections and their room membership, and fans
// events out to them. Enqueueing happens under the hub lock so that
// messages sent to the same connection keep their submission order.
// Delivery is best-effort: a full or closed client drops the frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	logger logging.Logger
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
}

// Unregister removes the connection from the hub and from any room it
// was joined to, and closes its outbound queue.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.ID)
	for roomID, members := range h.rooms {
		if _, ok := members[c.ID]; ok {
			delete(members, c.ID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	c.closeSend()
	h.mu.Unlock()

	metrics.ActiveConnections.Dec()
}

func (h *Hub) JoinRoom(roomID, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connectionID]
	if !ok {
		return
	}

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[c.ID] = c
}

func (h *Hub) LeaveRoom(roomID, connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// SendToRoom delivers an event to every connection currently joined to
// the room.
func (h *Hub) SendToRoom(roomID, event string, payload any) {
	msg := &OutboundMessage{Event: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.rooms[roomID] {
		h.enqueue(c, msg)
	}
}

// SendToConnection delivers an event to a single connection. A
// connection that has already disconnected silently drops the message.
func (h *Hub) SendToConnection(connectionID, event string, payload any) {
	msg := &OutboundMessage{Event: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connectionID]
	if !ok {
		return
	}
	h.enqueue(c, msg)
}

func (h *Hub) enqueue(c *Client, msg *OutboundMessage) {
	select {
	case c.send <- msg:
		metrics.EventsSent.WithLabelValues(msg.Event).Inc()
	default:
		metrics.EventsDropped.Inc()
		h.logger.Warn(logging.WebSocket, logging.Broadcast, "outbound queue full, dropping frame", map[logging.ExtraKey]any{
			logging.ConnectionID: c.ID,
		})
	}
}
