package gateway

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/inspection-dispatch/internal/models"
)

// Client is one websocket session held by the hub.
type Client struct {
	userID string
	role   models.Role

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu    sync.Mutex
	rooms map[string]bool
}

func (c *Client) send(ev models.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(ev)
}

func (c *Client) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[room]
}

func (c *Client) join(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func userRoom(id string) string { return "user:" + id }

func roleRoom(r models.Role) string { return "role:" + string(r) }

// Hub stores all active websocket sessions and routes events by room.
// Registration auto-enrolls the per-user room and the per-role room from
// verified claims, so a client can never address someone else's room.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{clients: make(map[*Client]bool), logger: logger}
}

func (h *Hub) Register(conn *websocket.Conn, session models.Session) *Client {
	c := &Client{
		userID: session.UserID,
		role:   session.Role,
		conn:   conn,
		rooms:  map[string]bool{userRoom(session.UserID): true, roleRoom(session.Role): true},
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Info("ws_registered", "user_id", session.UserID, "role", string(session.Role))
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.conn.Close()
	h.logger.Info("ws_removed", "user_id", c.userID)
}

// Emit routes an event by its address: a user id targets that user's room,
// a role targets the role room, neither means broadcast. Sends are best
// effort; a dead connection is skipped, the read loop reaps it.
func (h *Hub) Emit(ev models.Event) {
	room := ""
	switch {
	case ev.UserID != "":
		room = userRoom(ev.UserID)
	case ev.UserRole != "":
		room = roleRoom(ev.UserRole)
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if room == "" || c.inRoom(room) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(ev); err != nil {
			h.logger.Warn("ws send failed", "user_id", c.userID, "error", err)
		}
	}
}

// ConnectedDrivers lists user ids of registered driver sessions.
func (h *Hub) ConnectedDrivers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.clients))
	for c := range h.clients {
		if c.role == models.RoleDriver {
			out = append(out, c.userID)
		}
	}
	return out
}
