package chat

import (
	"log"
	"sync"
)

// Hub is the connection registry: the single source of truth for which
// sockets a user is currently reachable on. A user may hold several live
// connections at once (multi-tab / multi-device); a connection belongs
// to no user until it authenticates.
type Hub struct {
	mu sync.RWMutex

	// userID -> set of client connections
	clients map[string]map[*Client]bool
	// reverse table so Unregister never scans every user's set
	users map[*Client]string
	// every accepted connection, bound or not (diagnostics only)
	all map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]bool),
		users:   make(map[*Client]string),
		all:     make(map[*Client]bool),
	}
}

// Track records a freshly accepted, still-unauthenticated connection.
func (h *Hub) Track(c *Client) {
	h.mu.Lock()
	h.all[c] = true
	h.mu.Unlock()
}

// Bind registers the connection under userID. Re-binding the same
// connection is idempotent; binding it to a different user moves it.
func (h *Hub) Bind(c *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.users[c]; ok {
		if prev == userID {
			return
		}
		h.removeLocked(c, prev)
	}
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]bool)
	}
	h.clients[userID][c] = true
	h.users[c] = userID
	h.all[c] = true
}

// Unregister drops the connection from whichever user currently holds it
// and closes its send channel. Safe to call for connections that never
// authenticated, and safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.all[c] {
		return
	}
	delete(h.all, c)
	if uid, ok := h.users[c]; ok {
		h.removeLocked(c, uid)
	}
	c.closeSend()
}

func (h *Hub) removeLocked(c *Client, userID string) {
	delete(h.users, c)
	if set, ok := h.clients[userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
}

// ConnectionsFor returns the live connections registered for userID.
func (h *Hub) ConnectionsFor(userID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.clients[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// UserID reports which user the connection is bound to, if any.
func (h *Hub) UserID(c *Client) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	uid, ok := h.users[c]
	return uid, ok
}

// ConnectionCount is the number of accepted connections, authenticated
// or not.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// PushToUser delivers one frame to every connection the user currently
// has. A connection whose outbound buffer is full is skipped; it never
// blocks delivery to the rest.
func (h *Hub) PushToUser(userID, frameType string, data any) {
	payload, err := encodeFrame(frameType, data)
	if err != nil {
		log.Printf("[hub] failed to marshal %s frame: %v", frameType, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.Send <- payload:
		default:
			// slow/broken client; the write pump will reap it
			log.Printf("[hub] dropped %s frame for user %s: send buffer full", frameType, userID)
		}
	}
}
