// internal/hub/hub.go
//
// WebSocket transport: room-scoped broadcast groups over live
// connections.
// Responsibilities:
//   - Upgrade HTTP requests and own one Conn per socket.
//   - Track group membership (roomId -> connections) for broadcasts.
//   - Deliver messages in enqueue order per connection: each Conn has a
//     single writer goroutine fed by a buffered channel, so broadcasts
//     enqueued while a room mutation holds the room lock reach every
//     member in persist order.
//   - Detect dead peers with ping/pong heartbeats.
//
// The hub knows nothing about game rules; a Handler (the coordinator
// glue) interprets intents.

package hub

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dashanddots/go-server/internal/proto"
)

// Handler receives connection lifecycle callbacks and parsed intents.
type Handler interface {
	Connected(c *Conn)
	Intent(c *Conn, in proto.Intent)
	Disconnected(c *Conn)
}

// Hub manages live connections and their room groups.
type Hub struct {
	handler  Handler
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[string]*Conn               // connID -> conn
	groups map[string]map[string]*Conn    // roomID -> connID -> conn
	member map[string]map[string]struct{} // connID -> roomIDs
}

// New constructs a Hub dispatching to handler.
func New(handler Handler) *Hub {
	return &Hub{
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The admin API enforces origin policy; the socket accepts
			// any origin and relies on room passcodes/locks.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:  make(map[string]*Conn),
		groups: make(map[string]map[string]*Conn),
		member: make(map[string]map[string]struct{}),
	}
}

// ServeWS upgrades the request and runs the connection's pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newConn(ws, h)
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	h.handler.Connected(c)

	go c.writePump()
	go c.readPump()
}

// Join adds a connection to a room's broadcast group.
func (h *Hub) Join(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}
	if h.groups[roomID] == nil {
		h.groups[roomID] = make(map[string]*Conn)
	}
	h.groups[roomID][connID] = c
	if h.member[connID] == nil {
		h.member[connID] = make(map[string]struct{})
	}
	h.member[connID][roomID] = struct{}{}
}

// Leave removes a connection from a room's broadcast group.
func (h *Hub) Leave(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, connID)
}

func (h *Hub) leaveLocked(roomID, connID string) {
	if g, ok := h.groups[roomID]; ok {
		delete(g, connID)
		if len(g) == 0 {
			delete(h.groups, roomID)
		}
	}
	if m, ok := h.member[connID]; ok {
		delete(m, roomID)
	}
}

// Broadcast enqueues msg to every member of the room.
func (h *Hub) Broadcast(roomID string, msg proto.Message) {
	h.BroadcastExcept(roomID, "", msg)
}

// BroadcastExcept enqueues msg to every member except exceptConnID.
func (h *Hub) BroadcastExcept(roomID, exceptConnID string, msg proto.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.groups[roomID] {
		if id == exceptConnID {
			continue
		}
		c.Send(msg)
	}
}

// drop removes a closed connection from every group and the registry.
func (h *Hub) drop(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.member[c.id] {
		h.leaveLocked(roomID, c.id)
	}
	delete(h.member, c.id)
	delete(h.conns, c.id)
}
