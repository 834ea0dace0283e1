// internal/hub/conn.go
//
// One live websocket connection: a read pump parsing client intents and
// a single write pump draining a buffered outbound queue. All writes to
// the socket go through the queue, so per-connection delivery order
// matches enqueue order.

package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dashanddots/go-server/internal/proto"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be shorter than pongWait

	maxIntentSize = 4 << 10 // no legitimate intent comes close
	sendBuffer    = 256
)

// errBadPayload is acked for frames that don't parse as an intent.
var errBadPayload = errors.New("bad_payload")

// Conn wraps a websocket with its outbound queue.
type Conn struct {
	id  string
	ws  *websocket.Conn
	hub *Hub

	send      chan []byte
	closeOnce sync.Once

	mu          sync.Mutex
	closeReason string
}

func newConn(ws *websocket.Conn, h *Hub) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		hub:  h,
		send: make(chan []byte, sendBuffer),
	}
}

// ID uniquely identifies this connection.
func (c *Conn) ID() string { return c.id }

// Send enqueues a message for delivery. A peer that cannot drain its
// buffer loses the message rather than stalling the room.
func (c *Conn) Send(msg proto.Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("type", msg.Type).Msg("encode outbound message")
		return
	}
	defer func() {
		// Send after Shutdown would panic on the closed channel.
		_ = recover()
	}()
	select {
	case c.send <- raw:
	default:
		log.Warn().Str("conn", c.id).Str("type", msg.Type).Msg("send buffer full, dropping message")
	}
}

// Shutdown flushes queued messages, writes a close frame with the given
// reason, and tears the socket down. Safe to call more than once.
func (c *Conn) Shutdown(reason string) {
	c.mu.Lock()
	c.closeReason = reason
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump parses intents until the socket dies, then cleans up.
func (c *Conn) readPump() {
	defer func() {
		c.hub.drop(c)
		c.hub.handler.Disconnected(c)
		c.Shutdown("connection closed")
	}()

	c.ws.SetReadLimit(maxIntentSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("conn", c.id).Msg("websocket read error")
			}
			return
		}
		var in proto.Intent
		if err := json.Unmarshal(raw, &in); err != nil {
			c.Send(proto.AckMessage("", errBadPayload))
			continue
		}
		c.hub.handler.Intent(c, in)
	}
}

// writePump drains the outbound queue and keeps the peer alive with
// pings. When the queue closes it flushes what's buffered, sends the
// close frame, and closes the socket.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.mu.Lock()
				reason := c.closeReason
				c.mu.Unlock()
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
				_ = c.ws.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
