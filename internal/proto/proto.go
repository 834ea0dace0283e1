// internal/proto/proto.go
//
// Wire vocabulary shared by the websocket transport and the room
// coordinator. Client-originated intents carry an optional request id;
// the server answers each intent with exactly one ack, while events are
// fire-and-forget broadcasts.

package proto

import "encoding/json"

// Client intent types.
const (
	IntentJoin        = "room.join"
	IntentMove        = "game.move"
	IntentUndoRequest = "game.undo.request"
	IntentUndoRespond = "game.undo.respond"
	IntentChat        = "chat.message"
	IntentLock        = "room.lock"
	IntentKick        = "room.kick"
)

// Server event types.
const (
	EventAck         = "ack"
	EventState       = "game.state"
	EventGameEvents  = "game.events"
	EventChat        = "chat.message"
	EventSystem      = "chat.system"
	EventUndoRequest = "undo.request"
	EventUndoResult  = "undo.result"
	EventKicked      = "room.kicked"
)

// Intent is the client → server envelope.
type Intent struct {
	ID   string          `json:"id,omitempty"` // echoed in the ack
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is the server → client envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Ack answers a single client intent.
type Ack struct {
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// AckMessage wraps an ack in the server envelope.
func AckMessage(id string, err error) Message {
	a := Ack{ID: id, OK: err == nil}
	if err != nil {
		a.Error = err.Error()
	}
	return Message{Type: EventAck, Data: a}
}

// ---------------------------- intent payloads ------------------------------

// JoinData is the payload of a room.join intent.
type JoinData struct {
	RoomID   string `json:"roomId"`
	Player   string `json:"playerId"`
	Passcode string `json:"passcode,omitempty"`
}

// UndoRespondData answers a pending undo request.
type UndoRespondData struct {
	Approve bool `json:"approve"`
}

// ChatData is an outgoing chat line.
type ChatData struct {
	Text string `json:"text"`
}

// LockData toggles the room lock.
type LockData struct {
	Locked bool `json:"locked"`
}

// KickData names the player to remove.
type KickData struct {
	Target string `json:"target"`
}

// ----------------------------- event payloads ------------------------------

// ChatMessage is a relayed chat line.
type ChatMessage struct {
	From string `json:"from"`
	Text string `json:"text"`
	At   int64  `json:"at"` // unix milliseconds
}

// SystemNotice is a server-generated chat line.
type SystemNotice struct {
	Text string `json:"text"`
	At   int64  `json:"at"`
}

// UndoRequested announces a pending undo negotiation.
type UndoRequested struct {
	RequestedBy string `json:"requestedBy"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// UndoResult resolves an undo negotiation.
type UndoResult struct {
	Approved bool `json:"approved"`
}

// Kicked tells a connection it was removed from its room.
type Kicked struct {
	Reason string `json:"reason"`
}

// PlayerJoined is broadcast (inside game.events) when a new identity
// joins the room.
type PlayerJoined struct {
	PlayerID string `json:"playerId"`
}
