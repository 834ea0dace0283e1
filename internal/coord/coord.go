// internal/coord/coord.go
//
// Room Coordinator: the protocol state machine between client intents
// and the rule engine.
// Responsibilities:
//   - Atomic load-validate-apply-persist-broadcast per room, serialized
//     by a per-room lock (operations on different rooms run in parallel).
//   - Join/leave semantics with the single-holder session invariant.
//   - Turn enforcement via the rule engine, undo negotiation, chat,
//     lock/kick authorization, and per-connection rate limits.
//
// Nothing here touches a socket directly: connections and room groups
// arrive as interfaces so tests can run against fakes.

package coord

import (
	"context"
	"errors"
	"time"

	"github.com/dashanddots/go-server/internal/game"
	"github.com/dashanddots/go-server/internal/proto"
	"github.com/dashanddots/go-server/internal/rate"
	"github.com/dashanddots/go-server/internal/room"
	"github.com/dashanddots/go-server/internal/session"
)

// Failure codes reported to the acting client. All are recoverable;
// none crash the coordinating process.
var (
	ErrRoomNotFound     = errors.New("room_not_found")
	ErrRoomLocked       = errors.New("locked")
	ErrBadPasscode      = errors.New("bad_passcode")
	ErrRateLimited      = errors.New("rate_limited")
	ErrNotInRoom        = errors.New("not_in_room")
	ErrChatDisabled     = errors.New("chat_disabled")
	ErrEmptyMessage     = errors.New("empty_message")
	ErrForbidden        = errors.New("forbidden")
	ErrNoPendingRequest = errors.New("no_pending_request")
	ErrUndoExpired      = errors.New("expired")
	ErrUndoPending      = errors.New("undo_pending")
	ErrNotAuthorized    = errors.New("not_authorized")
	ErrUndoUnsupported  = errors.New("undo_unsupported")
	ErrNoOpponent       = errors.New("no_opponent")
	ErrStaleUndo        = errors.New("stale_undo")
	ErrTargetNotFound   = errors.New("target_not_connected")
	ErrStoreFailed      = errors.New("store_failed")
	ErrBadPayload       = errors.New("bad_payload")
)

// Conn is the connection handle the coordinator acts on.
type Conn interface {
	ID() string
	Send(msg proto.Message)
	Shutdown(reason string)
}

// Broadcaster is the room-scoped group transport (implemented by the
// websocket hub, faked in tests).
type Broadcaster interface {
	Join(roomID, connID string)
	Leave(roomID, connID string)
	Broadcast(roomID string, msg proto.Message)
	BroadcastExcept(roomID, exceptConnID string, msg proto.Message)
}

// MatchRecord summarizes a finished game for the archive.
type MatchRecord struct {
	RoomID     string         `json:"roomId"`
	GameID     string         `json:"gameId"`
	Players    []string       `json:"players"`
	Scores     map[string]int `json:"scores"`
	Winner     string         `json:"winner"` // empty on a tie
	FinishedAt time.Time      `json:"finishedAt"`
}

// Archiver persists finished matches. Failures are logged, never
// surfaced to players.
type Archiver interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
}

// Coordinator drives all room mutations.
type Coordinator struct {
	games   *game.Registry
	rooms   *room.Rooms
	cast    Broadcaster
	locks   *room.KeyedMutex
	sess    *session.Tracker
	limit   *rate.Limiter
	archive Archiver
	now     func() time.Time
}

// Option tweaks coordinator construction.
type Option func(*Coordinator)

// WithArchiver records finished matches to a.
func WithArchiver(a Archiver) Option {
	return func(c *Coordinator) { c.archive = a }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New constructs a Coordinator over the given game table, room store,
// and broadcast transport.
func New(games *game.Registry, rooms *room.Rooms, cast Broadcaster, opts ...Option) *Coordinator {
	c := &Coordinator{
		games: games,
		rooms: rooms,
		cast:  cast,
		locks: room.NewKeyedMutex(),
		sess:  session.NewTracker(),
		limit: rate.NewLimiter(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connected registers rate buckets for a fresh connection.
func (c *Coordinator) Connected(conn Conn) {
	c.limit.Register(conn.ID())
}

// Disconnect releases a connection's rate buckets and, if it was the
// registered holder of its session entry, drops that entry. Persisted
// room state is untouched; the player can reconnect and rejoin.
func (c *Coordinator) Disconnect(conn Conn) {
	c.limit.Remove(conn.ID())
	c.sess.Release(conn.ID())
}

// system builds a chat.system notice message.
func (c *Coordinator) system(text string) proto.Message {
	return proto.Message{
		Type: proto.EventSystem,
		Data: proto.SystemNotice{Text: text, At: c.now().UnixMilli()},
	}
}

// stateMessage wraps a room's serialized game state for clients.
func stateMessage(r *room.Room) proto.Message {
	return proto.Message{Type: proto.EventState, Data: r.State}
}
