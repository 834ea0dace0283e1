// internal/coord/admin.go
//
// Room administration: creation, metadata, lock/unlock, kick. Lock and
// kick exist twice over, as websocket intents from a joined owner and
// as HTTP calls authenticated by the owner token; both funnel into the
// same owner-checked mutation under the room lock.

package coord

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/dashanddots/go-server/internal/game"
	"github.com/dashanddots/go-server/internal/proto"
	"github.com/dashanddots/go-server/internal/room"
)

// Board dimensions accepted from clients; the engine itself only
// requires 2.
const (
	minBoard     = 5
	maxBoard     = 40
	defaultBoard = 5
)

// CreateRoomParams carries everything needed to open a room.
type CreateRoomParams struct {
	GameID       string
	Rows, Cols   int
	Players      []string
	Owner        string
	Locked       bool
	ChatDisabled bool
	Colors       map[string]string
	Passcode     string // optional; stored as a bcrypt hash
}

// CreateRoom builds the initial game state and persists a fresh room,
// returning its identifier.
func (c *Coordinator) CreateRoom(ctx context.Context, p CreateRoomParams) (string, error) {
	eng, err := c.games.Get(p.GameID)
	if err != nil {
		return "", err
	}

	players := p.Players
	if len(players) == 0 {
		players = []string{"p1", "p2"}
	}
	if max := eng.MaxPlayers(); len(players) > max {
		players = players[:max]
	}

	state, err := eng.NewState(game.Options{
		Rows:    clampBoard(p.Rows),
		Cols:    clampBoard(p.Cols),
		Players: players,
	})
	if err != nil {
		return "", err
	}

	meta := room.Meta{
		Owner:       p.Owner,
		Locked:      p.Locked,
		ChatEnabled: !p.ChatDisabled,
		Colors:      p.Colors,
	}
	if p.Passcode != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Passcode), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		meta.PasscodeHash = string(hash)
	}

	id := uuid.NewString()
	r := &room.Room{GameID: p.GameID, Players: players, State: state, Meta: meta}
	if err := c.rooms.Save(ctx, id, r); err != nil {
		log.Error().Err(err).Str("room", id).Msg("persist new room")
		return "", ErrStoreFailed
	}

	log.Info().Str("room", id).Str("game", p.GameID).Strs("players", players).Msg("room created")
	return id, nil
}

// GetRoom returns the redacted client view of a room.
func (c *Coordinator) GetRoom(ctx context.Context, roomID string) (room.Snapshot, error) {
	r, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return room.Snapshot{}, err
	}
	return r.Snapshot(), nil
}

// Occupancy lists the identities currently connected to a room.
func (c *Coordinator) Occupancy(roomID string) []string {
	return c.sess.Occupancy(roomID)
}

// Games lists the registered game implementations.
func (c *Coordinator) Games() []game.Info {
	return c.games.List()
}

// Lock toggles the room lock on behalf of a joined connection.
func (c *Coordinator) Lock(ctx context.Context, conn Conn, locked bool) error {
	roomID, actor, ok := c.sess.Lookup(conn.ID())
	if !ok {
		return ErrNotInRoom
	}
	return c.SetLocked(ctx, roomID, actor, locked)
}

// SetLocked toggles the room lock. Owner only.
func (c *Coordinator) SetLocked(ctx context.Context, roomID, actor string, locked bool) error {
	unlock := c.locks.Lock(roomID)
	defer unlock()

	r, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if r.Meta.Owner != actor {
		return ErrForbidden
	}

	r.Meta.Locked = locked
	if err := c.rooms.Save(ctx, roomID, r); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("persist lock change")
		return ErrStoreFailed
	}

	verb := "unlocked"
	if locked {
		verb = "locked"
	}
	c.cast.Broadcast(roomID, c.system(actor+" "+verb+" the room"))
	return nil
}

// Kick removes a player on behalf of a joined connection.
func (c *Coordinator) Kick(ctx context.Context, conn Conn, target string) error {
	roomID, actor, ok := c.sess.Lookup(conn.ID())
	if !ok {
		return ErrNotInRoom
	}
	return c.KickByName(ctx, roomID, actor, target)
}

// KickByName ejects the target's live connection from the room. Owner
// only. A target with no active session is a distinct not-found
// condition, not a silent success.
func (c *Coordinator) KickByName(ctx context.Context, roomID, actor, target string) error {
	unlock := c.locks.Lock(roomID)
	defer unlock()

	r, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if r.Meta.Owner != actor {
		return ErrForbidden
	}

	sc, ok := c.sess.Remove(roomID, target)
	if !ok {
		return ErrTargetNotFound
	}
	if tc, isConn := sc.(Conn); isConn {
		tc.Send(proto.Message{Type: proto.EventKicked, Data: proto.Kicked{Reason: "removed by room owner"}})
		c.cast.Leave(roomID, tc.ID())
		tc.Shutdown("kicked")
	}

	c.cast.Broadcast(roomID, c.system(target+" was removed by the owner"))
	log.Info().Str("room", roomID).Str("target", target).Msg("player kicked")
	return nil
}

// clampBoard bounds a requested dimension to the supported range.
func clampBoard(n int) int {
	if n == 0 {
		return defaultBoard
	}
	if n < minBoard {
		return minBoard
	}
	if n > maxBoard {
		return maxBoard
	}
	return n
}
