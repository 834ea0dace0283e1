// internal/coord/ops.go
//
// Core client operations: join, move, chat. Each mutating operation is
// one atomic load-validate-apply-persist-broadcast sequence under the
// room's lock; nothing is broadcast unless the persist succeeded.

package coord

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/dashanddots/go-server/internal/game"
	"github.com/dashanddots/go-server/internal/proto"
	"github.com/dashanddots/go-server/internal/rate"
	"github.com/dashanddots/go-server/internal/room"
)

// maxChatLen bounds a relayed chat line (runes, not bytes).
const maxChatLen = 300

// Join admits a connection into a room under the player identity.
//
// Locked rooms only admit known players; rooms with a passcode require
// it from unknown players. A stale connection already holding the
// identity is evicted first (single-holder invariant). The joining
// connection alone receives the full current state; everyone else
// learns about the arrival through a player-joined event and a system
// chat notice.
func (c *Coordinator) Join(ctx context.Context, conn Conn, data proto.JoinData) error {
	if data.RoomID == "" || data.Player == "" {
		return ErrBadPayload
	}

	unlock := c.locks.Lock(data.RoomID)
	defer unlock()

	r, err := c.loadRoom(ctx, data.RoomID)
	if err != nil {
		return err
	}

	known := r.HasPlayer(data.Player)
	if r.Meta.Locked && !known {
		return ErrRoomLocked
	}
	if r.Meta.PasscodeHash != "" && !known {
		if bcrypt.CompareHashAndPassword([]byte(r.Meta.PasscodeHash), []byte(data.Passcode)) != nil {
			return ErrBadPasscode
		}
	}

	if evicted := c.sess.Claim(data.RoomID, data.Player, conn); evicted != nil {
		if old, ok := evicted.(Conn); ok {
			old.Send(proto.Message{
				Type: proto.EventKicked,
				Data: proto.Kicked{Reason: "name taken by new connection"},
			})
			c.cast.Leave(data.RoomID, old.ID())
			old.Shutdown("replaced by new connection")
		}
	}

	if r.AddPlayer(data.Player) {
		if err := c.rooms.Save(ctx, data.RoomID, r); err != nil {
			log.Error().Err(err).Str("room", data.RoomID).Msg("persist join")
			return ErrStoreFailed
		}
	}

	c.cast.Join(data.RoomID, conn.ID())
	conn.Send(stateMessage(r))
	c.cast.BroadcastExcept(data.RoomID, conn.ID(), proto.Message{
		Type: proto.EventGameEvents,
		Data: []game.Event{{Type: "player-joined", Payload: proto.PlayerJoined{PlayerID: data.Player}}},
	})
	c.cast.Broadcast(data.RoomID, c.system(data.Player+" joined"))

	log.Info().Str("room", data.RoomID).Str("player", data.Player).Msg("player joined")
	return nil
}

// Move validates and applies a game move for the connection's player.
// The new state is broadcast to the whole room only after a successful
// persist; a failed persist discards the in-memory result.
func (c *Coordinator) Move(ctx context.Context, conn Conn, payload json.RawMessage) error {
	if !c.limit.Allow(conn.ID(), rate.Move) {
		return ErrRateLimited
	}
	roomID, player, ok := c.sess.Lookup(conn.ID())
	if !ok {
		return ErrNotInRoom
	}

	unlock := c.locks.Lock(roomID)
	defer unlock()

	r, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	eng, err := c.games.Get(r.GameID)
	if err != nil {
		return err
	}

	if err := eng.Validate(r.State, payload, player); err != nil {
		return err
	}
	res, err := eng.Apply(r.State, payload, player)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("apply move")
		return ErrBadPayload
	}

	r.State = res.State
	r.Revision++
	if err := c.rooms.Save(ctx, roomID, r); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("persist move")
		return ErrStoreFailed
	}

	c.cast.Broadcast(roomID, stateMessage(r))
	if len(res.Events) > 0 {
		c.cast.Broadcast(roomID, proto.Message{Type: proto.EventGameEvents, Data: res.Events})
	}

	c.maybeArchive(ctx, roomID, r)
	return nil
}

// Chat relays a chat line to the room, truncated to maxChatLen runes.
func (c *Coordinator) Chat(ctx context.Context, conn Conn, text string) error {
	if !c.limit.Allow(conn.ID(), rate.Chat) {
		return ErrRateLimited
	}
	roomID, player, ok := c.sess.Lookup(conn.ID())
	if !ok {
		return ErrNotInRoom
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if runes := []rune(text); len(runes) > maxChatLen {
		text = string(runes[:maxChatLen])
	}

	r, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !r.Meta.ChatEnabled {
		return ErrChatDisabled
	}

	c.cast.Broadcast(roomID, proto.Message{
		Type: proto.EventChat,
		Data: proto.ChatMessage{From: player, Text: text, At: c.now().UnixMilli()},
	})
	return nil
}

// loadRoom maps store errors onto the client-facing taxonomy.
func (c *Coordinator) loadRoom(ctx context.Context, roomID string) (*room.Room, error) {
	r, err := c.rooms.Load(ctx, roomID)
	if errors.Is(err, room.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("load room")
		return nil, ErrStoreFailed
	}
	return r, nil
}

// maybeArchive records a finished game, best effort.
func (c *Coordinator) maybeArchive(ctx context.Context, roomID string, r *room.Room) {
	if c.archive == nil {
		return
	}
	common, err := game.Peek(r.State)
	if err != nil || !common.Finished {
		return
	}

	winner := ""
	best := -1
	tied := false
	for _, p := range common.Players {
		switch s := common.Scores[p]; {
		case s > best:
			winner, best, tied = p, s, false
		case s == best:
			tied = true
		}
	}
	if tied {
		winner = ""
	}

	rec := MatchRecord{
		RoomID:     roomID,
		GameID:     r.GameID,
		Players:    common.Players,
		Scores:     common.Scores,
		Winner:     winner,
		FinishedAt: c.now(),
	}
	if err := c.archive.RecordMatch(ctx, rec); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("archive match")
	}
}
