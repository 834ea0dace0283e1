// internal/coord/undo.go
//
// Undo negotiation: a time-boxed, two-party consensus sub-protocol.
// The player who made the most recent move may ask to take it back;
// the opponent approves or rejects within a 30 second window. Expiry is
// lazy: nothing fires a timer, the deadline is checked whenever the
// pending request is next touched.

package coord

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dashanddots/go-server/internal/game"
	"github.com/dashanddots/go-server/internal/proto"
	"github.com/dashanddots/go-server/internal/room"
)

// UndoRequest opens an undo negotiation for the connection's player.
//
// A still-pending earlier request blocks a new one; a pending request
// whose window has lapsed is silently replaced.
func (c *Coordinator) UndoRequest(ctx context.Context, conn Conn) error {
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
	if !eng.SupportsUndo() {
		return ErrUndoUnsupported
	}
	if len(r.Players) < 2 {
		return ErrNoOpponent
	}

	common, err := game.Peek(r.State)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("peek state")
		return ErrStoreFailed
	}
	// Only the most recent mover may ask for a reversal.
	if common.LastMove == nil || common.LastMove.Player != player {
		return ErrNotAuthorized
	}

	now := c.now()
	if pu := r.Meta.PendingUndo; pu != nil && !pu.Expired(now) {
		return ErrUndoPending
	}

	req := &room.UndoRequest{
		RequestedBy:    player,
		TargetRevision: r.Revision,
		ExpiresAt:      now.Add(room.UndoExpiry).UnixMilli(),
	}
	r.Meta.PendingUndo = req
	if err := c.rooms.Save(ctx, roomID, r); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("persist undo request")
		return ErrStoreFailed
	}

	c.cast.Broadcast(roomID, proto.Message{
		Type: proto.EventUndoRequest,
		Data: proto.UndoRequested{RequestedBy: player, ExpiresAt: req.ExpiresAt},
	})
	c.cast.Broadcast(roomID, c.system(player+" asked to undo their last move"))
	return nil
}

// UndoRespond resolves the pending negotiation. Approval reverts
// exactly one move through the rule engine and pushes the restored
// state; rejection just clears the request. Either way the negotiation
// ends.
func (c *Coordinator) UndoRespond(ctx context.Context, conn Conn, approve bool) error {
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

	pu := r.Meta.PendingUndo
	if pu == nil {
		return ErrNoPendingRequest
	}
	if pu.Expired(c.now()) {
		c.clearPending(ctx, roomID, r)
		return ErrUndoExpired
	}
	// The requester can't approve their own request.
	if player == pu.RequestedBy {
		return ErrNotAuthorized
	}
	// A move landed after the request was made; the target is gone.
	if r.Revision != pu.TargetRevision {
		c.clearPending(ctx, roomID, r)
		return ErrStaleUndo
	}

	if !approve {
		r.Meta.PendingUndo = nil
		if err := c.rooms.Save(ctx, roomID, r); err != nil {
			log.Error().Err(err).Str("room", roomID).Msg("persist undo rejection")
			return ErrStoreFailed
		}
		c.cast.Broadcast(roomID, proto.Message{Type: proto.EventUndoResult, Data: proto.UndoResult{Approved: false}})
		c.cast.Broadcast(roomID, c.system(player+" declined the undo"))
		return nil
	}

	eng, err := c.games.Get(r.GameID)
	if err != nil {
		return err
	}
	restored, err := eng.Undo(r.State)
	if err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("undo last move")
		c.clearPending(ctx, roomID, r)
		return ErrStaleUndo
	}

	r.State = restored
	r.Revision++
	r.Meta.PendingUndo = nil
	if err := c.rooms.Save(ctx, roomID, r); err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("persist undo")
		return ErrStoreFailed
	}

	c.cast.Broadcast(roomID, stateMessage(r))
	c.cast.Broadcast(roomID, proto.Message{Type: proto.EventUndoResult, Data: proto.UndoResult{Approved: true}})
	c.cast.Broadcast(roomID, c.system(player+" approved the undo"))
	return nil
}

// clearPending drops the pending request and persists, best effort.
func (c *Coordinator) clearPending(ctx context.Context, roomID string, r *room.Room) {
	r.Meta.PendingUndo = nil
	if err := c.rooms.Save(ctx, roomID, r); err != nil {
		log.Warn().Err(err).Str("room", roomID).Msg("clear expired undo request")
	}
}
