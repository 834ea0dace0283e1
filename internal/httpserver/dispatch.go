// internal/httpserver/dispatch.go
//
// Websocket intent dispatch. The hub hands every parsed client intent
// to a Dispatcher, which decodes the payload, calls the matching
// coordinator operation, and acks the intent with the outcome.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dashanddots/go-server/internal/coord"
	"github.com/dashanddots/go-server/internal/hub"
	"github.com/dashanddots/go-server/internal/proto"
)

var errUnknownIntent = errors.New("unknown_intent")

// Dispatcher routes hub callbacks into the coordinator. The hub and
// the coordinator reference each other at startup, so the coordinator
// is attached with Bind after both exist.
type Dispatcher struct {
	coord *coord.Coordinator
}

// NewDispatcher returns an unbound dispatcher.
func NewDispatcher() *Dispatcher { return &Dispatcher{} }

// Bind attaches the coordinator. Must happen before the hub serves.
func (d *Dispatcher) Bind(c *coord.Coordinator) { d.coord = c }

func (d *Dispatcher) Connected(c *hub.Conn) { d.coord.Connected(c) }

func (d *Dispatcher) Disconnected(c *hub.Conn) { d.coord.Disconnect(c) }

// Intent decodes and executes one client intent, then acks it. Every
// intent gets exactly one ack, success or failure.
func (d *Dispatcher) Intent(c *hub.Conn, in proto.Intent) {
	ctx := context.Background()

	var err error
	switch in.Type {
	case proto.IntentJoin:
		var data proto.JoinData
		if err = decode(in.Data, &data); err == nil {
			err = d.coord.Join(ctx, c, data)
		}
	case proto.IntentMove:
		err = d.coord.Move(ctx, c, in.Data)
	case proto.IntentUndoRequest:
		err = d.coord.UndoRequest(ctx, c)
	case proto.IntentUndoRespond:
		var data proto.UndoRespondData
		if err = decode(in.Data, &data); err == nil {
			err = d.coord.UndoRespond(ctx, c, data.Approve)
		}
	case proto.IntentChat:
		var data proto.ChatData
		if err = decode(in.Data, &data); err == nil {
			err = d.coord.Chat(ctx, c, data.Text)
		}
	case proto.IntentLock:
		var data proto.LockData
		if err = decode(in.Data, &data); err == nil {
			err = d.coord.Lock(ctx, c, data.Locked)
		}
	case proto.IntentKick:
		var data proto.KickData
		if err = decode(in.Data, &data); err == nil {
			err = d.coord.Kick(ctx, c, data.Target)
		}
	default:
		err = errUnknownIntent
	}

	c.Send(proto.AckMessage(in.ID, err))
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return coord.ErrBadPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return coord.ErrBadPayload
	}
	return nil
}
