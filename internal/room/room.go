// internal/room/room.go
//
// Room record types: the unit of multiplayer session scope.
// A Room binds a game implementation (gameId) to concrete players,
// the serialized game state, and administrative metadata. Rooms are
// persisted as opaque JSON blobs through the Store adapter and mutated
// only by the coordinator's load-validate-apply-persist path.

package room

import (
	"encoding/json"
	"time"
)

// TTL is the retention window; the key expires this long after the
// last persist.
const TTL = 24 * time.Hour

// UndoExpiry bounds how long a pending undo request stays answerable.
const UndoExpiry = 30 * time.Second

// Room is the persisted session record.
type Room struct {
	GameID   string          `json:"gameId"`
	Players  []string        `json:"players"`
	State    json.RawMessage `json:"state"`
	Meta     Meta            `json:"meta"`
	Revision int             `json:"revision"` // bumped on every move persist
}

// Meta carries room administration state.
type Meta struct {
	Owner        string            `json:"owner,omitempty"`
	Locked       bool              `json:"locked,omitempty"`
	ChatEnabled  bool              `json:"chatEnabled"`
	Colors       map[string]string `json:"colors,omitempty"`
	PasscodeHash string            `json:"passcodeHash,omitempty"` // bcrypt; redacted from snapshots
	PendingUndo  *UndoRequest      `json:"pendingUndo,omitempty"`
}

// UndoRequest is the time-boxed, two-party undo negotiation record.
// At most one exists per room at a time.
type UndoRequest struct {
	RequestedBy    string `json:"requestedBy"`
	TargetRevision int    `json:"targetRevision"`
	ExpiresAt      int64  `json:"expiresAt"` // unix milliseconds
}

// Expired reports whether the request's answer window has passed.
func (u *UndoRequest) Expired(now time.Time) bool {
	return now.UnixMilli() > u.ExpiresAt
}

// HasPlayer reports whether name is already a member of the room.
func (r *Room) HasPlayer(name string) bool {
	for _, p := range r.Players {
		if p == name {
			return true
		}
	}
	return false
}

// AddPlayer appends name if not already present and reports whether the
// list changed.
func (r *Room) AddPlayer(name string) bool {
	if r.HasPlayer(name) {
		return false
	}
	r.Players = append(r.Players, name)
	return true
}

// Snapshot is the client-visible view of a room: the passcode hash and
// any pending undo bookkeeping stay server-side.
type Snapshot struct {
	GameID   string          `json:"gameId"`
	Players  []string        `json:"players"`
	State    json.RawMessage `json:"state"`
	Revision int             `json:"revision"`
	Meta     SnapshotMeta    `json:"meta"`
}

// SnapshotMeta is the redacted metadata view.
type SnapshotMeta struct {
	Owner       string            `json:"owner,omitempty"`
	Locked      bool              `json:"locked"`
	ChatEnabled bool              `json:"chatEnabled"`
	HasPasscode bool              `json:"hasPasscode"`
	Colors      map[string]string `json:"colors,omitempty"`
}

// Snapshot builds the redacted client view.
func (r *Room) Snapshot() Snapshot {
	return Snapshot{
		GameID:   r.GameID,
		Players:  r.Players,
		State:    r.State,
		Revision: r.Revision,
		Meta: SnapshotMeta{
			Owner:       r.Meta.Owner,
			Locked:      r.Meta.Locked,
			ChatEnabled: r.Meta.ChatEnabled,
			HasPasscode: r.Meta.PasscodeHash != "",
			Colors:      r.Meta.Colors,
		},
	}
}
