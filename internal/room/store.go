// internal/room/store.go
//
// Store adapter: a keyed, TTL-capable external store holding serialized
// room records. The coordinator treats stored bytes as opaque JSON.
// Implementations may be backed by Redis (production) or memory (tests).

package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("not found")

// Store is the raw keyed byte store.
type Store interface {
	// Get returns the bytes at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes the bytes at key.
	Set(ctx context.Context, key string, value []byte) error

	// Expire sets the key's time-to-live. The key vanishes once the
	// window passes without a refresh.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// roomKey namespaces a room's persisted state.
func roomKey(id string) string { return "room:" + id + ":state" }

// Rooms is the typed layer over a Store: JSON codec, key namespacing,
// and retention refresh on every save.
type Rooms struct {
	store Store
}

// NewRooms wraps a raw Store.
func NewRooms(s Store) *Rooms { return &Rooms{store: s} }

// Load reads and decodes the room record for id.
func (rs *Rooms) Load(ctx context.Context, id string) (*Room, error) {
	raw, err := rs.store.Get(ctx, roomKey(id))
	if err != nil {
		return nil, err
	}
	var r Room
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &r, nil
}

// Save encodes and persists the room record and refreshes its retention
// window.
func (rs *Rooms) Save(ctx context.Context, id string, r *Room) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", id, err)
	}
	if err := rs.store.Set(ctx, roomKey(id), raw); err != nil {
		return err
	}
	return rs.store.Expire(ctx, roomKey(id), TTL)
}
