// internal/session/session.go
//
// Session/presence tracker: the in-memory map from (room, player
// identity) to the single live connection holding that identity.
// Claiming an identity that is already held atomically swaps the
// registration and hands the stale connection back to the caller for
// eviction, so two connections can never both believe they hold the
// same identity.

package session

import "sync"

// Conn is the minimal connection handle the tracker needs.
type Conn interface {
	// ID uniquely identifies the connection for the process lifetime.
	ID() string
}

// key scopes an identity to a room.
type key struct {
	roomID string
	player string
}

// Tracker maintains the single-holder invariant.
type Tracker struct {
	mu     sync.Mutex
	byKey  map[key]Conn
	byConn map[string]key
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byKey:  make(map[key]Conn),
		byConn: make(map[string]key),
	}
}

// Claim registers c as the holder of (roomID, player). If another
// connection held the identity, it is unregistered and returned so the
// caller can disconnect it; the swap itself is atomic.
func (t *Tracker) Claim(roomID, player string, c Conn) (evicted Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{roomID: roomID, player: player}
	if old, ok := t.byKey[k]; ok && old.ID() != c.ID() {
		delete(t.byConn, old.ID())
		evicted = old
	}
	t.byKey[k] = c
	t.byConn[c.ID()] = k
	return evicted
}

// Get returns the live holder of (roomID, player), if any.
func (t *Tracker) Get(roomID, player string) (Conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.byKey[key{roomID: roomID, player: player}]
	return c, ok
}

// Release drops the session entry for connID, but only if that
// connection is still the registered holder; a stale connection
// disconnecting must not unseat its replacement.
func (t *Tracker) Release(connID string) (roomID, player string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k, found := t.byConn[connID]
	if !found {
		return "", "", false
	}
	delete(t.byConn, connID)
	if cur, held := t.byKey[k]; held && cur.ID() == connID {
		delete(t.byKey, k)
		return k.roomID, k.player, true
	}
	return "", "", false
}

// Remove drops the entry for (roomID, player) and returns the evicted
// holder, if any. Used by kick.
func (t *Tracker) Remove(roomID, player string) (Conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{roomID: roomID, player: player}
	c, ok := t.byKey[k]
	if !ok {
		return nil, false
	}
	delete(t.byKey, k)
	delete(t.byConn, c.ID())
	return c, true
}

// Lookup returns the room and identity registered for connID.
func (t *Tracker) Lookup(connID string) (roomID, player string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k, found := t.byConn[connID]
	if !found {
		return "", "", false
	}
	return k.roomID, k.player, true
}

// Occupancy lists player identities with a live connection in roomID.
func (t *Tracker) Occupancy(roomID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for k := range t.byKey {
		if k.roomID == roomID {
			out = append(out, k.player)
		}
	}
	return out
}
