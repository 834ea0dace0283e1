// internal/room/lock.go
//
// Per-room serialization. Every load-validate-apply-persist-broadcast
// sequence runs under the room's lock so two mutations on the same room
// can never interleave between their read and write (the lost-update
// race). Different rooms proceed fully in parallel.

package room

import "sync"

// lockEntry is a refcounted mutex; entries are dropped once unheld and
// unwanted so a long-lived process doesn't accumulate one per dead room.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex provides one mutex per room identifier.
type KeyedMutex struct {
	mu    sync.Mutex // guards locks map
	locks map[string]*lockEntry
}

// NewKeyedMutex constructs an empty keyed mutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*lockEntry)}
}

// Lock acquires the mutex for key and returns its release func.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &lockEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
