// internal/rate/rate.go
//
// Per-connection token buckets gating move and chat frequency.
// Each connection owns one bucket per category; a bucket refills
// continuously at its category rate up to its capacity, and every
// operation costs one token. Buckets are created full when a connection
// registers and destroyed when it disconnects.

package rate

import (
	"sync"
	"time"
)

// Category names an operation class with its own bucket.
type Category string

const (
	Move Category = "move"
	Chat Category = "chat"
)

// Per-category constants: capacity bounds the burst, refill the
// sustained rate.
const (
	moveCapacity = 4.0
	moveRefill   = 2.0 // tokens per second
	chatCapacity = 5.0
	chatRefill   = 2.0
)

// bucket is one token bucket.
type bucket struct {
	tokens   float64
	last     time.Time
	capacity float64
	refill   float64
}

// take refills by elapsed time, then consumes cost if available.
func (b *bucket) take(now time.Time, cost float64) bool {
	elapsed := now.Sub(b.last).Seconds()
	b.tokens = minFloat(b.capacity, b.tokens+elapsed*b.refill)
	b.last = now
	if b.tokens >= cost {
		b.tokens -= cost
		return true
	}
	return false
}

// Limiter tracks buckets for all live connections.
type Limiter struct {
	mu    sync.Mutex
	conns map[string]map[Category]*bucket
	now   func() time.Time // swappable in tests
}

// NewLimiter constructs an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		conns: make(map[string]map[Category]*bucket),
		now:   time.Now,
	}
}

// Register creates full buckets for a new connection.
func (l *Limiter) Register(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registerLocked(connID)
}

func (l *Limiter) registerLocked(connID string) map[Category]*bucket {
	now := l.now()
	buckets := map[Category]*bucket{
		Move: {tokens: moveCapacity, capacity: moveCapacity, refill: moveRefill, last: now},
		Chat: {tokens: chatCapacity, capacity: chatCapacity, refill: chatRefill, last: now},
	}
	l.conns[connID] = buckets
	return buckets
}

// Remove destroys a connection's buckets.
func (l *Limiter) Remove(connID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, connID)
}

// Allow consumes one token from the connection's bucket for the given
// category. Connections that never registered (e.g. raced a reconnect)
// get fresh full buckets rather than a rejection.
func (l *Limiter) Allow(connID string, cat Category) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	buckets, ok := l.conns[connID]
	if !ok {
		buckets = l.registerLocked(connID)
	}
	b, ok := buckets[cat]
	if !ok {
		return false
	}
	return b.take(l.now(), 1)
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
