// internal/rate/rate_test.go
//
// Token-bucket behavior under a fake clock: burst capacity, refill
// rate, category independence, and disconnect cleanup.

package rate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := NewLimiter()
	l.now = func() time.Time { return clock.t }
	return l, clock
}

func TestAllow_BurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter()
	l.Register("c1")

	// Move bucket starts full at capacity 4.
	for i := 0; i < 4; i++ {
		assert.True(t, l.Allow("c1", Move), "burst token %d", i)
	}
	assert.False(t, l.Allow("c1", Move), "bucket exhausted")
}

func TestAllow_RefillOverTime(t *testing.T) {
	l, clock := newTestLimiter()
	l.Register("c1")

	for i := 0; i < 4; i++ {
		l.Allow("c1", Move)
	}
	assert.False(t, l.Allow("c1", Move))

	// 2 tokens/s: half a second buys one token.
	clock.advance(500 * time.Millisecond)
	assert.True(t, l.Allow("c1", Move))
	assert.False(t, l.Allow("c1", Move))
}

func TestAllow_RefillCapsAtCapacity(t *testing.T) {
	l, clock := newTestLimiter()
	l.Register("c1")

	clock.advance(time.Hour)
	for i := 0; i < 4; i++ {
		assert.True(t, l.Allow("c1", Move))
	}
	assert.False(t, l.Allow("c1", Move), "idle time must not exceed capacity")
}

func TestAllow_CategoriesIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	l.Register("c1")

	for i := 0; i < 4; i++ {
		l.Allow("c1", Move)
	}
	assert.False(t, l.Allow("c1", Move))

	// Chat bucket (capacity 5) is untouched by move spending.
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("c1", Chat), "chat token %d", i)
	}
	assert.False(t, l.Allow("c1", Chat))
}

func TestAllow_UnknownConnectionGetsFreshBuckets(t *testing.T) {
	l, _ := newTestLimiter()
	assert.True(t, l.Allow("never-registered", Move))
}

func TestRemove_ResetsOnReconnect(t *testing.T) {
	l, _ := newTestLimiter()
	l.Register("c1")
	for i := 0; i < 4; i++ {
		l.Allow("c1", Move)
	}
	assert.False(t, l.Allow("c1", Move))

	// Disconnect and reconnect under the same id: buckets start full.
	l.Remove("c1")
	l.Register("c1")
	assert.True(t, l.Allow("c1", Move))
}
