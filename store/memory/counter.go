package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ovuhq/partnergate/ratelimit"
)

// compile-time interface check.
var _ ratelimit.Counter = (*Counter)(nil)

// Counter is an in-memory implementation of ratelimit.Counter for testing.
// It honors TTLs against a real or injected clock and can simulate an
// unreachable counting store.
type Counter struct {
	mu          sync.Mutex
	counts      map[string]int64
	expiries    map[string]time.Time
	unavailable bool
	now         func() time.Time
}

// NewCounter creates an in-memory counter.
func NewCounter() *Counter {
	return &Counter{
		counts:   make(map[string]int64),
		expiries: make(map[string]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow injects a clock for TTL expiry in tests.
func (c *Counter) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetUnavailable toggles simulated outage. While unavailable every IncrEach
// returns ratelimit.ErrCounterUnavailable.
func (c *Counter) SetUnavailable(down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unavailable = down
}

// IncrEach atomically increments every key and returns post-increment values.
func (c *Counter) IncrEach(_ context.Context, keys []ratelimit.WindowKey) ([]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unavailable {
		return nil, ratelimit.ErrCounterUnavailable
	}

	now := c.now()
	counts := make([]int64, len(keys))
	for i, k := range keys {
		if exp, ok := c.expiries[k.Key]; ok && now.After(exp) {
			delete(c.counts, k.Key)
			delete(c.expiries, k.Key)
		}
		if _, ok := c.counts[k.Key]; !ok {
			c.expiries[k.Key] = now.Add(k.TTL)
		}
		c.counts[k.Key]++
		counts[i] = c.counts[k.Key]
	}
	return counts, nil
}
