package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ovuhq/partnergate/ratelimit"
)

// compile-time interface check.
var _ ratelimit.Counter = (*Counter)(nil)

// Counter implements ratelimit.Counter on Redis. INCR is atomic on the
// server, so every gateway instance pointed at the same Redis shares one
// quota view.
type Counter struct {
	rdb goredis.UniversalClient
}

// NewCounter creates a Redis-backed window counter.
func NewCounter(rdb goredis.UniversalClient) *Counter {
	return &Counter{rdb: rdb}
}

// IncrEach increments every key in one pipeline and returns post-increment
// values in key order. The TTL is set only when the key is first created so
// the window keeps its original expiry across increments.
func (c *Counter) IncrEach(ctx context.Context, keys []ratelimit.WindowKey) ([]int64, error) {
	pipe := c.rdb.Pipeline()

	incrs := make([]*goredis.IntCmd, len(keys))
	for i, k := range keys {
		incrs[i] = pipe.Incr(ctx, k.Key)
		pipe.ExpireNX(ctx, k.Key, k.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ratelimit.ErrCounterUnavailable, err)
	}

	counts := make([]int64, len(keys))
	for i, cmd := range incrs {
		counts[i] = cmd.Val()
	}
	return counts, nil
}
