package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrCounterUnavailable is returned by Counter implementations when the
// counting store cannot be reached. The limiter absorbs it according to the
// configured fail policy.
var ErrCounterUnavailable = errors.New("ratelimit: counting store unavailable")

// WindowKey addresses one fixed-window counter in the shared key space.
type WindowKey struct {
	// Key is the fully formed counter key
	// (e.g. "rl:cred:cred_01h…:m:29466123").
	Key string

	// TTL is applied when the counter is first created, slightly longer
	// than the window so stale counters self-expire.
	TTL time.Duration
}

// Counter is the counting-store contract: atomic increment-and-read over a
// shared key space. Multiple service instances share the same quota view
// through it, so increments must be read-modify-write on the store side,
// never read-then-write from the caller.
type Counter interface {
	// IncrEach atomically increments every key by one and returns the
	// post-increment values in key order. A single call covers all windows
	// for one admission decision so the request path stays one round trip.
	IncrEach(ctx context.Context, keys []WindowKey) ([]int64, error)
}
