package ratelimit

import (
	"fmt"
	"time"

	"github.com/ovuhq/partnergate/id"
)

// Window kinds used for quota accounting.
const (
	windowMinute = time.Minute
	windowDay    = 24 * time.Hour
)

// Counter TTLs run slightly longer than their window so a counter outlives
// late readers of the same window but still self-expires.
const (
	ttlMinute = 90 * time.Second
	ttlDay    = 25 * time.Hour
)

// subject types in counter keys.
const (
	subjectPartner    = "ptn"
	subjectCredential = "cred"
)

// window identifies one fixed time bucket for a subject.
type window struct {
	kind  time.Duration
	index int64 // epoch seconds / window length, truncated
	ttl   time.Duration
}

// windowAt computes the fixed window containing now for the given kind.
func windowAt(now time.Time, kind time.Duration) window {
	ttl := ttlMinute
	if kind == windowDay {
		ttl = ttlDay
	}
	return window{
		kind:  kind,
		index: now.Unix() / int64(kind/time.Second),
		ttl:   ttl,
	}
}

// resetAt returns the instant the window rolls over.
func (w window) resetAt() time.Time {
	return time.Unix((w.index+1)*int64(w.kind/time.Second), 0).UTC()
}

// counterKey builds the shared-store key for a subject's window counter.
// Shape: rl:{subject_type}:{subject_id}:{m|d}:{window_index}
func counterKey(subjectType string, subjectID id.ID, w window) WindowKey {
	kind := "m"
	if w.kind == windowDay {
		kind = "d"
	}
	return WindowKey{
		Key: fmt.Sprintf("rl:%s:%s:%s:%d", subjectType, subjectID, kind, w.index),
		TTL: w.ttl,
	}
}
