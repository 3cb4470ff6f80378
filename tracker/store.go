package tracker

import (
	"context"
	"time"

	"github.com/ovuhq/partnergate/id"
)

// Store defines the persistence contract for delivery attempts and usage
// counters.
type Store interface {
	// RecordAttempt appends an attempt. Attempts are immutable.
	RecordAttempt(ctx context.Context, a *Attempt) error

	// ListAttemptsByDelivery returns all attempts for a delivery, ordered
	// by attempt number.
	ListAttemptsByDelivery(ctx context.Context, deliveryID id.ID) ([]*Attempt, error)

	// ListAttemptsByPartnerSince returns a partner's attempts recorded at or
	// after since.
	ListAttemptsByPartnerSince(ctx context.Context, partnerID id.ID, since time.Time) ([]*Attempt, error)

	// IncrRequestCount bumps the partner's admitted-request counter for the
	// day containing at.
	IncrRequestCount(ctx context.Context, partnerID id.ID, at time.Time) error

	// RequestCountSince sums the partner's admitted-request counters from
	// since to now.
	RequestCountSince(ctx context.Context, partnerID id.ID, since time.Time) (int64, error)
}
