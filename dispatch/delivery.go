// Package dispatch implements reliable webhook delivery: a durable delivery
// queue, a poll-and-claim worker pool, an HMAC-signing HTTP sender, and an
// exponential-backoff retrier.
package dispatch

import (
	"errors"
	"time"

	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// Sentinel errors returned by dispatch operations.
var (
	// ErrDeliveryNotFound is returned when a delivery cannot be found.
	ErrDeliveryNotFound = errors.New("dispatch: delivery not found")

	// ErrNotReplayable is returned when Replay is called on a delivery that
	// is not in a terminal failed state.
	ErrNotReplayable = errors.New("dispatch: delivery is not in a replayable state")
)

// State represents the current state of a delivery.
type State string

const (
	// StatePending indicates the delivery is awaiting its first attempt.
	StatePending State = "pending"

	// StateInFlight indicates a worker has claimed the delivery and an
	// attempt is in progress.
	StateInFlight State = "in_flight"

	// StateDelivered indicates the partner acknowledged with a 2xx.
	StateDelivered State = "delivered"

	// StateRetryScheduled indicates a failed attempt with a future retry.
	StateRetryScheduled State = "retry_scheduled"

	// StateFailed indicates the attempt budget is exhausted. Terminal.
	StateFailed State = "failed"

	// StateSkipped indicates no attempt was made: the partner is not
	// subscribed to the event type or has no webhook URL. Terminal.
	StateSkipped State = "skipped"
)

// Terminal reports whether the state admits no further attempts.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed || s == StateSkipped
}

// Delivery represents the lifecycle of delivering one event to one partner.
type Delivery struct {
	entity.Entity

	// ID is the unique TypeID for this delivery.
	ID id.ID `json:"id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id"`

	// PartnerID references the target partner.
	PartnerID id.ID `json:"partner_id"`

	// State is the current delivery state.
	State State `json:"state"`

	// AttemptCount is the number of delivery attempts made so far.
	AttemptCount int `json:"attempt_count"`

	// MaxAttempts is the attempt budget before the delivery fails.
	MaxAttempts int `json:"max_attempts"`

	// NextAttemptAt is when the delivery next becomes due.
	NextAttemptAt time.Time `json:"next_attempt_at"`

	// LastError is the error message from the most recent failed attempt.
	LastError string `json:"last_error,omitempty"`

	// LastStatusCode is the HTTP status code from the most recent attempt.
	LastStatusCode int `json:"last_status_code,omitempty"`

	// LastLatencyMs is the latency in milliseconds of the most recent attempt.
	LastLatencyMs int `json:"last_latency_ms,omitempty"`

	// CompletedAt is when the delivery reached a terminal state.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ListOpts configures filtering and pagination for delivery listing.
type ListOpts struct {
	Offset int
	Limit  int
	State  *State
}
