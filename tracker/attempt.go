// Package tracker records the outcome of every webhook delivery attempt and
// aggregates per-partner usage for the analytics surface.
package tracker

import (
	"errors"
	"time"

	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// ErrAttemptNotFound is returned when an attempt cannot be found.
var ErrAttemptNotFound = errors.New("tracker: attempt not found")

// Outcome classifies a delivery attempt.
type Outcome string

const (
	// OutcomeSuccess indicates a 2xx response.
	OutcomeSuccess Outcome = "success"

	// OutcomeFailure indicates a non-2xx response or connection error.
	OutcomeFailure Outcome = "failure"

	// OutcomeTimeout indicates the per-attempt deadline elapsed.
	OutcomeTimeout Outcome = "timeout"
)

// Attempt records one webhook delivery attempt. Append-only; never mutated
// after creation.
type Attempt struct {
	entity.Entity

	// ID is the unique TypeID for this attempt.
	ID id.ID `json:"id"`

	// DeliveryID references the delivery this attempt belongs to.
	DeliveryID id.ID `json:"delivery_id"`

	// EventID references the event being delivered.
	EventID id.ID `json:"event_id"`

	// PartnerID identifies the target partner.
	PartnerID id.ID `json:"partner_id"`

	// Number is the 1-based attempt number within the delivery.
	Number int `json:"number"`

	// Outcome classifies the result.
	Outcome Outcome `json:"outcome"`

	// StatusCode is the HTTP status, zero when no response was received.
	StatusCode int `json:"status_code,omitempty"`

	// LatencyMs is the attempt latency in milliseconds.
	LatencyMs int `json:"latency_ms"`
}

// UsageSummary aggregates a partner's activity since a point in time.
type UsageSummary struct {
	PartnerID id.ID     `json:"partner_id"`
	Since     time.Time `json:"since"`

	// Requests is the number of admitted API requests.
	Requests int64 `json:"requests"`

	// Attempts is the total number of webhook delivery attempts.
	Attempts int64 `json:"attempts"`

	// Delivered and Failed count attempt outcomes.
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`

	// Latency percentiles over attempts, in milliseconds.
	LatencyP50Ms int `json:"latency_p50_ms"`
	LatencyP95Ms int `json:"latency_p95_ms"`
	LatencyP99Ms int `json:"latency_p99_ms"`
}
