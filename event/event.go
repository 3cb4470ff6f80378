// Package event defines the closed set of partner-facing webhook event
// types, their payload shapes, and the event persistence contract.
package event

import (
	"errors"
	"time"

	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// Sentinel errors returned by event operations.
var (
	// ErrUnknownType is returned when an event carries a type outside the
	// registered enumeration.
	ErrUnknownType = errors.New("event: unknown event type")

	// ErrPayloadInvalid is returned when event data fails schema validation.
	ErrPayloadInvalid = errors.New("event: payload validation failed")

	// ErrDuplicateIdempotencyKey is returned when an event with the same
	// idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("event: duplicate idempotency key")

	// ErrNotFound is returned when an event cannot be found.
	ErrNotFound = errors.New("event: not found")
)

// Type is a dot-separated business event type name.
type Type string

// The full set of event types partners can subscribe to.
const (
	TypeBookingCreated   Type = "booking.created"
	TypeBookingConfirmed Type = "booking.confirmed"
	TypeBookingCancelled Type = "booking.cancelled"
	TypePaymentSuccess   Type = "payment.success"
	TypePaymentFailed    Type = "payment.failed"
	TypeTicketGenerated  Type = "ticket.generated"
)

// Types returns all registered event types.
func Types() []Type {
	return []Type{
		TypeBookingCreated,
		TypeBookingConfirmed,
		TypeBookingCancelled,
		TypePaymentSuccess,
		TypePaymentFailed,
		TypeTicketGenerated,
	}
}

// Valid reports whether t is one of the registered event types.
func (t Type) Valid() bool {
	switch t {
	case TypeBookingCreated, TypeBookingConfirmed, TypeBookingCancelled,
		TypePaymentSuccess, TypePaymentFailed, TypeTicketGenerated:
		return true
	default:
		return false
	}
}

// String returns the type name.
func (t Type) String() string { return string(t) }

// Event represents a business event submitted for webhook delivery.
// Events are immutable once created.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// Type is the event type name (e.g. "booking.created").
	Type Type `json:"type"`

	// PartnerID identifies the target partner.
	PartnerID id.ID `json:"partner_id"`

	// PartnerCode is the target partner's public code, echoed into the
	// delivered payload envelope.
	PartnerCode string `json:"partner_code"`

	// OccurredAt is when the underlying business event happened.
	OccurredAt time.Time `json:"occurred_at"`

	// Data is the event payload. Validated against the type's schema.
	Data any `json:"data"`

	// IdempotencyKey prevents duplicate event processing.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset int
	Limit  int
	Type   Type
	From   *time.Time
	To     *time.Time
}
