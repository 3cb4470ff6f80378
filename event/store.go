package event

import (
	"context"

	"github.com/ovuhq/partnergate/id"
)

// Store defines the persistence contract for webhook events.
type Store interface {
	// CreateEvent persists an event. Must be durable before returning.
	// Returns ErrDuplicateIdempotencyKey when the idempotency key was seen before.
	CreateEvent(ctx context.Context, evt *Event) error

	// GetEvent returns an event by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// ListEventsByPartner returns events targeting a specific partner.
	ListEventsByPartner(ctx context.Context, partnerID id.ID, opts ListOpts) ([]*Event, error)
}
