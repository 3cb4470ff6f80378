package dispatch

import (
	"context"
	"time"

	"github.com/ovuhq/partnergate/id"
)

// Store defines the persistence contract for webhook deliveries.
//
// Delivery state lives entirely in the store: a restarted dispatcher resumes
// pending and retry_scheduled deliveries from where the previous process
// left off.
type Store interface {
	// Enqueue creates a pending delivery.
	Enqueue(ctx context.Context, d *Delivery) error

	// Claim fetches up to limit deliveries due at or before now and
	// transitions them to in_flight. The claim must be atomic per delivery
	// so no two dispatcher instances process the same one.
	Claim(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)

	// UpdateDelivery persists a delivery's state after an attempt.
	UpdateDelivery(ctx context.Context, d *Delivery) error

	// GetDelivery returns a delivery by ID.
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)

	// ListDeliveriesByEvent returns all deliveries for an event.
	ListDeliveriesByEvent(ctx context.Context, evtID id.ID) ([]*Delivery, error)

	// ListDeliveriesByPartner returns delivery history for a partner.
	ListDeliveriesByPartner(ctx context.Context, partnerID id.ID, opts ListOpts) ([]*Delivery, error)

	// CountDue returns the number of deliveries due at or before now.
	CountDue(ctx context.Context, now time.Time) (int64, error)
}
