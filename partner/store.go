package partner

import (
	"context"

	"github.com/ovuhq/partnergate/id"
)

// Store defines the persistence contract for partners.
type Store interface {
	// CreatePartner persists a new partner.
	CreatePartner(ctx context.Context, p *Partner) error

	// GetPartner returns a partner by ID.
	GetPartner(ctx context.Context, partnerID id.ID) (*Partner, error)

	// GetPartnerByCode returns a partner by its public code.
	GetPartnerByCode(ctx context.Context, code string) (*Partner, error)

	// UpdatePartner modifies an existing partner.
	UpdatePartner(ctx context.Context, p *Partner) error

	// TerminatePartner soft-deletes a partner. The record is retained for
	// historical bookings; only its status changes.
	TerminatePartner(ctx context.Context, partnerID id.ID) error
}
