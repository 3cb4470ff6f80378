package credential

import (
	"context"

	"github.com/ovuhq/partnergate/id"
)

// Store defines the persistence contract for credentials.
type Store interface {
	// CreateCredential persists a new credential.
	CreateCredential(ctx context.Context, c *Credential) error

	// GetCredential returns a credential by ID.
	GetCredential(ctx context.Context, credID id.ID) (*Credential, error)

	// GetCredentialByPublicID returns a credential by its public identifier.
	// This is the hot path, called on every inbound partner API call.
	GetCredentialByPublicID(ctx context.Context, publicID string) (*Credential, error)

	// UpdateCredential modifies an existing credential.
	UpdateCredential(ctx context.Context, c *Credential) error

	// RotateCredential atomically revokes old and persists issued.
	// Both mutations succeed or neither does.
	RotateCredential(ctx context.Context, old *Credential, issued *Credential) error

	// ListCredentialsByPartner returns all credentials owned by a partner.
	ListCredentialsByPartner(ctx context.Context, partnerID id.ID) ([]*Credential, error)
}

// ServiceStore is the store surface the credential service needs: credential
// persistence plus the owning partner's scope entitlements.
type ServiceStore interface {
	Store

	// PartnerEntitlements returns the scopes the partner may grant to its
	// credentials.
	PartnerEntitlements(ctx context.Context, partnerID id.ID) ([]Scope, error)
}
