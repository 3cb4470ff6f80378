package credential

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// Service provides credential lifecycle operations.
type Service struct {
	store  ServiceStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new credential service.
func NewService(store ServiceStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IssueInput configures a new credential.
type IssueInput struct {
	// Scopes to grant. Must be a subset of the partner's entitlements.
	Scopes []Scope

	// TTL is the optional lifetime. Zero means no expiry.
	TTL time.Duration

	// AllowedIPs restricts callers by source address (exact or CIDR).
	AllowedIPs []string

	// PerMinute / PerDay override the partner's default limits when set.
	PerMinute *int64
	PerDay    *int64
}

// Issued carries a freshly issued credential together with its plaintext
// secret. The secret appears here and nowhere else: it is not retained by
// the service and cannot be recovered from the store.
type Issued struct {
	Credential *Credential
	PublicID   string
	Secret     string
}

// Issue creates a new credential for a partner and returns the plaintext
// secret exactly once. Fails with ErrScopeNotEntitled if the requested
// scopes exceed the partner's entitlement.
func (svc *Service) Issue(ctx context.Context, partnerID id.ID, in IssueInput) (*Issued, error) {
	entitled, err := svc.store.PartnerEntitlements(ctx, partnerID)
	if err != nil {
		return nil, err
	}

	scopes := in.Scopes
	if len(scopes) == 0 {
		scopes = entitled
	}
	for _, s := range scopes {
		if !scopeIn(entitled, s) {
			return nil, fmt.Errorf("%w: %s", ErrScopeNotEntitled, s)
		}
	}

	issued := svc.build(partnerID, scopes, in)
	if err := svc.store.CreateCredential(ctx, issued.Credential); err != nil {
		return nil, err
	}

	svc.logger.DebugContext(ctx, "credential issued",
		"credential_id", issued.Credential.ID,
		"partner_id", partnerID,
		"public_id", issued.PublicID,
	)
	return issued, nil
}

// Rotate revokes a credential and issues a replacement carrying the same
// scopes, limits, and restrictions. The swap is atomic at the store layer:
// if issuing the replacement fails, the old credential remains active.
func (svc *Service) Rotate(ctx context.Context, credID id.ID) (*Issued, error) {
	old, err := svc.store.GetCredential(ctx, credID)
	if err != nil {
		return nil, err
	}
	if old.Status == StatusRevoked {
		return nil, ErrRevoked
	}

	in := IssueInput{
		Scopes:     old.Scopes,
		AllowedIPs: old.AllowedIPs,
		PerMinute:  old.PerMinute,
		PerDay:     old.PerDay,
	}
	if old.ExpiresAt != nil {
		if remaining := old.ExpiresAt.Sub(svc.now()); remaining > 0 {
			in.TTL = remaining
		}
	}

	issued := svc.build(old.PartnerID, old.Scopes, in)

	revoked := *old
	now := svc.now()
	revoked.Status = StatusRevoked
	revoked.RevokedAt = &now

	if err := svc.store.RotateCredential(ctx, &revoked, issued.Credential); err != nil {
		return nil, err
	}

	svc.logger.DebugContext(ctx, "credential rotated",
		"old_credential_id", old.ID,
		"new_credential_id", issued.Credential.ID,
		"partner_id", old.PartnerID,
	)
	return issued, nil
}

// Revoke marks a credential revoked. Revoking an already-revoked credential
// is a no-op, not an error.
func (svc *Service) Revoke(ctx context.Context, credID id.ID) error {
	c, err := svc.store.GetCredential(ctx, credID)
	if err != nil {
		return err
	}
	if c.Status == StatusRevoked {
		return nil
	}

	now := svc.now()
	c.Status = StatusRevoked
	c.RevokedAt = &now
	if err := svc.store.UpdateCredential(ctx, c); err != nil {
		return err
	}

	svc.logger.DebugContext(ctx, "credential revoked",
		"credential_id", credID, "partner_id", c.PartnerID)
	return nil
}

// Resolve returns the credential for a public identifier in one lookup.
// The result carries status, scopes, and limits but never the plaintext
// secret, which the store does not hold.
func (svc *Service) Resolve(ctx context.Context, publicID string) (*Credential, error) {
	return svc.store.GetCredentialByPublicID(ctx, publicID)
}

// Authenticate resolves a public identifier and verifies the presented
// secret and source address. Used by the inbound request path before
// business logic executes.
func (svc *Service) Authenticate(ctx context.Context, publicID, secret, remoteIP string) (*Credential, error) {
	c, err := svc.store.GetCredentialByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}

	if c.Status == StatusRevoked {
		return nil, ErrRevoked
	}
	if !c.Active(svc.now()) {
		return nil, ErrExpired
	}
	if !verifySecret(secret, c.SecretSalt, c.SecretHash) {
		return nil, ErrSecretMismatch
	}
	if remoteIP != "" && !c.IPAllowed(remoteIP) {
		return nil, ErrIPNotAllowed
	}

	now := svc.now()
	c.LastUsedAt = &now
	if err := svc.store.UpdateCredential(ctx, c); err != nil {
		// Usage bookkeeping must not fail authentication.
		svc.logger.WarnContext(ctx, "update last_used_at failed",
			"credential_id", c.ID, "error", err)
	}

	return c, nil
}

// RequireScope verifies that a credential holds the scope an operation needs.
func (svc *Service) RequireScope(c *Credential, s Scope) error {
	if !c.HasScope(s) {
		return fmt.Errorf("%w: %s", ErrScopeInsufficient, s)
	}
	return nil
}

// build assembles a new credential and its one-time plaintext.
func (svc *Service) build(partnerID id.ID, scopes []Scope, in IssueInput) *Issued {
	publicID := generatePublicID()
	secret := generateSecret()
	salt := generateSalt()

	c := &Credential{
		Entity:     entity.New(),
		ID:         id.NewCredentialID(),
		PartnerID:  partnerID,
		PublicID:   publicID,
		SecretHash: hashSecret(secret, salt),
		SecretSalt: salt,
		Status:     StatusActive,
		Scopes:     append([]Scope(nil), scopes...),
		AllowedIPs: append([]string(nil), in.AllowedIPs...),
		PerMinute:  in.PerMinute,
		PerDay:     in.PerDay,
	}
	if in.TTL > 0 {
		exp := svc.now().Add(in.TTL)
		c.ExpiresAt = &exp
	}

	return &Issued{Credential: c, PublicID: publicID, Secret: secret}
}

func scopeIn(set []Scope, s Scope) bool {
	for _, have := range set {
		if have == s {
			return true
		}
	}
	return false
}
