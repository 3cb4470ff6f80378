// Package credential implements the API credential lifecycle: issuance,
// rotation, revocation, and resolution for inbound authentication.
//
// Secrets follow a single-disclosure discipline: the plaintext exists only
// in the return value of Issue and Rotate. Persisted state holds a salted
// hash, so re-reading the plaintext is structurally impossible.
package credential

import (
	"errors"
	"net"
	"time"

	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// Sentinel errors returned by credential operations.
var (
	// ErrNotFound is returned when a credential cannot be found.
	ErrNotFound = errors.New("credential: not found")

	// ErrRevoked is returned when an operation requires an active credential
	// but the credential has been revoked.
	ErrRevoked = errors.New("credential: revoked")

	// ErrExpired is returned when the credential's expiry has passed.
	ErrExpired = errors.New("credential: expired")

	// ErrScopeNotEntitled is returned when requested scopes exceed the
	// owning partner's entitlement.
	ErrScopeNotEntitled = errors.New("credential: scope not entitled")

	// ErrScopeInsufficient is returned when a credential lacks the scope
	// required for an operation.
	ErrScopeInsufficient = errors.New("credential: scope insufficient")

	// ErrSecretMismatch is returned when a presented secret does not match
	// the stored hash.
	ErrSecretMismatch = errors.New("credential: secret mismatch")

	// ErrIPNotAllowed is returned when a request originates outside the
	// credential's IP allow-list.
	ErrIPNotAllowed = errors.New("credential: ip not allowed")
)

// Status is the lifecycle state of a credential.
type Status string

const (
	// StatusActive indicates the credential is accepted for authentication.
	StatusActive Status = "active"

	// StatusRevoked indicates the credential has been permanently revoked.
	StatusRevoked Status = "revoked"
)

// Scope is a named API capability a credential may hold.
type Scope string

// The full set of grantable scopes.
const (
	ScopeSearch  Scope = "search"
	ScopeBooking Scope = "booking"
	ScopePayment Scope = "payment"
)

// AllScopes returns every grantable scope.
func AllScopes() []Scope {
	return []Scope{ScopeSearch, ScopeBooking, ScopePayment}
}

// Credential is a single API key/secret pair scoped under a partner.
type Credential struct {
	entity.Entity

	// ID is the unique TypeID for this credential.
	ID id.ID `json:"id"`

	// PartnerID identifies the owning partner.
	PartnerID id.ID `json:"partner_id"`

	// PublicID is the public key identifier presented on API calls
	// (e.g. "pk_live_6fe1…"). Unique across all credentials.
	PublicID string `json:"public_id"`

	// SecretHash is the salted SHA-256 digest of the secret, hex encoded.
	// The plaintext is never persisted. Never serialized.
	SecretHash string `json:"-"`

	// SecretSalt is the per-credential random salt, hex encoded. Never serialized.
	SecretSalt string `json:"-"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// Scopes are the API capabilities granted to this credential.
	Scopes []Scope `json:"scopes"`

	// ExpiresAt is the optional expiry timestamp. Nil means no expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// AllowedIPs restricts callers by source address. Entries are exact IPs
	// or CIDR ranges. Empty means no restriction.
	AllowedIPs []string `json:"allowed_ips,omitempty"`

	// PerMinute overrides the partner's per-minute default when set.
	PerMinute *int64 `json:"per_minute,omitempty"`

	// PerDay overrides the partner's per-day default when set.
	PerDay *int64 `json:"per_day,omitempty"`

	// RevokedAt is set when the credential is revoked.
	RevokedAt *time.Time `json:"revoked_at,omitempty"`

	// LastUsedAt tracks the most recent successful authentication.
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Active reports whether the credential is accepted at the given instant:
// not revoked and not past its expiry.
func (c *Credential) Active(now time.Time) bool {
	if c.Status != StatusActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	return true
}

// HasScope reports whether the credential holds the given scope.
func (c *Credential) HasScope(s Scope) bool {
	for _, held := range c.Scopes {
		if held == s {
			return true
		}
	}
	return false
}

// IPAllowed reports whether remoteIP passes the credential's allow-list.
// An empty allow-list admits every address. Entries may be exact addresses
// or CIDR ranges; unparseable entries are skipped.
func (c *Credential) IPAllowed(remoteIP string) bool {
	if len(c.AllowedIPs) == 0 {
		return true
	}

	addr := net.ParseIP(remoteIP)
	for _, entry := range c.AllowedIPs {
		if entry == remoteIP {
			return true
		}
		if addr == nil {
			continue
		}
		if _, cidr, err := net.ParseCIDR(entry); err == nil && cidr.Contains(addr) {
			return true
		}
	}
	return false
}
