// Package partner defines the partner domain object: the business entity
// granted programmatic access, its webhook configuration, default rate-limit
// policy, and scope entitlements.
package partner

import (
	"errors"
	"time"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// Sentinel errors returned by partner operations.
var (
	// ErrNotFound is returned when a partner cannot be found.
	ErrNotFound = errors.New("partner: not found")

	// ErrWebhookNotConfigured is returned when a partner has no webhook URL.
	ErrWebhookNotConfigured = errors.New("partner: webhook not configured")
)

// Status is the lifecycle state of a partner account.
type Status string

const (
	// StatusActive indicates a fully operational partner.
	StatusActive Status = "active"

	// StatusSuspended indicates a temporarily disabled partner.
	StatusSuspended Status = "suspended"

	// StatusTerminated indicates a soft-deleted partner. Terminated partners
	// are never hard-deleted while historical bookings reference them.
	StatusTerminated Status = "terminated"
)

// Partner is a business entity with API access to the platform.
type Partner struct {
	entity.Entity

	// ID is the unique TypeID for this partner.
	ID id.ID `json:"id"`

	// Code is the public partner code (e.g. "ACME-7F3A"). Unique.
	Code string `json:"code"`

	// Name is the partner's display name.
	Name string `json:"name"`

	// Status is the account lifecycle state.
	Status Status `json:"status"`

	// WebhookURL is the partner-declared delivery endpoint. Empty means
	// webhooks are not configured.
	WebhookURL string `json:"webhook_url,omitempty"`

	// WebhookSecret signs outbound webhook payloads. Never serialized.
	WebhookSecret string `json:"-"`

	// SubscribedEvents are the event types this partner receives.
	SubscribedEvents []event.Type `json:"subscribed_events"`

	// RequestsPerMinute is the default per-minute quota for the partner and
	// its credentials.
	RequestsPerMinute int64 `json:"requests_per_minute"`

	// RequestsPerDay is the default per-day quota.
	RequestsPerDay int64 `json:"requests_per_day"`

	// Entitlements are the scopes this partner may grant to credentials.
	Entitlements []credential.Scope `json:"entitlements"`

	// TerminatedAt is set when the partner account is terminated.
	TerminatedAt *time.Time `json:"terminated_at,omitempty"`
}

// Subscribed reports whether the partner receives the given event type.
func (p *Partner) Subscribed(t event.Type) bool {
	for _, sub := range p.SubscribedEvents {
		if sub == t {
			return true
		}
	}
	return false
}

// WebhookTarget is the delivery configuration resolved for dispatch.
type WebhookTarget struct {
	URL              string       `json:"url"`
	Secret           string       `json:"-"`
	SubscribedEvents []event.Type `json:"subscribed_events"`
}

// Target returns the partner's webhook target, or ErrWebhookNotConfigured
// when no URL is set.
func (p *Partner) Target() (*WebhookTarget, error) {
	if p.WebhookURL == "" {
		return nil, ErrWebhookNotConfigured
	}
	return &WebhookTarget{
		URL:              p.WebhookURL,
		Secret:           p.WebhookSecret,
		SubscribedEvents: p.SubscribedEvents,
	}, nil
}
