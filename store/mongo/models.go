package mongo

import (
	"fmt"
	"time"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/tracker"
)

// --- Partner models ---

type partnerModel struct {
	ID                string     `bson:"_id"`
	Code              string     `bson:"code"`
	Name              string     `bson:"name"`
	Status            string     `bson:"status"`
	WebhookURL        string     `bson:"webhook_url"`
	WebhookSecret     string     `bson:"webhook_secret"`
	SubscribedEvents  []string   `bson:"subscribed_events"`
	RequestsPerMinute int64      `bson:"requests_per_minute"`
	RequestsPerDay    int64      `bson:"requests_per_day"`
	Entitlements      []string   `bson:"entitlements"`
	TerminatedAt      *time.Time `bson:"terminated_at,omitempty"`
	CreatedAt         time.Time  `bson:"created_at"`
	UpdatedAt         time.Time  `bson:"updated_at"`
}

func toPartnerModel(p *partner.Partner) *partnerModel {
	subs := make([]string, len(p.SubscribedEvents))
	for i, t := range p.SubscribedEvents {
		subs[i] = string(t)
	}
	ents := make([]string, len(p.Entitlements))
	for i, sc := range p.Entitlements {
		ents[i] = string(sc)
	}
	return &partnerModel{
		ID:                p.ID.String(),
		Code:              p.Code,
		Name:              p.Name,
		Status:            string(p.Status),
		WebhookURL:        p.WebhookURL,
		WebhookSecret:     p.WebhookSecret,
		SubscribedEvents:  subs,
		RequestsPerMinute: p.RequestsPerMinute,
		RequestsPerDay:    p.RequestsPerDay,
		Entitlements:      ents,
		TerminatedAt:      p.TerminatedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func fromPartnerModel(m *partnerModel) (*partner.Partner, error) {
	ptnID, err := id.ParsePartnerID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse partner ID %q: %w", m.ID, err)
	}
	subs := make([]event.Type, len(m.SubscribedEvents))
	for i, t := range m.SubscribedEvents {
		subs[i] = event.Type(t)
	}
	ents := make([]credential.Scope, len(m.Entitlements))
	for i, sc := range m.Entitlements {
		ents[i] = credential.Scope(sc)
	}
	return &partner.Partner{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                ptnID,
		Code:              m.Code,
		Name:              m.Name,
		Status:            partner.Status(m.Status),
		WebhookURL:        m.WebhookURL,
		WebhookSecret:     m.WebhookSecret,
		SubscribedEvents:  subs,
		RequestsPerMinute: m.RequestsPerMinute,
		RequestsPerDay:    m.RequestsPerDay,
		Entitlements:      ents,
		TerminatedAt:      m.TerminatedAt,
	}, nil
}

// --- Credential models ---

type credentialModel struct {
	ID         string     `bson:"_id"`
	PartnerID  string     `bson:"partner_id"`
	PublicID   string     `bson:"public_id"`
	SecretHash string     `bson:"secret_hash"`
	SecretSalt string     `bson:"secret_salt"`
	Status     string     `bson:"status"`
	Scopes     []string   `bson:"scopes"`
	ExpiresAt  *time.Time `bson:"expires_at,omitempty"`
	AllowedIPs []string   `bson:"allowed_ips,omitempty"`
	PerMinute  *int64     `bson:"per_minute,omitempty"`
	PerDay     *int64     `bson:"per_day,omitempty"`
	RevokedAt  *time.Time `bson:"revoked_at,omitempty"`
	LastUsedAt *time.Time `bson:"last_used_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

func toCredentialModel(c *credential.Credential) *credentialModel {
	scopes := make([]string, len(c.Scopes))
	for i, sc := range c.Scopes {
		scopes[i] = string(sc)
	}
	return &credentialModel{
		ID:         c.ID.String(),
		PartnerID:  c.PartnerID.String(),
		PublicID:   c.PublicID,
		SecretHash: c.SecretHash,
		SecretSalt: c.SecretSalt,
		Status:     string(c.Status),
		Scopes:     scopes,
		ExpiresAt:  c.ExpiresAt,
		AllowedIPs: c.AllowedIPs,
		PerMinute:  c.PerMinute,
		PerDay:     c.PerDay,
		RevokedAt:  c.RevokedAt,
		LastUsedAt: c.LastUsedAt,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

func fromCredentialModel(m *credentialModel) (*credential.Credential, error) {
	credID, err := id.ParseCredentialID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse credential ID %q: %w", m.ID, err)
	}
	ptnID, err := id.ParsePartnerID(m.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("parse partner ID %q: %w", m.PartnerID, err)
	}
	scopes := make([]credential.Scope, len(m.Scopes))
	for i, sc := range m.Scopes {
		scopes[i] = credential.Scope(sc)
	}
	return &credential.Credential{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         credID,
		PartnerID:  ptnID,
		PublicID:   m.PublicID,
		SecretHash: m.SecretHash,
		SecretSalt: m.SecretSalt,
		Status:     credential.Status(m.Status),
		Scopes:     scopes,
		ExpiresAt:  m.ExpiresAt,
		AllowedIPs: m.AllowedIPs,
		PerMinute:  m.PerMinute,
		PerDay:     m.PerDay,
		RevokedAt:  m.RevokedAt,
		LastUsedAt: m.LastUsedAt,
	}, nil
}

// --- Event models ---

type eventModel struct {
	ID             string    `bson:"_id"`
	Type           string    `bson:"type"`
	PartnerID      string    `bson:"partner_id"`
	PartnerCode    string    `bson:"partner_code"`
	OccurredAt     time.Time `bson:"occurred_at"`
	Data           any       `bson:"data"`
	IdempotencyKey string    `bson:"idempotency_key,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:             evt.ID.String(),
		Type:           string(evt.Type),
		PartnerID:      evt.PartnerID.String(),
		PartnerCode:    evt.PartnerCode,
		OccurredAt:     evt.OccurredAt,
		Data:           evt.Data,
		IdempotencyKey: evt.IdempotencyKey,
		CreatedAt:      evt.CreatedAt,
		UpdatedAt:      evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	ptnID, err := id.ParsePartnerID(m.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("parse partner ID %q: %w", m.PartnerID, err)
	}
	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             evtID,
		Type:           event.Type(m.Type),
		PartnerID:      ptnID,
		PartnerCode:    m.PartnerCode,
		OccurredAt:     m.OccurredAt,
		Data:           m.Data,
		IdempotencyKey: m.IdempotencyKey,
	}, nil
}

// --- Delivery models ---

type deliveryModel struct {
	ID             string     `bson:"_id"`
	EventID        string     `bson:"event_id"`
	PartnerID      string     `bson:"partner_id"`
	State          string     `bson:"state"`
	AttemptCount   int        `bson:"attempt_count"`
	MaxAttempts    int        `bson:"max_attempts"`
	NextAttemptAt  time.Time  `bson:"next_attempt_at"`
	LastError      string     `bson:"last_error"`
	LastStatusCode int        `bson:"last_status_code"`
	LastLatencyMs  int        `bson:"last_latency_ms"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toDeliveryModel(d *dispatch.Delivery) *deliveryModel {
	return &deliveryModel{
		ID:             d.ID.String(),
		EventID:        d.EventID.String(),
		PartnerID:      d.PartnerID.String(),
		State:          string(d.State),
		AttemptCount:   d.AttemptCount,
		MaxAttempts:    d.MaxAttempts,
		NextAttemptAt:  d.NextAttemptAt,
		LastError:      d.LastError,
		LastStatusCode: d.LastStatusCode,
		LastLatencyMs:  d.LastLatencyMs,
		CompletedAt:    d.CompletedAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func fromDeliveryModel(m *deliveryModel) (*dispatch.Delivery, error) {
	delID, err := id.ParseDeliveryID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.ID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	ptnID, err := id.ParsePartnerID(m.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("parse partner ID %q: %w", m.PartnerID, err)
	}
	return &dispatch.Delivery{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             delID,
		EventID:        evtID,
		PartnerID:      ptnID,
		State:          dispatch.State(m.State),
		AttemptCount:   m.AttemptCount,
		MaxAttempts:    m.MaxAttempts,
		NextAttemptAt:  m.NextAttemptAt,
		LastError:      m.LastError,
		LastStatusCode: m.LastStatusCode,
		LastLatencyMs:  m.LastLatencyMs,
		CompletedAt:    m.CompletedAt,
	}, nil
}

// --- Attempt models ---

type attemptModel struct {
	ID         string    `bson:"_id"`
	DeliveryID string    `bson:"delivery_id"`
	EventID    string    `bson:"event_id"`
	PartnerID  string    `bson:"partner_id"`
	Number     int       `bson:"number"`
	Outcome    string    `bson:"outcome"`
	StatusCode int       `bson:"status_code"`
	LatencyMs  int       `bson:"latency_ms"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func toAttemptModel(a *tracker.Attempt) *attemptModel {
	return &attemptModel{
		ID:         a.ID.String(),
		DeliveryID: a.DeliveryID.String(),
		EventID:    a.EventID.String(),
		PartnerID:  a.PartnerID.String(),
		Number:     a.Number,
		Outcome:    string(a.Outcome),
		StatusCode: a.StatusCode,
		LatencyMs:  a.LatencyMs,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func fromAttemptModel(m *attemptModel) (*tracker.Attempt, error) {
	attID, err := id.ParseAttemptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}
	delID, err := id.ParseDeliveryID(m.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("parse delivery ID %q: %w", m.DeliveryID, err)
	}
	evtID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.EventID, err)
	}
	ptnID, err := id.ParsePartnerID(m.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("parse partner ID %q: %w", m.PartnerID, err)
	}
	return &tracker.Attempt{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         attID,
		DeliveryID: delID,
		EventID:    evtID,
		PartnerID:  ptnID,
		Number:     m.Number,
		Outcome:    tracker.Outcome(m.Outcome),
		StatusCode: m.StatusCode,
		LatencyMs:  m.LatencyMs,
	}, nil
}

// --- Request counter models ---

type requestCountModel struct {
	ID        string `bson:"_id"` // partner ID + ":" + day
	PartnerID string `bson:"partner_id"`
	Day       string `bson:"day"` // YYYY-MM-DD
	Count     int64  `bson:"count"`
}
