package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
	"github.com/ovuhq/partnergate/partner"
)

// partnerModel is the JSON representation stored in Redis. It carries the
// webhook secret, which the domain struct never serializes.
type partnerModel struct {
	ID                string     `json:"id"`
	Code              string     `json:"code"`
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	WebhookURL        string     `json:"webhook_url"`
	WebhookSecret     string     `json:"webhook_secret"`
	SubscribedEvents  []string   `json:"subscribed_events"`
	RequestsPerMinute int64      `json:"requests_per_minute"`
	RequestsPerDay    int64      `json:"requests_per_day"`
	Entitlements      []string   `json:"entitlements"`
	TerminatedAt      *time.Time `json:"terminated_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
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

// CreatePartner persists a new partner and its code index.
func (s *Store) CreatePartner(ctx context.Context, p *partner.Partner) error {
	m := toPartnerModel(p)

	if err := s.setEntity(ctx, entityKey(prefixPartner, m.ID), m); err != nil {
		return fmt.Errorf("partnergate/redis: create partner: %w", err)
	}
	if err := s.rdb.Set(ctx, uniquePartnerCode+m.Code, m.ID, 0).Err(); err != nil {
		return fmt.Errorf("partnergate/redis: create partner code index: %w", err)
	}
	return nil
}

// GetPartner returns a partner by ID.
func (s *Store) GetPartner(ctx context.Context, partnerID id.ID) (*partner.Partner, error) {
	var m partnerModel
	if err := s.getEntity(ctx, entityKey(prefixPartner, partnerID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, partner.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/redis: get partner: %w", err)
	}
	return fromPartnerModel(&m)
}

// GetPartnerByCode returns a partner by its public code.
func (s *Store) GetPartnerByCode(ctx context.Context, code string) (*partner.Partner, error) {
	ptnID, err := s.rdb.Get(ctx, uniquePartnerCode+code).Result()
	if err != nil {
		if isRedisNil(err) {
			return nil, partner.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/redis: get partner by code: %w", err)
	}

	parsed, err := id.ParsePartnerID(ptnID)
	if err != nil {
		return nil, fmt.Errorf("partnergate/redis: code index %q: %w", code, err)
	}
	return s.GetPartner(ctx, parsed)
}

// UpdatePartner modifies an existing partner.
func (s *Store) UpdatePartner(ctx context.Context, p *partner.Partner) error {
	key := entityKey(prefixPartner, p.ID.String())
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("partnergate/redis: update partner: %w", err)
	}
	if exists == 0 {
		return partner.ErrNotFound
	}

	p.UpdatedAt = now()
	m := toPartnerModel(p)
	if err := s.setEntity(ctx, key, m); err != nil {
		return fmt.Errorf("partnergate/redis: update partner: %w", err)
	}
	return s.rdb.Set(ctx, uniquePartnerCode+m.Code, m.ID, 0).Err()
}

// TerminatePartner soft-deletes a partner. The record is retained.
func (s *Store) TerminatePartner(ctx context.Context, partnerID id.ID) error {
	p, err := s.GetPartner(ctx, partnerID)
	if err != nil {
		return err
	}

	ts := now()
	p.Status = partner.StatusTerminated
	p.TerminatedAt = &ts
	return s.UpdatePartner(ctx, p)
}

// PartnerEntitlements returns the scopes a partner may grant.
func (s *Store) PartnerEntitlements(ctx context.Context, partnerID id.ID) ([]credential.Scope, error) {
	p, err := s.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return p.Entitlements, nil
}
