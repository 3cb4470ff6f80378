package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// eventModel is the JSON representation stored in Redis.
type eventModel struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	PartnerID      string    `json:"partner_id"`
	PartnerCode    string    `json:"partner_code"`
	OccurredAt     time.Time `json:"occurred_at"`
	Data           any       `json:"data"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
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

// CreateEvent persists an event. The idempotency key is reserved with SETNX
// so concurrent duplicates race safely.
func (s *Store) CreateEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)

	if m.IdempotencyKey != "" {
		ok, err := s.rdb.SetNX(ctx, uniqueEventIdem+m.IdempotencyKey, m.ID, 0).Result()
		if err != nil {
			return fmt.Errorf("partnergate/redis: reserve idempotency key: %w", err)
		}
		if !ok {
			return event.ErrDuplicateIdempotencyKey
		}
	}

	if err := s.setEntity(ctx, entityKey(prefixEvent, m.ID), m); err != nil {
		return fmt.Errorf("partnergate/redis: create event: %w", err)
	}
	if err := s.rdb.ZAdd(ctx, zEventPartner+m.PartnerID,
		goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID}).Err(); err != nil {
		return fmt.Errorf("partnergate/redis: create event index: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID.
func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	var m eventModel
	if err := s.getEntity(ctx, entityKey(prefixEvent, evtID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, event.ErrNotFound
		}
		return nil, fmt.Errorf("partnergate/redis: get event: %w", err)
	}
	return fromEventModel(&m)
}

// ListEventsByPartner returns events targeting a specific partner.
func (s *Store) ListEventsByPartner(ctx context.Context, partnerID id.ID, opts event.ListOpts) ([]*event.Event, error) {
	ids, err := s.rdb.ZRange(ctx, zEventPartner+partnerID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("partnergate/redis: list events: %w", err)
	}

	result := make([]*event.Event, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- { // reverse for DESC order
		var m eventModel
		if err := s.getEntity(ctx, entityKey(prefixEvent, ids[i]), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if opts.Type != "" && event.Type(m.Type) != opts.Type {
			continue
		}
		if opts.From != nil && m.OccurredAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && m.OccurredAt.After(*opts.To) {
			continue
		}
		evt, err := fromEventModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, evt)
	}

	return applyPagination(result, opts.Offset, opts.Limit), nil
}
