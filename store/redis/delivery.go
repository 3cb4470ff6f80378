package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// deliveryModel is the JSON representation stored in Redis.
type deliveryModel struct {
	ID             string     `json:"id"`
	EventID        string     `json:"event_id"`
	PartnerID      string     `json:"partner_id"`
	State          string     `json:"state"`
	AttemptCount   int        `json:"attempt_count"`
	MaxAttempts    int        `json:"max_attempts"`
	NextAttemptAt  time.Time  `json:"next_attempt_at"`
	LastError      string     `json:"last_error"`
	LastStatusCode int        `json:"last_status_code"`
	LastLatencyMs  int        `json:"last_latency_ms"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
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

// claimScript atomically removes due delivery IDs from the due sorted set.
// A removed ID belongs to exactly one claimer, so two gateway instances
// never process the same delivery.
// KEYS[1] = gw:z:del:due
// ARGV[1] = score threshold (unix seconds)
// ARGV[2] = limit
var claimScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #ids == 0 then return {} end
for i, id in ipairs(ids) do
    redis.call('ZREM', KEYS[1], id)
end
return ids
`)

// Enqueue creates a pending delivery and schedules it on the due set.
func (s *Store) Enqueue(ctx context.Context, d *dispatch.Delivery) error {
	m := toDeliveryModel(d)

	if err := s.setEntity(ctx, entityKey(prefixDelivery, m.ID), m); err != nil {
		return fmt.Errorf("partnergate/redis: enqueue delivery: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zDeliveryDue, goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID})
	pipe.ZAdd(ctx, zDeliveryEvent+m.EventID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	pipe.ZAdd(ctx, zDeliveryPtn+m.PartnerID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("partnergate/redis: enqueue delivery indexes: %w", err)
	}
	return nil
}

// Claim atomically claims due deliveries and marks them in_flight.
func (s *Store) Claim(ctx context.Context, t time.Time, limit int) ([]*dispatch.Delivery, error) {
	nowScore := strconv.FormatFloat(scoreFromTime(t), 'f', -1, 64)
	ids, err := claimScript.Run(ctx, s.rdb, []string{zDeliveryDue}, nowScore, limit).StringSlice()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("partnergate/redis: claim script: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	deliveries := make([]*dispatch.Delivery, 0, len(ids))
	for _, delID := range ids {
		key := entityKey(prefixDelivery, delID)
		var m deliveryModel
		if err := s.getEntity(ctx, key, &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, fmt.Errorf("partnergate/redis: claim get: %w", err)
		}

		m.State = string(dispatch.StateInFlight)
		m.UpdatedAt = now()
		if err := s.setEntity(ctx, key, &m); err != nil {
			return nil, fmt.Errorf("partnergate/redis: claim update: %w", err)
		}

		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

// UpdateDelivery persists a delivery's state. Deliveries returning to a
// schedulable state are re-added to the due set.
func (s *Store) UpdateDelivery(ctx context.Context, d *dispatch.Delivery) error {
	m := toDeliveryModel(d)
	m.UpdatedAt = now()

	if err := s.setEntity(ctx, entityKey(prefixDelivery, m.ID), m); err != nil {
		return fmt.Errorf("partnergate/redis: update delivery: %w", err)
	}

	if d.State == dispatch.StatePending || d.State == dispatch.StateRetryScheduled {
		if err := s.rdb.ZAdd(ctx, zDeliveryDue,
			goredis.Z{Score: scoreFromTime(m.NextAttemptAt), Member: m.ID}).Err(); err != nil {
			return fmt.Errorf("partnergate/redis: reschedule delivery: %w", err)
		}
	}
	return nil
}

// GetDelivery returns a delivery by ID.
func (s *Store) GetDelivery(ctx context.Context, delID id.ID) (*dispatch.Delivery, error) {
	var m deliveryModel
	if err := s.getEntity(ctx, entityKey(prefixDelivery, delID.String()), &m); err != nil {
		if isRedisNil(err) {
			return nil, dispatch.ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("partnergate/redis: get delivery: %w", err)
	}
	return fromDeliveryModel(&m)
}

// ListDeliveriesByEvent returns all deliveries for a specific event.
func (s *Store) ListDeliveriesByEvent(ctx context.Context, evtID id.ID) ([]*dispatch.Delivery, error) {
	ids, err := s.rdb.ZRange(ctx, zDeliveryEvent+evtID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("partnergate/redis: list by event: %w", err)
	}
	return s.fetchDeliveries(ctx, ids, nil)
}

// ListDeliveriesByPartner returns delivery history for a partner.
func (s *Store) ListDeliveriesByPartner(ctx context.Context, partnerID id.ID, opts dispatch.ListOpts) ([]*dispatch.Delivery, error) {
	ids, err := s.rdb.ZRange(ctx, zDeliveryPtn+partnerID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("partnergate/redis: list by partner: %w", err)
	}

	result, err := s.fetchDeliveries(ctx, ids, opts.State)
	if err != nil {
		return nil, err
	}
	return applyPagination(result, opts.Offset, opts.Limit), nil
}

// fetchDeliveries loads deliveries by ID in reverse (newest-first) order.
func (s *Store) fetchDeliveries(ctx context.Context, ids []string, state *dispatch.State) ([]*dispatch.Delivery, error) {
	result := make([]*dispatch.Delivery, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		var m deliveryModel
		if err := s.getEntity(ctx, entityKey(prefixDelivery, ids[i]), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		if state != nil && dispatch.State(m.State) != *state {
			continue
		}
		d, err := fromDeliveryModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

// CountDue returns the number of deliveries due at or before t.
func (s *Store) CountDue(ctx context.Context, t time.Time) (int64, error) {
	count, err := s.rdb.ZCount(ctx, zDeliveryDue, "-inf",
		strconv.FormatFloat(scoreFromTime(t), 'f', -1, 64)).Result()
	if err != nil {
		return 0, fmt.Errorf("partnergate/redis: count due: %w", err)
	}
	return count, nil
}
