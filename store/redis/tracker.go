package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
	"github.com/ovuhq/partnergate/tracker"
)

// requestCountTTL keeps daily request counters around long enough for
// month-scale usage queries, then lets them expire.
const requestCountTTL = 35 * 24 * time.Hour

// attemptModel is the JSON representation stored in Redis.
type attemptModel struct {
	ID         string    `json:"id"`
	DeliveryID string    `json:"delivery_id"`
	EventID    string    `json:"event_id"`
	PartnerID  string    `json:"partner_id"`
	Number     int       `json:"number"`
	Outcome    string    `json:"outcome"`
	StatusCode int       `json:"status_code"`
	LatencyMs  int       `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
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

// RecordAttempt appends a delivery attempt and its indexes.
func (s *Store) RecordAttempt(ctx context.Context, a *tracker.Attempt) error {
	m := toAttemptModel(a)

	if err := s.setEntity(ctx, entityKey(prefixAttempt, m.ID), m); err != nil {
		return fmt.Errorf("partnergate/redis: record attempt: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zAttemptDel+m.DeliveryID, goredis.Z{Score: float64(m.Number), Member: m.ID})
	pipe.ZAdd(ctx, zAttemptPartner+m.PartnerID, goredis.Z{Score: scoreFromTime(m.CreatedAt), Member: m.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("partnergate/redis: record attempt indexes: %w", err)
	}
	return nil
}

// ListAttemptsByDelivery returns attempts for a delivery in attempt order.
func (s *Store) ListAttemptsByDelivery(ctx context.Context, deliveryID id.ID) ([]*tracker.Attempt, error) {
	ids, err := s.rdb.ZRange(ctx, zAttemptDel+deliveryID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("partnergate/redis: list attempts: %w", err)
	}
	return s.fetchAttempts(ctx, ids)
}

// ListAttemptsByPartnerSince returns a partner's attempts recorded at or
// after since.
func (s *Store) ListAttemptsByPartnerSince(ctx context.Context, partnerID id.ID, since time.Time) ([]*tracker.Attempt, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, zAttemptPartner+partnerID.String(), &goredis.ZRangeBy{
		Min: fmt.Sprintf("%f", scoreFromTime(since)),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("partnergate/redis: list attempts since: %w", err)
	}
	return s.fetchAttempts(ctx, ids)
}

func (s *Store) fetchAttempts(ctx context.Context, ids []string) ([]*tracker.Attempt, error) {
	result := make([]*tracker.Attempt, 0, len(ids))
	for _, attID := range ids {
		var m attemptModel
		if err := s.getEntity(ctx, entityKey(prefixAttempt, attID), &m); err != nil {
			if isRedisNil(err) {
				continue
			}
			return nil, err
		}
		a, err := fromAttemptModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// IncrRequestCount bumps the partner's admitted-request counter for the day
// containing at.
func (s *Store) IncrRequestCount(ctx context.Context, partnerID id.ID, at time.Time) error {
	key := prefixRequestCount + partnerID.String() + ":" + at.UTC().Format("2006-01-02")

	pipe := s.rdb.Pipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, requestCountTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("partnergate/redis: incr request count: %w", err)
	}
	return nil
}

// RequestCountSince sums the partner's daily request counters from since
// to now.
func (s *Store) RequestCountSince(ctx context.Context, partnerID id.ID, since time.Time) (int64, error) {
	var total int64
	day := since.UTC().Truncate(24 * time.Hour)
	end := now().Truncate(24 * time.Hour)

	for !day.After(end) {
		key := prefixRequestCount + partnerID.String() + ":" + day.Format("2006-01-02")
		n, err := s.rdb.Get(ctx, key).Int64()
		if err != nil && !isRedisNil(err) {
			return 0, fmt.Errorf("partnergate/redis: request count: %w", err)
		}
		total += n
		day = day.Add(24 * time.Hour)
	}
	return total, nil
}
