package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
)

// Service records attempts and produces usage summaries.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a tracker service.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordInput describes one delivery attempt to record.
type RecordInput struct {
	DeliveryID id.ID
	EventID    id.ID
	PartnerID  id.ID
	Number     int
	Outcome    Outcome
	StatusCode int
	Latency    time.Duration
}

// Record appends a delivery attempt. Recording is best-effort from the
// dispatcher's point of view; a storage failure must not block retry
// scheduling, so callers typically log the returned error and continue.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Attempt, error) {
	a := &Attempt{
		ID:         id.NewAttemptID(),
		DeliveryID: in.DeliveryID,
		EventID:    in.EventID,
		PartnerID:  in.PartnerID,
		Number:     in.Number,
		Outcome:    in.Outcome,
		StatusCode: in.StatusCode,
		LatencyMs:  int(in.Latency.Milliseconds()),
	}
	a.Entity = entity.New()

	if err := s.store.RecordAttempt(ctx, a); err != nil {
		return nil, fmt.Errorf("record attempt: %w", err)
	}
	return a, nil
}

// RecordRequest bumps the partner's admitted-request counter. Called once per
// allowed admission decision.
func (s *Service) RecordRequest(ctx context.Context, partnerID id.ID) error {
	if err := s.store.IncrRequestCount(ctx, partnerID, s.now()); err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	return nil
}

// Attempts returns all attempts for a delivery, ordered by attempt number.
func (s *Service) Attempts(ctx context.Context, deliveryID id.ID) ([]*Attempt, error) {
	return s.store.ListAttemptsByDelivery(ctx, deliveryID)
}

// UsageSince aggregates a partner's activity from since to now: admitted
// requests, attempt counts by outcome, and latency percentiles.
func (s *Service) UsageSince(ctx context.Context, partnerID id.ID, since time.Time) (*UsageSummary, error) {
	requests, err := s.store.RequestCountSince(ctx, partnerID, since)
	if err != nil {
		return nil, fmt.Errorf("usage requests: %w", err)
	}

	attempts, err := s.store.ListAttemptsByPartnerSince(ctx, partnerID, since)
	if err != nil {
		return nil, fmt.Errorf("usage attempts: %w", err)
	}

	sum := &UsageSummary{
		PartnerID: partnerID,
		Since:     since,
		Requests:  requests,
		Attempts:  int64(len(attempts)),
	}

	latencies := make([]int, 0, len(attempts))
	for _, a := range attempts {
		switch a.Outcome {
		case OutcomeSuccess:
			sum.Delivered++
		default:
			sum.Failed++
		}
		latencies = append(latencies, a.LatencyMs)
	}

	sum.LatencyP50Ms = percentile(latencies, 50)
	sum.LatencyP95Ms = percentile(latencies, 95)
	sum.LatencyP99Ms = percentile(latencies, 99)
	return sum, nil
}

// percentile computes the nearest-rank percentile of values. Returns zero for
// an empty slice.
func percentile(values []int, p int) int {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	rank := (p*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
