package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
	"github.com/ovuhq/partnergate/observability"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/tracker"
)

// DispatcherStore is the interface the dispatcher needs for event and
// delivery operations.
type DispatcherStore interface {
	CreateEvent(ctx context.Context, evt *event.Event) error
	GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error)
	GetPartner(ctx context.Context, partnerID id.ID) (*partner.Partner, error)

	Enqueue(ctx context.Context, d *Delivery) error
	Claim(ctx context.Context, now time.Time, limit int) ([]*Delivery, error)
	UpdateDelivery(ctx context.Context, d *Delivery) error
	GetDelivery(ctx context.Context, delID id.ID) (*Delivery, error)
}

// AttemptRecorder records delivery attempts for the usage surface.
type AttemptRecorder interface {
	Record(ctx context.Context, in tracker.RecordInput) (*tracker.Attempt, error)
}

// Config holds dispatcher configuration.
type Config struct {
	Concurrency    int
	PollInterval   time.Duration
	BatchSize      int
	RequestTimeout time.Duration
	MaxAttempts    int
	Backoff        Backoff
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Dispatcher accepts events from producers and drives webhook deliveries to
// completion through a poll-and-claim worker pool.
type Dispatcher struct {
	store     DispatcherStore
	recorder  AttemptRecorder
	sender    *Sender
	retrier   *Retrier
	validator *event.Validator
	config    Config
	logger    *slog.Logger
	now       func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store DispatcherStore, recorder AttemptRecorder, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:     store,
		recorder:  recorder,
		sender:    NewSender(cfg.RequestTimeout),
		retrier:   NewRetrier(cfg.Backoff),
		validator: event.NewValidator(),
		config:    cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch validates and persists an event and enqueues one pending delivery.
// It returns as soon as the delivery is queued; the worker pool performs the
// HTTP delivery asynchronously, so webhook failures never reach the producer.
//
// An event whose idempotency key was already seen is silently accepted
// without enqueueing a second delivery.
func (dp *Dispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if !evt.Type.Valid() {
		return fmt.Errorf("%w: %q", event.ErrUnknownType, evt.Type)
	}
	if err := dp.validator.Validate(evt.Type, evt.Data); err != nil {
		return err
	}

	if evt.ID.IsNil() {
		evt.ID = id.NewEventID()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = dp.now()
	}
	evt.Entity = entity.New()

	if err := dp.store.CreateEvent(ctx, evt); err != nil {
		if errors.Is(err, event.ErrDuplicateIdempotencyKey) {
			dp.logger.DebugContext(ctx, "duplicate event accepted",
				"idempotency_key", evt.IdempotencyKey, "type", evt.Type)
			return nil
		}
		return fmt.Errorf("create event: %w", err)
	}

	d := &Delivery{
		ID:            id.NewDeliveryID(),
		EventID:       evt.ID,
		PartnerID:     evt.PartnerID,
		State:         StatePending,
		MaxAttempts:   dp.config.MaxAttempts,
		NextAttemptAt: dp.now(),
	}
	d.Entity = entity.New()

	if err := dp.store.Enqueue(ctx, d); err != nil {
		return fmt.Errorf("enqueue delivery: %w", err)
	}

	if dp.config.Metrics != nil {
		dp.config.Metrics.EventsDispatched.Inc()
		dp.config.Metrics.PendingDeliveries.Inc()
	}
	dp.logger.DebugContext(ctx, "event dispatched",
		"event_id", evt.ID, "type", evt.Type, "delivery_id", d.ID)
	return nil
}

// Start begins the delivery workers and poll loop.
func (dp *Dispatcher) Start(ctx context.Context) {
	ctx, dp.cancel = context.WithCancel(ctx)

	dp.wg.Add(1)
	go func() {
		defer dp.wg.Done()
		dp.pollLoop(ctx)
	}()
}

// Stop cancels the poll loop and waits for in-flight deliveries to complete.
func (dp *Dispatcher) Stop(_ context.Context) {
	if dp.cancel != nil {
		dp.cancel()
	}
	dp.wg.Wait()
}

// pollLoop periodically claims due deliveries and hands them to workers.
func (dp *Dispatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(dp.config.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, dp.config.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch, err := dp.store.Claim(ctx, dp.now(), dp.config.BatchSize)
			if err != nil {
				dp.logger.ErrorContext(ctx, "claim failed", "error", err)
				continue
			}

			for _, d := range batch {
				select {
				case <-ctx.Done():
					return
				case sem <- struct{}{}:
				}

				dp.wg.Add(1)
				go func(del *Delivery) {
					defer dp.wg.Done()
					defer func() { <-sem }()
					dp.process(ctx, del)
				}(d)
			}
		}
	}
}

// process handles one claimed delivery: resolve partner + event, send, record
// the attempt, decide, update.
func (dp *Dispatcher) process(ctx context.Context, d *Delivery) {
	var span trace.Span
	if dp.config.Tracer != nil {
		ctx, span = dp.config.Tracer.StartDeliverySpan(ctx, d.ID.String(), d.EventID.String(), d.PartnerID.String())
	}

	p, err := dp.store.GetPartner(ctx, d.PartnerID)
	if err != nil {
		dp.logger.ErrorContext(ctx, "get partner failed",
			"delivery_id", d.ID, "partner_id", d.PartnerID, "error", err)
		dp.release(ctx, d, span)
		return
	}

	evt, err := dp.store.GetEvent(ctx, d.EventID)
	if err != nil {
		dp.logger.ErrorContext(ctx, "get event failed",
			"delivery_id", d.ID, "event_id", d.EventID, "error", err)
		dp.release(ctx, d, span)
		return
	}

	// Skip without an attempt when the partner is not a valid target.
	target, targetErr := p.Target()
	if targetErr != nil || !p.Subscribed(evt.Type) {
		now := dp.now()
		d.State = StateSkipped
		d.CompletedAt = &now
		if dp.config.Metrics != nil {
			dp.config.Metrics.RecordDelivery("skipped", 0)
			dp.config.Metrics.PendingDeliveries.Dec()
		}
		dp.logger.InfoContext(ctx, "delivery skipped",
			"delivery_id", d.ID, "partner_id", p.ID, "type", evt.Type)
		dp.finish(ctx, d, span)
		return
	}

	d.AttemptCount++
	result := dp.sender.Send(ctx, target, evt, d)

	d.LastError = result.Error
	d.LastStatusCode = result.StatusCode
	d.LastLatencyMs = result.LatencyMs

	// The attempt is recorded before any retry is scheduled so the usage
	// surface never lags behind the queue. Recording failures are logged,
	// not propagated; losing an analytics row must not stall the delivery.
	dp.recordAttempt(ctx, d, result)

	latencySeconds := float64(result.LatencyMs) / 1000.0

	switch dp.retrier.Decide(result, d) {
	case Delivered:
		now := dp.now()
		d.State = StateDelivered
		d.CompletedAt = &now
		if dp.config.Metrics != nil {
			dp.config.Metrics.RecordDelivery("delivered", latencySeconds)
			dp.config.Metrics.PendingDeliveries.Dec()
		}
		dp.logger.DebugContext(ctx, "delivered",
			"delivery_id", d.ID, "status", result.StatusCode, "latency_ms", result.LatencyMs)

	case Retry:
		d.State = StateRetryScheduled
		d.NextAttemptAt = dp.retrier.NextAttemptAt(dp.now(), d.AttemptCount)
		if dp.config.Metrics != nil {
			dp.config.Metrics.RecordDelivery("retried", latencySeconds)
		}
		dp.logger.DebugContext(ctx, "retry scheduled",
			"delivery_id", d.ID, "attempt", d.AttemptCount, "next_at", d.NextAttemptAt)

	case Fail:
		now := dp.now()
		d.State = StateFailed
		d.CompletedAt = &now
		if dp.config.Metrics != nil {
			dp.config.Metrics.RecordDelivery("failed", latencySeconds)
			dp.config.Metrics.PendingDeliveries.Dec()
		}
		dp.logger.WarnContext(ctx, "delivery failed permanently",
			"delivery_id", d.ID, "attempts", d.AttemptCount,
			"status", result.StatusCode, "error", result.Error)
	}

	dp.finish(ctx, d, span)
}

// recordAttempt appends a tracker attempt for one HTTP attempt.
func (dp *Dispatcher) recordAttempt(ctx context.Context, d *Delivery, result Result) {
	if dp.recorder == nil {
		return
	}
	outcome := tracker.OutcomeFailure
	switch {
	case result.StatusCode >= 200 && result.StatusCode < 300:
		outcome = tracker.OutcomeSuccess
	case result.TimedOut:
		outcome = tracker.OutcomeTimeout
	}

	_, err := dp.recorder.Record(ctx, tracker.RecordInput{
		DeliveryID: d.ID,
		EventID:    d.EventID,
		PartnerID:  d.PartnerID,
		Number:     d.AttemptCount,
		Outcome:    outcome,
		StatusCode: result.StatusCode,
		Latency:    time.Duration(result.LatencyMs) * time.Millisecond,
	})
	if err != nil {
		dp.logger.ErrorContext(ctx, "record attempt failed",
			"delivery_id", d.ID, "error", err)
	}
}

// finish persists a delivery's post-attempt state and closes the span.
func (dp *Dispatcher) finish(ctx context.Context, d *Delivery, span trace.Span) {
	if span != nil {
		dp.config.Tracer.EndDeliverySpan(span, d.LastStatusCode, d.LastLatencyMs, d.LastError)
	}
	if err := dp.store.UpdateDelivery(ctx, d); err != nil {
		dp.logger.ErrorContext(ctx, "update delivery failed",
			"delivery_id", d.ID, "error", err)
	}
}

// release puts a claimed delivery back in the queue after a transient lookup
// failure so the next poll retries it. The attempt count is untouched; no
// HTTP attempt was made.
func (dp *Dispatcher) release(ctx context.Context, d *Delivery, span trace.Span) {
	d.State = StateRetryScheduled
	d.NextAttemptAt = dp.now().Add(dp.config.PollInterval)
	dp.finish(ctx, d, span)
}

// Replay re-enqueues a terminally failed delivery with a fresh attempt
// budget. The original attempts stay on record.
func (dp *Dispatcher) Replay(ctx context.Context, delID id.ID) error {
	d, err := dp.store.GetDelivery(ctx, delID)
	if err != nil {
		return err
	}
	if d.State != StateFailed {
		return fmt.Errorf("%w: %s is %s", ErrNotReplayable, d.ID, d.State)
	}

	d.State = StatePending
	d.AttemptCount = 0
	d.NextAttemptAt = dp.now()
	d.LastError = ""
	d.LastStatusCode = 0
	d.LastLatencyMs = 0
	d.CompletedAt = nil

	if err := dp.store.UpdateDelivery(ctx, d); err != nil {
		return fmt.Errorf("replay delivery: %w", err)
	}
	if dp.config.Metrics != nil {
		dp.config.Metrics.PendingDeliveries.Inc()
	}
	dp.logger.InfoContext(ctx, "delivery replayed", "delivery_id", d.ID)
	return nil
}

// SendTest performs a one-shot synchronous probe delivery to a partner's
// webhook endpoint and reports the result. Nothing is persisted.
func (dp *Dispatcher) SendTest(ctx context.Context, partnerID id.ID) (Result, error) {
	p, err := dp.store.GetPartner(ctx, partnerID)
	if err != nil {
		return Result{}, err
	}
	target, err := p.Target()
	if err != nil {
		return Result{}, err
	}

	evt := &event.Event{
		ID:          id.NewEventID(),
		Type:        event.Type("webhook.test"),
		PartnerID:   p.ID,
		PartnerCode: p.Code,
		OccurredAt:  dp.now(),
		Data:        map[string]any{"message": "webhook connectivity test"},
	}
	d := &Delivery{ID: id.NewDeliveryID(), EventID: evt.ID, PartnerID: p.ID}

	result := dp.sender.Send(ctx, target, evt, d)
	dp.logger.InfoContext(ctx, "test webhook sent",
		"partner_id", p.ID, "status", result.StatusCode, "latency_ms", result.LatencyMs)
	return result, nil
}
