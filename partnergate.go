package partnergate

import (
	"context"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/ratelimit"
	"github.com/ovuhq/partnergate/store"
	"github.com/ovuhq/partnergate/tracker"
)

// wireServices initializes the internal services after options have been
// applied.
func (g *Gateway) wireServices() {
	g.credentials = credential.NewService(g.store, g.logger)
	g.tracker = tracker.NewService(g.store, g.logger)

	g.limiter = ratelimit.NewLimiter(g.counter, g.store, ratelimit.Config{
		Policy:  g.config.FailPolicy,
		Metrics: g.metrics,
	}, g.logger)

	g.dispatcher = dispatch.NewDispatcher(g.store, g.tracker, dispatch.Config{
		Concurrency:    g.config.Concurrency,
		PollInterval:   g.config.PollInterval,
		BatchSize:      g.config.BatchSize,
		RequestTimeout: g.config.RequestTimeout,
		MaxAttempts:    g.config.MaxAttempts,
		Backoff:        g.config.Backoff,
		Metrics:        g.metrics,
		Tracer:         g.tracer,
	}, g.logger)
}

// Start begins the delivery worker pool. Deliveries left pending or
// retry_scheduled by a previous process are picked up from the store.
func (g *Gateway) Start(ctx context.Context) error {
	if g.started {
		return ErrAlreadyStarted
	}
	g.started = true
	g.dispatcher.Start(ctx)
	return nil
}

// Stop gracefully shuts down the worker pool, waiting up to the configured
// shutdown timeout for in-flight deliveries.
func (g *Gateway) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()
	g.dispatcher.Stop(ctx)
	g.started = false
}

// Admit checks and consumes rate-limit quota for one request on behalf of a
// (partner, credential) pair. Allowed requests are counted toward the
// partner's usage; losing a usage row never turns into a rejection.
func (g *Gateway) Admit(ctx context.Context, partnerID, credentialID id.ID) (ratelimit.Decision, error) {
	d, err := g.limiter.Admit(ctx, partnerID, credentialID)
	if err != nil {
		return d, err
	}
	if d.Allowed {
		if recErr := g.tracker.RecordRequest(ctx, partnerID); recErr != nil {
			g.logger.WarnContext(ctx, "record request failed",
				"partner_id", partnerID, "error", recErr)
		}
	}
	return d, nil
}

// Dispatch validates and persists an event and queues its webhook delivery.
// It returns once the delivery is queued; the HTTP delivery happens
// asynchronously and its failures never propagate back to the caller.
func (g *Gateway) Dispatch(ctx context.Context, evt *event.Event) error {
	return g.dispatcher.Dispatch(ctx, evt)
}

// Replay re-enqueues a terminally failed delivery with a fresh attempt budget.
func (g *Gateway) Replay(ctx context.Context, deliveryID id.ID) error {
	return g.dispatcher.Replay(ctx, deliveryID)
}

// SendTest performs a one-shot synchronous probe delivery to a partner's
// webhook endpoint.
func (g *Gateway) SendTest(ctx context.Context, partnerID id.ID) (dispatch.Result, error) {
	return g.dispatcher.SendTest(ctx, partnerID)
}

// WebhookTarget resolves a partner's delivery configuration: URL, signing
// secret, and subscribed event types.
func (g *Gateway) WebhookTarget(ctx context.Context, partnerID id.ID) (*partner.WebhookTarget, error) {
	p, err := g.store.GetPartner(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	return p.Target()
}

// Credentials returns the credential lifecycle service.
func (g *Gateway) Credentials() *credential.Service {
	return g.credentials
}

// Tracker returns the delivery tracking and usage service.
func (g *Gateway) Tracker() *tracker.Service {
	return g.tracker
}

// Limiter returns the admission limiter.
func (g *Gateway) Limiter() *ratelimit.Limiter {
	return g.limiter
}

// Store returns the underlying store.
func (g *Gateway) Store() store.Store {
	return g.store
}
