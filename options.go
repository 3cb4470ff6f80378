package partnergate

import (
	"log/slog"
	"time"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/observability"
	"github.com/ovuhq/partnergate/ratelimit"
	"github.com/ovuhq/partnergate/store"
	"github.com/ovuhq/partnergate/tracker"
)

// Gateway is the partner-facing core of the platform: credential lifecycle,
// request admission, webhook dispatch, and usage tracking behind one wiring
// point.
type Gateway struct {
	config  Config
	store   store.Store
	counter ratelimit.Counter
	metrics *observability.Metrics
	tracer  *observability.Tracer
	logger  *slog.Logger

	credentials *credential.Service
	tracker     *tracker.Service
	limiter     *ratelimit.Limiter
	dispatcher  *dispatch.Dispatcher

	started bool
}

// Option configures a Gateway instance.
type Option func(*Gateway) error

// New creates a Gateway with the given options. A store and a counter are
// required; everything else has defaults.
func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if g.store == nil {
		return nil, ErrNoStore
	}
	if g.counter == nil {
		return nil, ErrNoCounter
	}
	g.wireServices()
	return g, nil
}

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(g *Gateway) error {
		g.store = s
		return nil
	}
}

// WithCounter sets the shared counting store for rate limiting.
func WithCounter(c ratelimit.Counter) Option {
	return func(g *Gateway) error {
		g.counter = c
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithMetrics sets the Prometheus instrument set.
func WithMetrics(m *observability.Metrics) Option {
	return func(g *Gateway) error {
		g.metrics = m
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for delivery spans.
func WithTracer(t *observability.Tracer) Option {
	return func(g *Gateway) error {
		g.tracer = t
		return nil
	}
}

// WithConcurrency sets the number of delivery worker goroutines.
func WithConcurrency(n int) Option {
	return func(g *Gateway) error {
		g.config.Concurrency = n
		return nil
	}
}

// WithPollInterval sets how often the dispatcher checks for due deliveries.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.PollInterval = d
		return nil
	}
}

// WithBatchSize sets the maximum number of deliveries claimed per poll cycle.
func WithBatchSize(n int) Option {
	return func(g *Gateway) error {
		g.config.BatchSize = n
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per delivery attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.RequestTimeout = d
		return nil
	}
}

// WithMaxAttempts sets the delivery attempt budget.
func WithMaxAttempts(n int) Option {
	return func(g *Gateway) error {
		g.config.MaxAttempts = n
		return nil
	}
}

// WithBackoff sets the exponential retry schedule.
func WithBackoff(b dispatch.Backoff) Option {
	return func(g *Gateway) error {
		g.config.Backoff = b
		return nil
	}
}

// WithFailPolicy sets limiter behavior during counting-store outages.
func WithFailPolicy(p ratelimit.FailPolicy) Option {
	return func(g *Gateway) error {
		g.config.FailPolicy = p
		return nil
	}
}

// WithShutdownTimeout bounds the wait for in-flight deliveries on Stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(g *Gateway) error {
		g.config.ShutdownTimeout = d
		return nil
	}
}
