package partnergate

import (
	"time"

	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/ratelimit"
)

// Config holds the configuration for a Gateway instance.
type Config struct {
	// Concurrency is the number of delivery worker goroutines.
	Concurrency int

	// PollInterval is how often the dispatcher checks for due deliveries.
	PollInterval time.Duration

	// BatchSize is the maximum number of deliveries claimed per poll cycle.
	BatchSize int

	// RequestTimeout is the HTTP timeout per delivery attempt.
	RequestTimeout time.Duration

	// MaxAttempts is the delivery attempt budget.
	MaxAttempts int

	// Backoff is the exponential retry schedule.
	Backoff dispatch.Backoff

	// FailPolicy selects limiter behavior when the counting store is down.
	FailPolicy ratelimit.FailPolicy

	// ShutdownTimeout bounds the wait for in-flight deliveries on Stop.
	ShutdownTimeout time.Duration
}

// DefaultBackoff is the default exponential retry schedule: 1s, 2s, 4s, …
// capped at five minutes.
var DefaultBackoff = dispatch.Backoff{
	Base:       1 * time.Second,
	Multiplier: 2,
	MaxDelay:   5 * time.Minute,
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		PollInterval:    1 * time.Second,
		BatchSize:       50,
		RequestTimeout:  30 * time.Second,
		MaxAttempts:     5,
		Backoff:         DefaultBackoff,
		FailPolicy:      ratelimit.FailOpen,
		ShutdownTimeout: 30 * time.Second,
	}
}
