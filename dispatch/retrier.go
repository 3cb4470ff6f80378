package dispatch

import "time"

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the partner acknowledged with a 2xx.
	Delivered Decision = iota

	// Retry means the delivery should be attempted again later.
	Retry

	// Fail means the attempt budget is exhausted and the delivery is
	// permanently failed.
	Fail
)

// Backoff configures the exponential retry schedule.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Multiplier scales the delay for each subsequent retry.
	Multiplier float64

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration
}

// Retrier decides what happens to a delivery after an attempt.
type Retrier struct {
	backoff Backoff
}

// NewRetrier creates a retrier with the given backoff configuration.
func NewRetrier(b Backoff) *Retrier {
	if b.Base <= 0 {
		b.Base = time.Second
	}
	if b.Multiplier < 1 {
		b.Multiplier = 2
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = 5 * time.Minute
	}
	return &Retrier{backoff: b}
}

// Decide determines what to do with a delivery after an attempt.
//
// Any non-2xx response, timeout, or connection error is retried until the
// attempt budget runs out. Partner endpoints routinely flap on client errors
// too (rotated secrets, half-deployed handlers), so 4xx is not treated as
// permanent.
func (r *Retrier) Decide(res Result, d *Delivery) Decision {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return Delivered
	}
	if d.AttemptCount < d.MaxAttempts {
		return Retry
	}
	return Fail
}

// Delay returns the backoff delay after the given attempt count:
// base * multiplier^(attempts-1), capped at MaxDelay.
func (r *Retrier) Delay(attemptCount int) time.Duration {
	d := r.backoff.Base
	for i := 1; i < attemptCount; i++ {
		d = time.Duration(float64(d) * r.backoff.Multiplier)
		if d >= r.backoff.MaxDelay {
			return r.backoff.MaxDelay
		}
	}
	if d > r.backoff.MaxDelay {
		return r.backoff.MaxDelay
	}
	return d
}

// NextAttemptAt returns when the next attempt should run.
func (r *Retrier) NextAttemptAt(now time.Time, attemptCount int) time.Time {
	return now.Add(r.Delay(attemptCount))
}
