// Package ratelimit implements the distributed request limiter: fixed-window
// counting against a shared atomic counting store, with dual-level
// (partner + credential) and dual-window (minute + day) accounting.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/observability"
	"github.com/ovuhq/partnergate/partner"
)

// FailPolicy selects limiter behavior when the counting store is unreachable.
type FailPolicy int

const (
	// FailOpen admits requests when the counting store is down. Availability
	// of the booking path is prioritized over strict quota enforcement.
	FailOpen FailPolicy = iota

	// FailClosed rejects requests when the counting store is down.
	FailClosed
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool `json:"allowed"`

	// Minute-window accounting. Limit and Remaining reflect the governing
	// (most restrictive) of the credential and partner counters.
	LimitMinute     int64     `json:"limit_minute"`
	RemainingMinute int64     `json:"remaining_minute"`
	ResetMinute     time.Time `json:"reset_minute"`

	// Day-window accounting.
	LimitDay     int64     `json:"limit_day"`
	RemainingDay int64     `json:"remaining_day"`
	ResetDay     time.Time `json:"reset_day"`

	// RetryAfter hints when a rejected caller should retry. Zero when allowed.
	RetryAfter time.Duration `json:"retry_after,omitempty"`

	// Degraded is set when the decision was produced under the fail-open
	// policy with the counting store unreachable. Limit and remaining
	// fields are zeroed in that case.
	Degraded bool `json:"degraded,omitempty"`
}

// SubjectStore resolves the credential and partner records an admission
// decision needs.
type SubjectStore interface {
	GetCredential(ctx context.Context, credID id.ID) (*credential.Credential, error)
	GetPartner(ctx context.Context, partnerID id.ID) (*partner.Partner, error)
}

// Config holds limiter configuration.
type Config struct {
	// Policy selects fail-open or fail-closed degradation. Default FailOpen.
	Policy FailPolicy

	// Metrics, when set, records admission decisions and store outages.
	Metrics *observability.Metrics

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Limiter admits or rejects requests for a (partner, credential) pair.
// It executes synchronously in the request path: one pipelined call to the
// counting store per decision, no other blocking I/O beyond the subject
// lookups.
type Limiter struct {
	counter  Counter
	subjects SubjectStore
	config   Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewLimiter creates an admission limiter.
func NewLimiter(counter Counter, subjects SubjectStore, cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Limiter{
		counter:  counter,
		subjects: subjects,
		config:   cfg,
		logger:   logger,
		now:      now,
	}
}

// Admit checks and consumes quota for one request.
//
// Both the credential-level and partner-level counters are incremented and
// compared, for each of the minute and day windows; the request is admitted
// only if all four counts are within their limits. The increment happens
// before the comparison and is never rolled back, so rejected requests are
// still counted.
//
// Credential problems (not found, revoked, expired) return an error and no
// decision. Counting-store outages never return an error under FailOpen:
// the decision is allowed with zeroed accounting fields.
func (l *Limiter) Admit(ctx context.Context, partnerID, credID id.ID) (Decision, error) {
	cred, err := l.subjects.GetCredential(ctx, credID)
	if err != nil {
		return Decision{}, err
	}
	if cred.Status == credential.StatusRevoked {
		return Decision{}, credential.ErrRevoked
	}
	if !cred.Active(l.now()) {
		return Decision{}, credential.ErrExpired
	}

	p, err := l.subjects.GetPartner(ctx, partnerID)
	if err != nil {
		return Decision{}, err
	}

	// Effective credential limits: override if present, else partner default.
	credMinLimit := p.RequestsPerMinute
	if cred.PerMinute != nil {
		credMinLimit = *cred.PerMinute
	}
	credDayLimit := p.RequestsPerDay
	if cred.PerDay != nil {
		credDayLimit = *cred.PerDay
	}

	now := l.now()
	minWin := windowAt(now, windowMinute)
	dayWin := windowAt(now, windowDay)

	keys := []WindowKey{
		counterKey(subjectCredential, cred.ID, minWin),
		counterKey(subjectCredential, cred.ID, dayWin),
		counterKey(subjectPartner, p.ID, minWin),
		counterKey(subjectPartner, p.ID, dayWin),
	}

	counts, err := l.counter.IncrEach(ctx, keys)
	if err != nil {
		return l.degrade(ctx, err)
	}

	credMin, credDay, ptnMin, ptnDay := counts[0], counts[1], counts[2], counts[3]

	allowed := within(credMin, credMinLimit) &&
		within(credDay, credDayLimit) &&
		within(ptnMin, p.RequestsPerMinute) &&
		within(ptnDay, p.RequestsPerDay)

	d := Decision{
		Allowed:     allowed,
		ResetMinute: minWin.resetAt(),
		ResetDay:    dayWin.resetAt(),
	}
	d.LimitMinute, d.RemainingMinute = governing(credMin, credMinLimit, ptnMin, p.RequestsPerMinute)
	d.LimitDay, d.RemainingDay = governing(credDay, credDayLimit, ptnDay, p.RequestsPerDay)

	if !allowed {
		if d.RemainingMinute <= 0 && within(credDay, credDayLimit) && within(ptnDay, p.RequestsPerDay) {
			d.RetryAfter = d.ResetMinute.Sub(now)
		} else {
			d.RetryAfter = d.ResetDay.Sub(now)
		}
	}

	if l.config.Metrics != nil {
		if allowed {
			l.config.Metrics.RecordAdmit("allowed")
		} else {
			l.config.Metrics.RecordAdmit("rejected")
		}
	}

	return d, nil
}

// degrade applies the fail policy for a counting-store outage.
func (l *Limiter) degrade(ctx context.Context, cause error) (Decision, error) {
	if l.config.Metrics != nil {
		l.config.Metrics.CounterStoreFailures.Inc()
	}

	if l.config.Policy == FailClosed {
		l.logger.ErrorContext(ctx, "counting store unavailable, failing closed", "error", cause)
		return Decision{Allowed: false}, ErrCounterUnavailable
	}

	l.logger.WarnContext(ctx, "counting store unavailable, failing open", "error", cause)
	if l.config.Metrics != nil {
		l.config.Metrics.RecordAdmit("degraded")
	}
	return Decision{Allowed: true, Degraded: true}, nil
}

// within reports whether a post-increment count is inside the limit.
// A limit of zero or below means unlimited.
func within(count, limit int64) bool {
	return limit <= 0 || count <= limit
}

// governing returns the limit and remaining of whichever level (credential
// or partner) is more restrictive for a window. Remaining is clamped at zero.
func governing(credCount, credLimit, ptnCount, ptnLimit int64) (limit, remaining int64) {
	credRem := remainingOf(credCount, credLimit)
	ptnRem := remainingOf(ptnCount, ptnLimit)

	switch {
	case credLimit <= 0 && ptnLimit <= 0:
		return 0, 0
	case credLimit <= 0:
		return ptnLimit, ptnRem
	case ptnLimit <= 0:
		return credLimit, credRem
	case ptnRem < credRem:
		return ptnLimit, ptnRem
	default:
		return credLimit, credRem
	}
}

func remainingOf(count, limit int64) int64 {
	if limit <= 0 {
		return 0
	}
	if rem := limit - count; rem > 0 {
		return rem
	}
	return 0
}
