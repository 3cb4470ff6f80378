package ratelimit_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/ratelimit"
	"github.com/ovuhq/partnergate/store/memory"
)

type limiterFixture struct {
	store   *memory.Store
	counter *memory.Counter
	limiter *ratelimit.Limiter
	partner *partner.Partner
	cred    *credential.Credential

	clock time.Time
}

func setupLimiter(t *testing.T, perMinute, perDay int64, policy ratelimit.FailPolicy) *limiterFixture {
	t.Helper()

	f := &limiterFixture{
		store:   memory.New(),
		counter: memory.NewCounter(),
		clock:   time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }
	f.counter.SetNow(now)

	f.partner = &partner.Partner{
		Entity:            entity.New(),
		ID:                id.NewPartnerID(),
		Code:              "ACME-7F3A",
		Name:              "Acme Travel",
		Status:            partner.StatusActive,
		RequestsPerMinute: perMinute,
		RequestsPerDay:    perDay,
		Entitlements:      credential.AllScopes(),
	}
	if err := f.store.CreatePartner(context.Background(), f.partner); err != nil {
		t.Fatalf("CreatePartner() error = %v", err)
	}

	f.cred = f.issueCredential(t, credential.IssueInput{})

	f.limiter = ratelimit.NewLimiter(f.counter, f.store, ratelimit.Config{
		Policy: policy,
		Now:    now,
	}, slog.Default())
	return f
}

func (f *limiterFixture) issueCredential(t *testing.T, in credential.IssueInput) *credential.Credential {
	t.Helper()
	svc := credential.NewService(f.store, slog.Default())
	issued, err := svc.Issue(context.Background(), f.partner.ID, in)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return issued.Credential
}

func (f *limiterFixture) admit(t *testing.T) ratelimit.Decision {
	t.Helper()
	d, err := f.limiter.Admit(context.Background(), f.partner.ID, f.cred.ID)
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	return d
}

func TestAdmitWithinLimit(t *testing.T) {
	f := setupLimiter(t, 3, 100, ratelimit.FailOpen)

	for i := 0; i < 3; i++ {
		d := f.admit(t)
		if !d.Allowed {
			t.Fatalf("request %d rejected within limit", i+1)
		}
		if d.LimitMinute != 3 {
			t.Fatalf("expected minute limit 3, got %d", d.LimitMinute)
		}
		if want := int64(2 - i); d.RemainingMinute != want {
			t.Fatalf("request %d: expected remaining %d, got %d", i+1, want, d.RemainingMinute)
		}
	}

	d := f.admit(t)
	if d.Allowed {
		t.Fatal("request over limit was admitted")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("expected positive RetryAfter, got %v", d.RetryAfter)
	}
	if d.RetryAfter > time.Minute {
		t.Fatalf("expected RetryAfter within the minute window, got %v", d.RetryAfter)
	}
	if d.RemainingMinute != 0 {
		t.Fatalf("expected remaining 0 on rejection, got %d", d.RemainingMinute)
	}
}

func TestRejectedRequestsStillCount(t *testing.T) {
	f := setupLimiter(t, 1, 100, ratelimit.FailOpen)

	if d := f.admit(t); !d.Allowed {
		t.Fatal("first request rejected")
	}
	// Rejections are not rolled back, so the counter keeps climbing and
	// remaining never recovers inside the window.
	for i := 0; i < 3; i++ {
		d := f.admit(t)
		if d.Allowed {
			t.Fatalf("request %d admitted over limit", i+2)
		}
		if d.RemainingMinute != 0 {
			t.Fatalf("expected remaining 0, got %d", d.RemainingMinute)
		}
	}
}

func TestCredentialOverrideGoverns(t *testing.T) {
	f := setupLimiter(t, 100, 1000, ratelimit.FailOpen)

	two := int64(2)
	f.cred = f.issueCredential(t, credential.IssueInput{PerMinute: &two})

	for i := 0; i < 2; i++ {
		d := f.admit(t)
		if !d.Allowed {
			t.Fatalf("request %d rejected within credential limit", i+1)
		}
		if d.LimitMinute != 2 {
			t.Fatalf("expected governing minute limit 2, got %d", d.LimitMinute)
		}
	}
	if d := f.admit(t); d.Allowed {
		t.Fatal("credential override not enforced")
	}
}

func TestPartnerLimitSharedAcrossCredentials(t *testing.T) {
	f := setupLimiter(t, 3, 1000, ratelimit.FailOpen)
	second := f.issueCredential(t, credential.IssueInput{})

	creds := []id.ID{f.cred.ID, second.ID, f.cred.ID}
	for i, credID := range creds {
		d, err := f.limiter.Admit(context.Background(), f.partner.ID, credID)
		if err != nil {
			t.Fatalf("Admit() error = %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d rejected within partner limit", i+1)
		}
	}

	// Partner counter is shared, so the fourth request is rejected no matter
	// which credential presents it.
	d, err := f.limiter.Admit(context.Background(), f.partner.ID, second.ID)
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if d.Allowed {
		t.Fatal("partner-level cap not shared across credentials")
	}
}

func TestWindowReset(t *testing.T) {
	f := setupLimiter(t, 1, 1000, ratelimit.FailOpen)

	if d := f.admit(t); !d.Allowed {
		t.Fatal("first request rejected")
	}
	if d := f.admit(t); d.Allowed {
		t.Fatal("second request admitted over limit")
	}

	f.clock = f.clock.Add(2 * time.Minute)

	d := f.admit(t)
	if !d.Allowed {
		t.Fatal("expected admission in a fresh minute window")
	}
	if d.RemainingMinute != 0 {
		t.Fatalf("expected remaining 0 after one request at limit 1, got %d", d.RemainingMinute)
	}
}

func TestDayLimitOutlivesMinuteWindows(t *testing.T) {
	f := setupLimiter(t, 100, 2, ratelimit.FailOpen)

	f.admit(t)
	f.clock = f.clock.Add(2 * time.Minute)
	f.admit(t)
	f.clock = f.clock.Add(2 * time.Minute)

	d := f.admit(t)
	if d.Allowed {
		t.Fatal("day limit not enforced across minute windows")
	}
	if d.RetryAfter <= time.Minute {
		t.Fatalf("expected RetryAfter pointing at the day reset, got %v", d.RetryAfter)
	}
}

func TestFailOpen(t *testing.T) {
	f := setupLimiter(t, 1, 1, ratelimit.FailOpen)
	f.counter.SetUnavailable(true)

	d, err := f.limiter.Admit(context.Background(), f.partner.ID, f.cred.ID)
	if err != nil {
		t.Fatalf("expected fail-open to swallow the outage, got %v", err)
	}
	if !d.Allowed {
		t.Fatal("expected admission under fail-open")
	}
	if !d.Degraded {
		t.Fatal("expected the decision to be marked degraded")
	}
}

func TestFailClosed(t *testing.T) {
	f := setupLimiter(t, 100, 100, ratelimit.FailClosed)
	f.counter.SetUnavailable(true)

	d, err := f.limiter.Admit(context.Background(), f.partner.ID, f.cred.ID)
	if !errors.Is(err, ratelimit.ErrCounterUnavailable) {
		t.Fatalf("expected ErrCounterUnavailable, got %v", err)
	}
	if d.Allowed {
		t.Fatal("expected rejection under fail-closed")
	}
}

func TestAdmitRevokedCredential(t *testing.T) {
	f := setupLimiter(t, 100, 100, ratelimit.FailOpen)

	svc := credential.NewService(f.store, slog.Default())
	if err := svc.Revoke(context.Background(), f.cred.ID); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	_, err := f.limiter.Admit(context.Background(), f.partner.ID, f.cred.ID)
	if !errors.Is(err, credential.ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func TestAdmitExpiredCredential(t *testing.T) {
	f := setupLimiter(t, 100, 100, ratelimit.FailOpen)

	past := f.clock.Add(-time.Hour)
	f.cred.ExpiresAt = &past
	if err := f.store.UpdateCredential(context.Background(), f.cred); err != nil {
		t.Fatalf("UpdateCredential() error = %v", err)
	}

	_, err := f.limiter.Admit(context.Background(), f.partner.ID, f.cred.ID)
	if !errors.Is(err, credential.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestUnlimitedPartner(t *testing.T) {
	f := setupLimiter(t, 0, 0, ratelimit.FailOpen)

	for i := 0; i < 50; i++ {
		d := f.admit(t)
		if !d.Allowed {
			t.Fatalf("request %d rejected with no limits configured", i+1)
		}
	}
}
