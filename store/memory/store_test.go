package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ovuhq/partnergate"
	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/ratelimit"
	"github.com/ovuhq/partnergate/store/memory"
)

func newDelivery(partnerID id.ID, state dispatch.State, dueAt time.Time) *dispatch.Delivery {
	d := &dispatch.Delivery{
		ID:            id.NewDeliveryID(),
		EventID:       id.NewEventID(),
		PartnerID:     partnerID,
		State:         state,
		MaxAttempts:   5,
		NextAttemptAt: dueAt,
	}
	d.Entity = entity.New()
	return d
}

func TestClaimDueFiltering(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	partnerID := id.NewPartnerID()
	now := time.Now().UTC()

	due := newDelivery(partnerID, dispatch.StatePending, now.Add(-time.Second))
	retryDue := newDelivery(partnerID, dispatch.StateRetryScheduled, now.Add(-time.Minute))
	future := newDelivery(partnerID, dispatch.StatePending, now.Add(time.Hour))
	terminal := newDelivery(partnerID, dispatch.StateDelivered, now.Add(-time.Hour))

	for _, d := range []*dispatch.Delivery{due, retryDue, future, terminal} {
		if err := st.Enqueue(ctx, d); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	claimed, err := st.Claim(ctx, now, 10)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("expected 2 due deliveries, got %d", len(claimed))
	}
	// Ordered by due time, oldest first.
	if claimed[0].ID.String() != retryDue.ID.String() {
		t.Errorf("expected oldest due delivery first, got %s", claimed[0].ID)
	}
	for _, d := range claimed {
		if d.State != dispatch.StateInFlight {
			t.Errorf("claimed delivery %s not marked in_flight: %s", d.ID, d.State)
		}
	}

	// A second claim sees nothing; in_flight is excluded.
	again, err := st.Claim(ctx, now, 10)
	if err != nil {
		t.Fatalf("second Claim() error = %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected claim exclusivity, got %d deliveries twice", len(again))
	}
}

func TestClaimHonorsLimit(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	partnerID := id.NewPartnerID()
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		if err := st.Enqueue(ctx, newDelivery(partnerID, dispatch.StatePending, now.Add(-time.Second))); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	claimed, err := st.Claim(ctx, now, 3)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if len(claimed) != 3 {
		t.Fatalf("expected batch of 3, got %d", len(claimed))
	}

	remaining, err := st.CountDue(ctx, now)
	if err != nil {
		t.Fatalf("CountDue() error = %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 still due, got %d", remaining)
	}
}

func TestCreateEventIdempotency(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	first := &event.Event{ID: id.NewEventID(), Type: event.TypeBookingCreated, IdempotencyKey: "k1"}
	if err := st.CreateEvent(ctx, first); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	dup := &event.Event{ID: id.NewEventID(), Type: event.TypeBookingCreated, IdempotencyKey: "k1"}
	if err := st.CreateEvent(ctx, dup); !errors.Is(err, event.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}

	// Events without a key never collide.
	for i := 0; i < 2; i++ {
		if err := st.CreateEvent(ctx, &event.Event{ID: id.NewEventID(), Type: event.TypeBookingCreated}); err != nil {
			t.Fatalf("keyless CreateEvent() error = %v", err)
		}
	}
}

func TestRotateCredentialAtomic(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	old := &credential.Credential{
		Entity:    entity.New(),
		ID:        id.NewCredentialID(),
		PartnerID: id.NewPartnerID(),
		PublicID:  "pk_live_old",
		Status:    credential.StatusActive,
	}
	if err := st.CreateCredential(ctx, old); err != nil {
		t.Fatalf("CreateCredential() error = %v", err)
	}

	revoked := *old
	revoked.Status = credential.StatusRevoked
	revoked.RevokedAt = &now

	issued := &credential.Credential{
		Entity:    entity.New(),
		ID:        id.NewCredentialID(),
		PartnerID: old.PartnerID,
		PublicID:  "pk_live_new",
		Status:    credential.StatusActive,
	}

	if err := st.RotateCredential(ctx, &revoked, issued); err != nil {
		t.Fatalf("RotateCredential() error = %v", err)
	}

	gotOld, err := st.GetCredentialByPublicID(ctx, "pk_live_old")
	if err != nil {
		t.Fatalf("GetCredentialByPublicID(old) error = %v", err)
	}
	if gotOld.Status != credential.StatusRevoked {
		t.Errorf("expected old credential revoked, got %s", gotOld.Status)
	}

	gotNew, err := st.GetCredentialByPublicID(ctx, "pk_live_new")
	if err != nil {
		t.Fatalf("GetCredentialByPublicID(new) error = %v", err)
	}
	if gotNew.Status != credential.StatusActive {
		t.Errorf("expected new credential active, got %s", gotNew.Status)
	}
}

func TestTerminatePartnerSoftDelete(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	p := &partner.Partner{
		Entity: entity.New(),
		ID:     id.NewPartnerID(),
		Code:   "ACME-7F3A",
		Status: partner.StatusActive,
	}
	if err := st.CreatePartner(ctx, p); err != nil {
		t.Fatalf("CreatePartner() error = %v", err)
	}
	if err := st.TerminatePartner(ctx, p.ID); err != nil {
		t.Fatalf("TerminatePartner() error = %v", err)
	}

	// The record survives termination for audit and history.
	got, err := st.GetPartner(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPartner() after terminate error = %v", err)
	}
	if got.Status != partner.StatusTerminated {
		t.Errorf("expected terminated status, got %s", got.Status)
	}
	if got.TerminatedAt == nil {
		t.Error("expected TerminatedAt to be set")
	}
}

func TestPingAfterClose(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping() on open store error = %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := st.Ping(ctx); !errors.Is(err, partnergate.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

func TestCounterTTLExpiry(t *testing.T) {
	c := memory.NewCounter()
	clock := time.Now().UTC()
	c.SetNow(func() time.Time { return clock })

	keys := []ratelimit.WindowKey{{Key: "rl:ptn:x:m:1", TTL: 90 * time.Second}}

	counts, err := c.IncrEach(context.Background(), keys)
	if err != nil {
		t.Fatalf("IncrEach() error = %v", err)
	}
	if counts[0] != 1 {
		t.Fatalf("expected count 1, got %d", counts[0])
	}

	counts, _ = c.IncrEach(context.Background(), keys)
	if counts[0] != 2 {
		t.Fatalf("expected count 2, got %d", counts[0])
	}

	// Past the TTL the counter starts over.
	clock = clock.Add(2 * time.Minute)
	counts, _ = c.IncrEach(context.Background(), keys)
	if counts[0] != 1 {
		t.Fatalf("expected fresh counter after TTL, got %d", counts[0])
	}
}

func TestCounterUnavailable(t *testing.T) {
	c := memory.NewCounter()
	c.SetUnavailable(true)

	_, err := c.IncrEach(context.Background(), []ratelimit.WindowKey{{Key: "k", TTL: time.Minute}})
	if !errors.Is(err, ratelimit.ErrCounterUnavailable) {
		t.Fatalf("expected ErrCounterUnavailable, got %v", err)
	}

	c.SetUnavailable(false)
	if _, err := c.IncrEach(context.Background(), []ratelimit.WindowKey{{Key: "k", TTL: time.Minute}}); err != nil {
		t.Fatalf("expected recovery after outage, got %v", err)
	}
}
