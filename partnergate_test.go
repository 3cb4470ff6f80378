package partnergate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ovuhq/partnergate"
	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/id"
	"github.com/ovuhq/partnergate/internal/entity"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/store/memory"
)

func setupGateway(t *testing.T, webhookURL string) (*partnergate.Gateway, *memory.Store, *partner.Partner) {
	t.Helper()

	st := memory.New()
	p := &partner.Partner{
		Entity:            entity.New(),
		ID:                id.NewPartnerID(),
		Code:              "ACME-7F3A",
		Name:              "Acme Travel",
		Status:            partner.StatusActive,
		WebhookURL:        webhookURL,
		WebhookSecret:     "whsec_gateway_test",
		SubscribedEvents:  []event.Type{event.TypeBookingCreated},
		RequestsPerMinute: 100,
		RequestsPerDay:    10000,
		Entitlements:      credential.AllScopes(),
	}
	if err := st.CreatePartner(context.Background(), p); err != nil {
		t.Fatalf("CreatePartner() error = %v", err)
	}

	g, err := partnergate.New(
		partnergate.WithStore(st),
		partnergate.WithCounter(memory.NewCounter()),
		partnergate.WithPollInterval(10*time.Millisecond),
		partnergate.WithBackoff(dispatch.Backoff{Base: 5 * time.Millisecond, Multiplier: 2, MaxDelay: 50 * time.Millisecond}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g, st, p
}

func TestNewRequiresStoreAndCounter(t *testing.T) {
	if _, err := partnergate.New(); !errors.Is(err, partnergate.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if _, err := partnergate.New(partnergate.WithStore(memory.New())); !errors.Is(err, partnergate.ErrNoCounter) {
		t.Fatalf("expected ErrNoCounter, got %v", err)
	}
}

func TestStartTwice(t *testing.T) {
	g, _, _ := setupGateway(t, "")
	ctx := context.Background()

	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer g.Stop(ctx)

	if err := g.Start(ctx); !errors.Is(err, partnergate.ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

// TestGatewayEndToEnd exercises the full partner path: issue a credential,
// authenticate, admit a request, dispatch an event, and read the usage back.
func TestGatewayEndToEnd(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g, st, p := setupGateway(t, srv.URL)
	ctx := context.Background()

	issued, err := g.Credentials().Issue(ctx, p.ID, credential.IssueInput{
		Scopes: []credential.Scope{credential.ScopeBooking},
	})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	authed, err := g.Credentials().Authenticate(ctx, issued.PublicID, issued.Secret, "")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if err := g.Credentials().RequireScope(authed, credential.ScopeBooking); err != nil {
		t.Fatalf("RequireScope() error = %v", err)
	}

	decision, err := g.Admit(ctx, p.ID, authed.ID)
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected admission")
	}

	if err := g.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer g.Stop(ctx)

	evt := &event.Event{
		Type:        event.TypeBookingCreated,
		PartnerID:   p.ID,
		PartnerCode: p.Code,
		Data: event.BookingPayload{
			BookingReference: "BK-2025-001",
			Status:           "created",
		},
	}
	if err := g.Dispatch(ctx, evt); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	deliveries, err := st.ListDeliveriesByEvent(ctx, evt.ID)
	if err != nil {
		t.Fatalf("ListDeliveriesByEvent() error = %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(deliveries))
	}

	deadline := time.Now().Add(3 * time.Second)
	var final *dispatch.Delivery
	for time.Now().Before(deadline) {
		final, err = st.GetDelivery(ctx, deliveries[0].ID)
		if err != nil {
			t.Fatalf("GetDelivery() error = %v", err)
		}
		if final.State == dispatch.StateDelivered {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if final.State != dispatch.StateDelivered {
		t.Fatalf("delivery never completed, stuck at %s", final.State)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 webhook call, got %d", hits.Load())
	}

	usage, err := g.Tracker().UsageSince(ctx, p.ID, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("UsageSince() error = %v", err)
	}
	if usage.Requests != 1 {
		t.Errorf("expected 1 admitted request, got %d", usage.Requests)
	}
	if usage.Delivered != 1 {
		t.Errorf("expected 1 delivered attempt, got %d", usage.Delivered)
	}
}

func TestWebhookTarget(t *testing.T) {
	g, _, p := setupGateway(t, "https://partner.example.com/hooks")

	target, err := g.WebhookTarget(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("WebhookTarget() error = %v", err)
	}
	if target.URL != "https://partner.example.com/hooks" {
		t.Errorf("unexpected URL %s", target.URL)
	}
	if target.Secret != "whsec_gateway_test" {
		t.Error("expected signing secret on the resolved target")
	}
}

func TestWebhookTargetNotConfigured(t *testing.T) {
	g, _, p := setupGateway(t, "")

	_, err := g.WebhookTarget(context.Background(), p.ID)
	if !errors.Is(err, partner.ErrWebhookNotConfigured) {
		t.Fatalf("expected ErrWebhookNotConfigured, got %v", err)
	}
}
