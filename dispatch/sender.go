package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/signature"
)

const maxResponseBody = 1024 // cap on stored response bytes

// Result holds the outcome of a single delivery attempt.
type Result struct {
	StatusCode int
	Error      string
	TimedOut   bool
	LatencyMs  int
}

// Sender performs HTTP webhook delivery.
type Sender struct {
	client  *http.Client
	timeout time.Duration
}

// NewSender creates a sender with the given per-attempt timeout.
func NewSender(timeout time.Duration) *Sender {
	return &Sender{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// envelope is the JSON body posted to partner webhook endpoints.
type envelope struct {
	Event       event.Type `json:"event"`
	Timestamp   string     `json:"timestamp"`
	PartnerCode string     `json:"partner_code"`
	Data        any        `json:"data"`
}

// Send delivers an event to a partner's webhook target and returns the result.
// The signature is computed over the exact bytes sent, so receivers verify
// against the raw request body.
func (s *Sender) Send(ctx context.Context, target *partner.WebhookTarget, evt *event.Event, d *Delivery) Result {
	body, err := json.Marshal(envelope{
		Event:       evt.Type,
		Timestamp:   evt.OccurredAt.UTC().Format(time.RFC3339),
		PartnerCode: evt.PartnerCode,
		Data:        evt.Data,
	})
	if err != nil {
		return Result{Error: fmt.Sprintf("marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "PartnerGate/1.0")
	req.Header.Set("X-Gateway-Event", evt.Type.String())
	req.Header.Set("X-Gateway-Event-ID", evt.ID.String())
	req.Header.Set("X-Gateway-Delivery-ID", d.ID.String())
	req.Header.Set("X-Gateway-Signature", signature.Sign(body, target.Secret))

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return Result{
			Error:     err.Error(),
			TimedOut:  isTimeout(err),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.CopyN(io.Discard, resp.Body, maxResponseBody)

	return Result{
		StatusCode: resp.StatusCode,
		LatencyMs:  int(latency),
	}
}

// isTimeout reports whether err represents an attempt deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
