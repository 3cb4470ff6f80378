package dispatch_test

import (
	"testing"
	"time"

	"github.com/ovuhq/partnergate/dispatch"
)

func TestDecide(t *testing.T) {
	r := dispatch.NewRetrier(dispatch.Backoff{})

	tests := []struct {
		name    string
		result  dispatch.Result
		attempt int
		max     int
		want    dispatch.Decision
	}{
		{"2xx delivers", dispatch.Result{StatusCode: 200}, 1, 5, dispatch.Delivered},
		{"204 delivers", dispatch.Result{StatusCode: 204}, 1, 5, dispatch.Delivered},
		{"5xx retries under budget", dispatch.Result{StatusCode: 500}, 1, 5, dispatch.Retry},
		{"4xx retries under budget", dispatch.Result{StatusCode: 404}, 2, 5, dispatch.Retry},
		{"timeout retries under budget", dispatch.Result{TimedOut: true, Error: "deadline"}, 3, 5, dispatch.Retry},
		{"5xx fails at budget", dispatch.Result{StatusCode: 500}, 5, 5, dispatch.Fail},
		{"connection error fails at budget", dispatch.Result{Error: "refused"}, 5, 5, dispatch.Fail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &dispatch.Delivery{AttemptCount: tt.attempt, MaxAttempts: tt.max}
			if got := r.Decide(tt.result, d); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDelay(t *testing.T) {
	r := dispatch.NewRetrier(dispatch.Backoff{
		Base:       time.Second,
		Multiplier: 2,
		MaxDelay:   10 * time.Second,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{10, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := r.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNextAttemptAt(t *testing.T) {
	r := dispatch.NewRetrier(dispatch.Backoff{Base: time.Second, Multiplier: 2, MaxDelay: time.Minute})
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if got := r.NextAttemptAt(now, 3); got != now.Add(4*time.Second) {
		t.Errorf("NextAttemptAt() = %v, want %v", got, now.Add(4*time.Second))
	}
}

func TestRetrierDefaults(t *testing.T) {
	r := dispatch.NewRetrier(dispatch.Backoff{})

	if got := r.Delay(1); got != time.Second {
		t.Errorf("default base: Delay(1) = %v, want 1s", got)
	}
	if got := r.Delay(100); got != 5*time.Minute {
		t.Errorf("default cap: Delay(100) = %v, want 5m", got)
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := []dispatch.State{dispatch.StateDelivered, dispatch.StateFailed, dispatch.StateSkipped}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	open := []dispatch.State{dispatch.StatePending, dispatch.StateInFlight, dispatch.StateRetryScheduled}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
