package event_test

import (
	"errors"
	"testing"

	"github.com/ovuhq/partnergate/event"
)

func TestValidateBookingPayload(t *testing.T) {
	v := event.NewValidator()

	err := v.Validate(event.TypeBookingCreated, event.BookingPayload{
		BookingReference: "BK-2025-001",
		Status:           "created",
		Origin:           "NBO",
		Destination:      "MSA",
		PassengerCount:   2,
		TotalAmount:      4500,
		Currency:         "KES",
	})
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	v := event.NewValidator()

	err := v.Validate(event.TypeBookingCreated, map[string]any{
		"status": "created", // booking_reference missing
	})
	if !errors.Is(err, event.ErrPayloadInvalid) {
		t.Fatalf("expected ErrPayloadInvalid, got %v", err)
	}
}

func TestValidatePaymentPayload(t *testing.T) {
	v := event.NewValidator()

	err := v.Validate(event.TypePaymentSuccess, event.PaymentPayload{
		PaymentReference: "PAY-001",
		BookingReference: "BK-2025-001",
		Amount:           4500,
		Currency:         "KES",
		Status:           "success",
	})
	if err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	// Bad currency length.
	err = v.Validate(event.TypePaymentSuccess, map[string]any{
		"payment_reference": "PAY-001",
		"booking_reference": "BK-2025-001",
		"amount":            4500,
		"currency":          "KENYAN SHILLING",
		"status":            "success",
	})
	if !errors.Is(err, event.ErrPayloadInvalid) {
		t.Fatalf("expected ErrPayloadInvalid, got %v", err)
	}
}

func TestValidateUnknownType(t *testing.T) {
	v := event.NewValidator()

	err := v.Validate(event.Type("mystery.event"), map[string]any{})
	if !errors.Is(err, event.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestTypeValid(t *testing.T) {
	for _, typ := range event.Types() {
		if !typ.Valid() {
			t.Fatalf("registered type %s reported invalid", typ)
		}
	}
	if event.Type("booking.deleted").Valid() {
		t.Fatal("unregistered type reported valid")
	}
}
