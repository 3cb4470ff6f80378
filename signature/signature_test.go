package signature_test

import (
	"strings"
	"testing"

	"github.com/ovuhq/partnergate/signature"
)

func TestSignDeterministic(t *testing.T) {
	payload := []byte(`{"event":"booking.created","data":{"booking_reference":"BK-1"}}`)
	secret := "whsec_test"

	sig1 := signature.Sign(payload, secret)
	sig2 := signature.Sign(payload, secret)

	if sig1 != sig2 {
		t.Fatalf("same payload and secret produced different signatures: %s vs %s", sig1, sig2)
	}
	if len(sig1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(sig1))
	}
	if sig1 != strings.ToLower(sig1) {
		t.Fatal("expected lowercase hex digest")
	}
}

func TestSignDiffersByPayloadAndSecret(t *testing.T) {
	payload := []byte(`{"a":1}`)

	if signature.Sign(payload, "s1") == signature.Sign(payload, "s2") {
		t.Fatal("different secrets produced the same signature")
	}
	if signature.Sign(payload, "s1") == signature.Sign([]byte(`{"a":2}`), "s1") {
		t.Fatal("different payloads produced the same signature")
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"hello":"world"}`)
	secret := "whsec_abc"
	sig := signature.Sign(payload, secret)

	if !signature.Verify(payload, secret, sig) {
		t.Fatal("expected valid signature to verify")
	}
	if signature.Verify(payload, "wrong", sig) {
		t.Fatal("expected wrong secret to fail verification")
	}
	if signature.Verify([]byte(`{"hello":"tampered"}`), secret, sig) {
		t.Fatal("expected tampered payload to fail verification")
	}
	if signature.Verify(payload, secret, "") {
		t.Fatal("expected empty signature to fail verification")
	}
}

func TestGenerateSecret(t *testing.T) {
	s1 := signature.GenerateSecret()
	s2 := signature.GenerateSecret()

	if !strings.HasPrefix(s1, "whsec_") {
		t.Fatalf("expected whsec_ prefix, got %s", s1[:8])
	}
	if len(s1) != 70 {
		t.Fatalf("expected 70 chars, got %d", len(s1))
	}
	if s1 == s2 {
		t.Fatal("expected unique secrets")
	}
}
