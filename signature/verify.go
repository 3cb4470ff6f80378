package signature

import "crypto/hmac"

// Verify checks whether sig matches the expected HMAC-SHA256 digest of
// payload keyed by secret. The comparison is constant-time.
//
// This is the consumer-side contract: partners must recompute the digest
// over the raw received body and compare it against the signature header
// using a constant-time comparison such as this one.
func (s *Signer) Verify(payload []byte, secret, sig string) bool {
	return Verify(payload, secret, sig)
}

// Verify checks whether sig matches the expected HMAC-SHA256 digest of
// payload keyed by secret using a constant-time comparison.
func Verify(payload []byte, secret, sig string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}
