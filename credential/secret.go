package credential

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// Key material formats. Public identifiers and secrets carry distinct
// prefixes so misplaced values are recognizable in logs and support tickets.
const (
	publicIDPrefix = "pk_live_"
	secretPrefix   = "sk_live_"
)

// generatePublicID creates a random public key identifier: "pk_live_" + 16 bytes hex.
func generatePublicID() string {
	return publicIDPrefix + randomHex(16)
}

// generateSecret creates a random API secret: "sk_live_" + 32 bytes hex.
func generateSecret() string {
	return secretPrefix + randomHex(32)
}

// generateSalt creates a per-credential hashing salt, hex encoded.
func generateSalt() string {
	return randomHex(16)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("credential: failed to generate random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// hashSecret returns the hex SHA-256 digest of salt||secret. Verification of
// a presented secret happens on every inbound API call, so the hash must be
// cheap; unguessable 32-byte random secrets do not need a slow KDF.
func hashSecret(secret, salt string) string {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(secret))
	return hex.EncodeToString(h.Sum(nil))
}

// verifySecret compares a presented secret against the stored salted hash in
// constant time.
func verifySecret(secret, salt, storedHash string) bool {
	computed := hashSecret(secret, salt)
	return hmac.Equal([]byte(computed), []byte(storedHash))
}
