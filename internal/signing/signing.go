// Package signing computes and verifies the HMAC-SHA256 message
// authentication codes carried in the X-Webhook-Signature header.
//
// Sign is always computed over the exact bytes that go on the wire.
// The receiver must recompute over the bytes it received, not over a
// re-serialization, or canonical ordering differences will break the
// comparison.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex-encoded HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body under secret, using a
// constant-time comparison.
func Verify(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
