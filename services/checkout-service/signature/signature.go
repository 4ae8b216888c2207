// Package signature authenticates gateway callbacks with HMAC-SHA256.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns hex(HMAC-SHA256(secret, orderRef + "|" + paymentRef)).
func Sign(orderRef, paymentRef, secret string) string {
	return SignPayload([]byte(orderRef+"|"+paymentRef), secret)
}

// Verify reports whether signature was produced by Sign with the same secret.
// The comparison is constant time.
func Verify(orderRef, paymentRef, signature, secret string) bool {
	return VerifyPayload([]byte(orderRef+"|"+paymentRef), signature, secret)
}

// SignPayload returns the hex HMAC of an arbitrary body.
func SignPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayload authenticates a raw webhook body against its hex signature.
// The signature must match the lowercase hex digest exactly.
func VerifyPayload(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(SignPayload(body, secret)), []byte(signature))
}
