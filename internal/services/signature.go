package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSignature returns the hex-encoded HMAC-SHA256 of payload keyed by
// the tenant webhook secret.
func ComputeSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks provided against the keyed hash of the exact raw
// payload bytes. The comparison is constant time; callers must not reveal
// which part of the check failed.
func VerifySignature(secret string, payload []byte, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	expected := ComputeSignature(secret, payload)
	return hmac.Equal([]byte(expected), []byte(provided))
}
