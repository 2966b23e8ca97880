package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec-licensing"
	payload := []byte("billplz%5Bid%5D=bill_1&billplz%5Bpaid%5D=true")

	t.Run("valid signature accepted", func(t *testing.T) {
		sig := ComputeSignature(secret, payload)
		assert.True(t, VerifySignature(secret, payload, sig))
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		sig := ComputeSignature("other-secret", payload)
		assert.False(t, VerifySignature(secret, payload, sig))
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		sig := ComputeSignature(secret, payload)
		tampered := []byte("billplz%5Bid%5D=bill_2&billplz%5Bpaid%5D=true")
		assert.False(t, VerifySignature(secret, tampered, sig))
	})

	t.Run("empty signature rejected", func(t *testing.T) {
		assert.False(t, VerifySignature(secret, payload, ""))
	})

	t.Run("empty secret rejected", func(t *testing.T) {
		sig := ComputeSignature("", payload)
		assert.False(t, VerifySignature("", payload, sig))
	})

	t.Run("signature binds to exact raw bytes", func(t *testing.T) {
		// A re-serialized form of the same data must not verify.
		sig := ComputeSignature(secret, payload)
		reordered := []byte("billplz%5Bpaid%5D=true&billplz%5Bid%5D=bill_1")
		assert.False(t, VerifySignature(secret, reordered, sig))
	})
}
