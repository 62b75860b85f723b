// internal/store/tokens.go
package store

import (
	"crypto/rand"
	"encoding/hex"
)

// NewToken returns a 64-char hex token for signer access links and session
// tokens. Tokens are unique within a tenant by construction (256 bits of
// randomness) and enforced by a unique index.
func NewToken() string {
	buf := make([]byte, 32)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
