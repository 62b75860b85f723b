// internal/models/session.go
package models

import "time"

// SessionStatus is the in-person session lifecycle state.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// DefaultSessionTTL is how long a freshly created session stays active.
const DefaultSessionTTL = 30 * time.Minute

// InPersonSession is a time-boxed, PIN-gated capability for a signer to
// counter-sign on a shared device without their own link.
type InPersonSession struct {
	ID           string        `json:"id" db:"id"`
	DocumentID   string        `json:"documentId" db:"document_id"`
	SignerID     string        `json:"signerId" db:"signer_id"`
	SessionToken string        `json:"-" db:"session_token"`
	PinHash      string        `json:"-" db:"pin_hash"`
	Status       SessionStatus `json:"status" db:"status"`
	StartedBy    string        `json:"startedBy" db:"started_by"`
	StartedAt    time.Time     `json:"startedAt" db:"started_at"`
	ExpiresAt    time.Time     `json:"expiresAt" db:"expires_at"`
	CreatedAt    time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsExpired reports whether the session deadline has passed.
func (s *InPersonSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
