// internal/session/manager.go
package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/metrics"
	"esign-engine/internal/models"
	"esign-engine/internal/store"
)

// Manager runs the in-person signing session lifecycle. A session is a
// bounded-time, optionally PIN-gated capability to counter-sign on a shared
// device; at most one session is active per document.
type Manager struct {
	sessions *store.SessionStore
	pinSalt  string
	ttl      time.Duration
	log      logger.Logger
	now      func() time.Time
}

func NewManager(q store.Querier, pinSalt string, ttl time.Duration, log logger.Logger) *Manager {
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL
	}
	return &Manager{
		sessions: store.NewSessionStore(q),
		pinSalt:  pinSalt,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// hashPin is a salted single-round hash. Deliberately lightweight: the PIN
// gates a 30-minute in-room session, not a long-lived credential.
func (m *Manager) hashPin(pin string) string {
	sum := sha256.Sum256([]byte(m.pinSalt + pin))
	return hex.EncodeToString(sum[:])
}

// Create starts a session for a signer. pin may be empty. Returns the
// session token on success, or created=false when the document already has
// an active session.
func (m *Manager) Create(ctx context.Context, documentID, signerID, startedBy, pin string) (token string, created bool, err error) {
	now := m.now().UTC()
	sess := &models.InPersonSession{
		DocumentID:   documentID,
		SignerID:     signerID,
		SessionToken: store.NewToken(),
		StartedBy:    startedBy,
		StartedAt:    now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if pin != "" {
		sess.PinHash = m.hashPin(pin)
	}

	_, created, err = m.sessions.CreateIfNoneActive(ctx, sess)
	if err != nil {
		return "", false, err
	}
	if !created {
		m.log.Info("active session already exists", map[string]interface{}{
			"documentId": documentID,
		})
		return "", false, nil
	}
	return sess.SessionToken, true, nil
}

// VerifyPin re-hashes the supplied PIN against the stored hash. Any
// mismatch, absent PIN, or expired/non-active session yields false, never an
// error.
func (m *Manager) VerifyPin(ctx context.Context, token, pin string) (bool, error) {
	sess, err := m.sessions.GetByToken(ctx, token)
	if err != nil {
		return false, err
	}
	if sess.Status != models.SessionStatusActive || sess.IsExpired(m.now().UTC()) {
		return false, nil
	}
	if sess.PinHash == "" {
		return false, nil
	}
	return hmac.Equal([]byte(m.hashPin(pin)), []byte(sess.PinHash)), nil
}

// Complete transitions active → completed. False when not active.
func (m *Manager) Complete(ctx context.Context, sessionID string) (bool, error) {
	return m.sessions.Transition(ctx, sessionID, models.SessionStatusCompleted)
}

// Cancel transitions active → cancelled. False when not active.
func (m *Manager) Cancel(ctx context.Context, sessionID string) (bool, error) {
	return m.sessions.Transition(ctx, sessionID, models.SessionStatusCancelled)
}

// Extend pushes the deadline of a still-active session forward by the
// configured TTL from now. False when the session is no longer active or
// already past its deadline.
func (m *Manager) Extend(ctx context.Context, sessionID string) (bool, error) {
	now := m.now().UTC()
	return m.sessions.Extend(ctx, sessionID, now.Add(m.ttl), now)
}

// ExpireOld sweeps overdue active sessions to expired and returns the count.
func (m *Manager) ExpireOld(ctx context.Context) (int64, error) {
	n, err := m.sessions.ExpireOverdue(ctx, m.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.SessionsExpired.Add(float64(n))
		m.log.Info("expired overdue sessions", map[string]interface{}{
			"count": n,
		})
	}
	return n, nil
}
