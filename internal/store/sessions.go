// internal/store/sessions.go
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/models"
)

// SessionStore manages in-person signing sessions.
type SessionStore struct {
	q Querier
}

func NewSessionStore(q Querier) *SessionStore {
	return &SessionStore{q: q}
}

const sessionColumns = `id, document_id, signer_id, session_token,
	COALESCE(pin_hash, ''), status, started_by, started_at, expires_at,
	created_at, updated_at`

// CreateIfNoneActive inserts a session only when the document has no other
// active one. The conditional insert makes concurrent creation race-safe
// without an explicit lock. Returns false when an active session exists.
func (s *SessionStore) CreateIfNoneActive(ctx context.Context, sess *models.InPersonSession) (string, bool, error) {
	id := uuid.New().String()
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO in_person_sessions (id, document_id, signer_id,
			session_token, pin_hash, status, started_by, started_at,
			expires_at, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW()
		WHERE NOT EXISTS (
			SELECT 1 FROM in_person_sessions
			WHERE document_id = $2 AND status = $6
		)`,
		id, sess.DocumentID, sess.SignerID, sess.SessionToken, sess.PinHash,
		models.SessionStatusActive, sess.StartedBy, sess.StartedAt, sess.ExpiresAt)
	if err != nil {
		return "", false, errors.NewQueryExecutionFailedError("create session", err)
	}
	n, _ := res.RowsAffected()
	return id, n > 0, nil
}

func (s *SessionStore) GetByToken(ctx context.Context, token string) (*models.InPersonSession, error) {
	var sess models.InPersonSession
	err := s.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM in_person_sessions
		WHERE session_token = $1`, token).Scan(
		&sess.ID, &sess.DocumentID, &sess.SignerID, &sess.SessionToken,
		&sess.PinHash, &sess.Status, &sess.StartedBy, &sess.StartedAt,
		&sess.ExpiresAt, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewSessionNotFoundError(token)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get session", err)
	}
	return &sess, nil
}

// Transition moves an active session to the target status. Returns false if
// the session is no longer active.
func (s *SessionStore) Transition(ctx context.Context, sessionID string, to models.SessionStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE in_person_sessions
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		to, sessionID, models.SessionStatusActive)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("transition session", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Extend pushes the deadline of an active, unexpired session.
func (s *SessionStore) Extend(ctx context.Context, sessionID string, newExpiry time.Time, now time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE in_person_sessions
		SET expires_at = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND expires_at > $4`,
		newExpiry, sessionID, models.SessionStatusActive, now)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("extend session", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ExpireOverdue marks active sessions past their deadline as expired and
// returns how many were swept.
func (s *SessionStore) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE in_person_sessions
		SET status = $1, updated_at = NOW()
		WHERE status = $2 AND expires_at <= $3`,
		models.SessionStatusExpired, models.SessionStatusActive, now)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("expire sessions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
