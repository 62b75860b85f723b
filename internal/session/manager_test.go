// internal/session/manager_test.go
package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/models"
)

func sessionRow(t *testing.T, token, pinHash string, status models.SessionStatus, expiresAt time.Time) *sqlmock.Rows {
	t.Helper()
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "document_id", "signer_id", "session_token", "pin_hash", "status",
		"started_by", "started_at", "expires_at", "created_at", "updated_at",
	}).AddRow("sess-1", "doc-1", "signer-1", token, pinHash, status,
		"user-1", now, expiresAt, now, now)
}

func TestManager_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO in_person_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewManager(db, "salt", 30*time.Minute, logger.NewTestLogger(t))
	token, created, err := m.Create(context.Background(), "doc-1", "signer-1", "user-1", "1234")
	require.NoError(t, err)

	assert.True(t, created)
	assert.Len(t, token, 64) // 32 random bytes, hex encoded
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_Create_ActiveSessionExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Conditional insert matches nothing when an active session exists.
	mock.ExpectExec(`INSERT INTO in_person_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	m := NewManager(db, "salt", 30*time.Minute, logger.NewTestLogger(t))
	token, created, err := m.Create(context.Background(), "doc-1", "signer-1", "user-1", "")
	require.NoError(t, err)

	assert.False(t, created)
	assert.Empty(t, token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_VerifyPin(t *testing.T) {
	startedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		pin      string
		rowPin   string // PIN whose hash is stored; empty means no PIN set
		status   models.SessionStatus
		now      time.Time
		expected bool
	}{
		{
			name:     "correct pin within ttl",
			pin:      "1234",
			rowPin:   "1234",
			status:   models.SessionStatusActive,
			now:      startedAt.Add(29 * time.Minute),
			expected: true,
		},
		{
			name:     "wrong pin",
			pin:      "9999",
			rowPin:   "1234",
			status:   models.SessionStatusActive,
			now:      startedAt.Add(5 * time.Minute),
			expected: false,
		},
		{
			name:     "session past deadline",
			pin:      "1234",
			rowPin:   "1234",
			status:   models.SessionStatusActive,
			now:      startedAt.Add(31 * time.Minute),
			expected: false,
		},
		{
			name:     "session not active",
			pin:      "1234",
			rowPin:   "1234",
			status:   models.SessionStatusCompleted,
			now:      startedAt.Add(5 * time.Minute),
			expected: false,
		},
		{
			name:     "no pin configured",
			pin:      "1234",
			rowPin:   "",
			status:   models.SessionStatusActive,
			now:      startedAt.Add(5 * time.Minute),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			m := NewManager(db, "salt", 30*time.Minute, logger.NewTestLogger(t))
			m.now = func() time.Time { return tt.now }

			pinHash := ""
			if tt.rowPin != "" {
				pinHash = m.hashPin(tt.rowPin)
			}
			mock.ExpectQuery(`FROM in_person_sessions`).
				WithArgs("tok-1").
				WillReturnRows(sessionRow(t, "tok-1", pinHash, tt.status, startedAt.Add(30*time.Minute)))

			ok, err := m.VerifyPin(context.Background(), "tok-1", tt.pin)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ok)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestManager_VerifyPin_UnknownToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM in_person_sessions`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	m := NewManager(db, "salt", 30*time.Minute, logger.NewTestLogger(t))
	ok, err := m.VerifyPin(context.Background(), "missing", "1234")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestManager_CompleteAndCancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE in_person_sessions`).
		WithArgs(string(models.SessionStatusCompleted), "sess-1", string(models.SessionStatusActive)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE in_person_sessions`).
		WithArgs(string(models.SessionStatusCancelled), "sess-1", string(models.SessionStatusActive)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	m := NewManager(db, "salt", 30*time.Minute, logger.NewTestLogger(t))

	ok, err := m.Complete(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Already completed: cancel is a no-op.
	ok, err = m.Cancel(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_ExpireOld(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE in_person_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 4))

	m := NewManager(db, "salt", 30*time.Minute, logger.NewTestLogger(t))
	n, err := m.ExpireOld(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
