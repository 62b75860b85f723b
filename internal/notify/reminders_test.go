// internal/notify/reminders_test.go
package notify

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/models"
	"esign-engine/internal/store"
)

// fakeReminderSender records who was reminded.
type fakeReminderSender struct {
	reminded []string
	fail     bool
}

func (f *fakeReminderSender) SendReminder(_ context.Context, _ *models.Document, signer models.Signer) bool {
	if f.fail {
		return false
	}
	f.reminded = append(f.reminded, signer.Email)
	return true
}

func candidateRows(docID string, createdAt time.Time, intervalDays int, lastSent *time.Time, sentCount int) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "template_id", "creator_id", "name", "file_url", "signed_file_url",
		"status", "expires_at", "reminder_enabled", "reminder_interval_days",
		"created_by", "completed_at", "created_at", "updated_at",
		"last_sent_at", "sent_count",
	}).AddRow(docID, "tpl-1", "user-1", "Offer Letter", "https://files/doc.pdf", "",
		"pending", nil, true, intervalDays, "user-1", nil, createdAt, now,
		lastSent, sentCount)
}

func sweepSignerRows(docID string, specs ...[2]string) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "document_id", "name", "email", "role", "signing_order", "status",
		"access_token", "is_internal", "signed_at", "signed_ip", "user_agent",
		"created_at", "updated_at",
	})
	for i, s := range specs {
		email, status := s[0], s[1]
		rows.AddRow(email, docID, "Signer", email, "signer", i+1, status,
			"tok", false, nil, "", "", now, now)
	}
	return rows
}

func TestReminderSweeper_Sweep_DueDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Now().UTC().Add(-72 * time.Hour)
	mock.ExpectQuery(`FROM documents d`).
		WillReturnRows(candidateRows("doc-1", created, 1, nil, 0))
	// One signer already signed, one still out: only the unsigned one is
	// reminded.
	mock.ExpectQuery(`FROM signers`).WillReturnRows(sweepSignerRows("doc-1",
		[2]string{"done@example.com", "signed"},
		[2]string{"pending@example.com", "sent"},
	))
	mock.ExpectExec(`INSERT INTO document_reminders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))

	sender := &fakeReminderSender{}
	sweeper := NewReminderSweeper(db, sender, 3, logger.NewTestLogger(t))

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"pending@example.com"}, sender.reminded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderSweeper_Sweep_NotYetDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Last reminder went out an hour ago with a one-day cadence.
	lastSent := time.Now().UTC().Add(-time.Hour)
	mock.ExpectQuery(`FROM documents d`).
		WillReturnRows(candidateRows("doc-1", time.Now().UTC().Add(-48*time.Hour), 1, &lastSent, 1))

	sender := &fakeReminderSender{}
	sweeper := NewReminderSweeper(db, sender, 3, logger.NewTestLogger(t))

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 0, result.Sent)
	assert.Empty(t, sender.reminded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderSweeper_Sweep_MaxRemindersReached(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lastSent := time.Now().UTC().Add(-72 * time.Hour)
	mock.ExpectQuery(`FROM documents d`).
		WillReturnRows(candidateRows("doc-1", time.Now().UTC().Add(-240*time.Hour), 1, &lastSent, 3))

	sender := &fakeReminderSender{}
	sweeper := NewReminderSweeper(db, sender, 3, logger.NewTestLogger(t))

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Sent)
	assert.Empty(t, sender.reminded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderSweeper_Sweep_AllFailuresSkipRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Now().UTC().Add(-72 * time.Hour)
	mock.ExpectQuery(`FROM documents d`).
		WillReturnRows(candidateRows("doc-1", created, 1, nil, 0))
	mock.ExpectQuery(`FROM signers`).WillReturnRows(sweepSignerRows("doc-1",
		[2]string{"pending@example.com", "sent"},
	))
	// Nothing went out: cadence state is not advanced.

	sender := &fakeReminderSender{fail: true}
	sweeper := NewReminderSweeper(db, sender, 3, logger.NewTestLogger(t))

	result, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReminderSweeper_DueCadence(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	sweeper := NewReminderSweeper(nil, nil, 3, logger.NewNoOpLogger())

	twoDaysAgo := now.Add(-48 * time.Hour)
	hourAgo := now.Add(-time.Hour)

	tests := []struct {
		name     string
		cand     store.ReminderCandidate
		expected bool
	}{
		{
			name: "never reminded, interval elapsed since creation",
			cand: store.ReminderCandidate{
				Document: models.Document{CreatedAt: twoDaysAgo, ReminderInterval: 1},
			},
			expected: true,
		},
		{
			name: "never reminded, created within interval",
			cand: store.ReminderCandidate{
				Document: models.Document{CreatedAt: hourAgo, ReminderInterval: 1},
			},
			expected: false,
		},
		{
			name: "interval elapsed since last reminder",
			cand: store.ReminderCandidate{
				Document:  models.Document{CreatedAt: now.Add(-200 * time.Hour), ReminderInterval: 1},
				LastSent:  &twoDaysAgo,
				SentCount: 1,
			},
			expected: true,
		},
		{
			name: "zero interval defaults to daily",
			cand: store.ReminderCandidate{
				Document: models.Document{CreatedAt: twoDaysAgo, ReminderInterval: 0},
			},
			expected: true,
		},
		{
			name: "cap reached",
			cand: store.ReminderCandidate{
				Document:  models.Document{CreatedAt: now.Add(-200 * time.Hour), ReminderInterval: 1},
				LastSent:  &twoDaysAgo,
				SentCount: 3,
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sweeper.due(tt.cand, now))
		})
	}
}
