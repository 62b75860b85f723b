// internal/store/reminders.go
package store

import (
	"context"
	"time"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/models"
)

// ReminderStore tracks reminder cadence, one row per document.
type ReminderStore struct {
	q Querier
}

func NewReminderStore(q Querier) *ReminderStore {
	return &ReminderStore{q: q}
}

// ReminderCandidate is an active document that may be due for a reminder.
type ReminderCandidate struct {
	Document  models.Document
	LastSent  *time.Time
	SentCount int
}

// ListCandidates returns active reminder-enabled documents joined with their
// reminder state. Cadence filtering happens in the caller, which knows the
// max-reminder policy.
func (s *ReminderStore) ListCandidates(ctx context.Context, now time.Time) ([]ReminderCandidate, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT d.id, d.template_id, d.creator_id, d.name, d.file_url,
			COALESCE(d.signed_file_url, ''), d.status, d.expires_at,
			d.reminder_enabled, d.reminder_interval_days, d.created_by,
			d.completed_at, d.created_at, d.updated_at,
			r.last_sent_at, COALESCE(r.sent_count, 0)
		FROM documents d
		LEFT JOIN document_reminders r ON r.document_id = d.id
		WHERE d.status IN ($1, $2) AND d.reminder_enabled = TRUE`,
		models.DocumentStatusPending, models.DocumentStatusInProgress)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list reminder candidates", err)
	}
	defer rows.Close()

	var candidates []ReminderCandidate
	for rows.Next() {
		var c ReminderCandidate
		d := &c.Document
		if err := rows.Scan(
			&d.ID, &d.TemplateID, &d.CreatorID, &d.Name, &d.FileURL,
			&d.SignedFileURL, &d.Status, &d.ExpiresAt, &d.ReminderEnabled,
			&d.ReminderInterval, &d.CreatedBy, &d.CompletedAt, &d.CreatedAt,
			&d.UpdatedAt, &c.LastSent, &c.SentCount,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan reminder candidate", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// RecordSent upserts the reminder state after a reminder went out.
func (s *ReminderStore) RecordSent(ctx context.Context, documentID string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO document_reminders (document_id, last_sent_at, sent_count, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (document_id) DO UPDATE
		SET last_sent_at = $2, sent_count = document_reminders.sent_count + 1,
			updated_at = NOW()`, documentID, at)
	if err != nil {
		return errors.NewQueryExecutionFailedError("record reminder", err)
	}
	return nil
}
