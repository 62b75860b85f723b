// internal/store/bulksends.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/models"
)

// BulkSendStore manages bulk send batches and their recipient rows.
type BulkSendStore struct {
	q Querier
}

func NewBulkSendStore(q Querier) *BulkSendStore {
	return &BulkSendStore{q: q}
}

// Create inserts a queued batch with one row per recipient. The recipient
// count is fixed here and never changes afterwards.
func (s *BulkSendStore) Create(ctx context.Context, templateID, name, createdBy string, scheduledFor *time.Time, recipients []models.BulkSendRecipient) (*models.BulkSend, error) {
	var b models.BulkSend
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO bulk_sends (id, template_id, name, recipient_count, status,
			scheduled_for, sent_count, failed_count, error_log, created_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, '[]'::jsonb, $7, NOW(), NOW())
		RETURNING id, template_id, name, recipient_count, status, scheduled_for,
			sent_count, failed_count, created_by, created_at, updated_at`,
		uuid.NewString(), templateID, name, len(recipients),
		models.BulkSendStatusQueued, scheduledFor, createdBy).Scan(
		&b.ID, &b.TemplateID, &b.Name, &b.RecipientCount, &b.Status,
		&b.ScheduledFor, &b.SentCount, &b.FailedCount, &b.CreatedBy,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("create bulk send", err)
	}
	b.ErrorLog = []models.BulkSendError{}

	for _, r := range recipients {
		fields := []byte("{}")
		if len(r.CustomFields) > 0 {
			fields, err = json.Marshal(r.CustomFields)
			if err != nil {
				return nil, errors.NewQueryExecutionFailedError("encode custom fields", err)
			}
		}
		if _, err := s.q.ExecContext(ctx, `
			INSERT INTO bulk_send_recipients (id, bulk_send_id, name, email,
				custom_fields, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5::jsonb, $6, NOW(), NOW())`,
			uuid.NewString(), b.ID, r.Name, r.Email, string(fields),
			models.RecipientStatusPending); err != nil {
			return nil, errors.NewQueryExecutionFailedError("insert recipient", err)
		}
	}
	return &b, nil
}

func (s *BulkSendStore) GetByID(ctx context.Context, id string) (*models.BulkSend, error) {
	var b models.BulkSend
	var errorLog []byte
	err := s.q.QueryRowContext(ctx, `
		SELECT id, template_id, name, recipient_count, status, scheduled_for,
			sent_count, failed_count, COALESCE(error_log, '[]'), created_by,
			created_at, updated_at
		FROM bulk_sends
		WHERE id = $1`, id).Scan(
		&b.ID, &b.TemplateID, &b.Name, &b.RecipientCount, &b.Status,
		&b.ScheduledFor, &b.SentCount, &b.FailedCount, &errorLog,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewBulkSendNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get bulk send", err)
	}
	if err := json.Unmarshal(errorLog, &b.ErrorLog); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode bulk send error log", err)
	}
	return &b, nil
}

// GetStatus reloads only the batch status, used for cancellation checks
// between recipients.
func (s *BulkSendStore) GetStatus(ctx context.Context, id string) (models.BulkSendStatus, error) {
	var status models.BulkSendStatus
	err := s.q.QueryRowContext(ctx, `
		SELECT status FROM bulk_sends WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", errors.NewBulkSendNotFoundError(id)
	}
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("get bulk send status", err)
	}
	return status, nil
}

// ClaimForSending atomically moves a queued batch to sending. Returns false
// when another worker already claimed it or it was cancelled.
func (s *BulkSendStore) ClaimForSending(ctx context.Context, id string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE bulk_sends
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		models.BulkSendStatusSending, id, models.BulkSendStatusQueued)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("claim bulk send", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecordRecipientSent increments the sent counter and marks the recipient row.
func (s *BulkSendStore) RecordRecipientSent(ctx context.Context, bulkSendID, recipientID, documentID string) error {
	if _, err := s.q.ExecContext(ctx, `
		UPDATE bulk_send_recipients
		SET status = $1, document_id = $2, updated_at = NOW()
		WHERE id = $3`,
		models.RecipientStatusSent, documentID, recipientID); err != nil {
		return errors.NewQueryExecutionFailedError("mark recipient sent", err)
	}
	if _, err := s.q.ExecContext(ctx, `
		UPDATE bulk_sends
		SET sent_count = sent_count + 1, updated_at = NOW()
		WHERE id = $1`, bulkSendID); err != nil {
		return errors.NewQueryExecutionFailedError("increment sent count", err)
	}
	return nil
}

// RecordRecipientFailed increments the failed counter, marks the recipient
// row, and appends a structured entry to the batch error log.
func (s *BulkSendStore) RecordRecipientFailed(ctx context.Context, bulkSendID, recipientID, email, errMsg string, at time.Time) error {
	if _, err := s.q.ExecContext(ctx, `
		UPDATE bulk_send_recipients
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3`,
		models.RecipientStatusFailed, errMsg, recipientID); err != nil {
		return errors.NewQueryExecutionFailedError("mark recipient failed", err)
	}

	entry, err := json.Marshal(models.BulkSendError{
		RecipientEmail: email,
		Error:          errMsg,
		Timestamp:      at,
	})
	if err != nil {
		return errors.NewQueryExecutionFailedError("encode error log entry", err)
	}

	if _, err := s.q.ExecContext(ctx, `
		UPDATE bulk_sends
		SET failed_count = failed_count + 1,
			error_log = COALESCE(error_log, '[]'::jsonb) || $1::jsonb,
			updated_at = NOW()
		WHERE id = $2`, string(entry), bulkSendID); err != nil {
		return errors.NewQueryExecutionFailedError("append error log", err)
	}
	return nil
}

// SetFinalStatus stamps the terminal status of a batch that finished
// processing.
func (s *BulkSendStore) SetFinalStatus(ctx context.Context, id string, status models.BulkSendStatus) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE bulk_sends
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		status, id, models.BulkSendStatusSending)
	if err != nil {
		return errors.NewQueryExecutionFailedError("finalize bulk send", err)
	}
	return nil
}

// MarkFailed force-fails a batch while preserving its counts, used when
// processing aborts mid-batch.
func (s *BulkSendStore) MarkFailed(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE bulk_sends
		SET status = $1, updated_at = NOW()
		WHERE id = $2`,
		models.BulkSendStatusFailed, id)
	if err != nil {
		return errors.NewQueryExecutionFailedError("fail bulk send", err)
	}
	return nil
}

// Cancel moves a queued or sending batch to cancelled. Returns false when
// the batch is already terminal.
func (s *BulkSendStore) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE bulk_sends
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)`,
		models.BulkSendStatusCancelled, id,
		models.BulkSendStatusQueued, models.BulkSendStatusSending)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("cancel bulk send", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListPendingRecipients returns unprocessed recipients in insertion order.
func (s *BulkSendStore) ListPendingRecipients(ctx context.Context, bulkSendID string) ([]models.BulkSendRecipient, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, bulk_send_id, document_id, name, email,
			COALESCE(custom_fields, '{}'), status, COALESCE(error_message, ''),
			created_at, updated_at
		FROM bulk_send_recipients
		WHERE bulk_send_id = $1 AND status = $2
		ORDER BY created_at`, bulkSendID, models.RecipientStatusPending)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list pending recipients", err)
	}
	defer rows.Close()

	var recipients []models.BulkSendRecipient
	for rows.Next() {
		var r models.BulkSendRecipient
		var customFields []byte
		if err := rows.Scan(
			&r.ID, &r.BulkSendID, &r.DocumentID, &r.Name, &r.Email,
			&customFields, &r.Status, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan recipient", err)
		}
		if err := json.Unmarshal(customFields, &r.CustomFields); err != nil {
			return nil, errors.NewQueryExecutionFailedError("decode custom fields", err)
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// ListDueScheduled returns queued batches ready to process: unscheduled ones
// immediately, scheduled ones once their time has arrived.
func (s *BulkSendStore) ListDueScheduled(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id
		FROM bulk_sends
		WHERE status = $1 AND (scheduled_for IS NULL OR scheduled_for <= $2)
		ORDER BY scheduled_for NULLS FIRST`, models.BulkSendStatusQueued, now)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list due scheduled", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan bulk send id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
