// internal/store/documents.go
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/models"
)

// DocumentStore reads and writes documents and their signers. All status
// changes are conditional updates so that concurrent jobs cannot double-apply
// a transition.
type DocumentStore struct {
	q Querier
}

func NewDocumentStore(q Querier) *DocumentStore {
	return &DocumentStore{q: q}
}

const documentColumns = `id, template_id, creator_id, name, file_url,
	COALESCE(signed_file_url, ''), status, expires_at, reminder_enabled,
	reminder_interval_days, created_by, completed_at, created_at, updated_at`

func scanDocument(row *sql.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(
		&d.ID, &d.TemplateID, &d.CreatorID, &d.Name, &d.FileURL,
		&d.SignedFileURL, &d.Status, &d.ExpiresAt, &d.ReminderEnabled,
		&d.ReminderInterval, &d.CreatedBy, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DocumentStore) GetByID(ctx context.Context, id string) (*models.Document, error) {
	doc, err := scanDocument(s.q.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewDocumentNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get document", err)
	}
	return doc, nil
}

// Create inserts a new draft document and returns its generated ID.
func (s *DocumentStore) Create(ctx context.Context, doc *models.Document) (string, error) {
	id := uuid.New().String()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO documents (id, template_id, creator_id, name, file_url, status,
			expires_at, reminder_enabled, reminder_interval_days, created_by,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		id, doc.TemplateID, doc.CreatorID, doc.Name, doc.FileURL,
		models.DocumentStatusDraft, doc.ExpiresAt, doc.ReminderEnabled,
		doc.ReminderInterval, doc.CreatedBy)
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("create document", err)
	}
	return id, nil
}

// TransitionStatus moves a document from one of the given statuses to the
// target status. Returns false without error if the document was not in an
// allowed source status, which makes retried jobs idempotent.
func (s *DocumentStore) TransitionStatus(ctx context.Context, id string, from []models.DocumentStatus, to models.DocumentStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE documents
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)`,
		to, id, pq.Array(statusList(from)))
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("transition document", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkCompleted sets completed status and stamps completed_at exactly once.
func (s *DocumentStore) MarkCompleted(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE documents
		SET status = $1, completed_at = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5) AND completed_at IS NULL`,
		models.DocumentStatusCompleted, at, id,
		models.DocumentStatusPending, models.DocumentStatusInProgress)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("complete document", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListExpiredCandidates returns active documents whose deadline has passed.
func (s *DocumentStore) ListExpiredCandidates(ctx context.Context, now time.Time) ([]models.Document, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE status IN ($1, $2) AND expires_at IS NOT NULL AND expires_at < $3`,
		models.DocumentStatusPending, models.DocumentStatusInProgress, now)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list expired documents", err)
	}
	defer rows.Close()
	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]models.Document, error) {
	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.TemplateID, &d.CreatorID, &d.Name, &d.FileURL,
			&d.SignedFileURL, &d.Status, &d.ExpiresAt, &d.ReminderEnabled,
			&d.ReminderInterval, &d.CreatedBy, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan document", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func statusList(statuses []models.DocumentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
