// internal/store/audit.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/models"
)

// AuditStore appends and reads the per-tenant audit trail. Entries are never
// updated or deleted.
type AuditStore struct {
	q Querier
}

func NewAuditStore(q Querier) *AuditStore {
	return &AuditStore{q: q}
}

// Append writes one audit entry and returns it with ID and timestamp filled.
func (s *AuditStore) Append(ctx context.Context, entry models.AuditLogEntry) (*models.AuditLogEntry, error) {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_log (id, document_id, signer_id, action, details,
			performed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.DocumentID, entry.SignerID, entry.Action,
		entry.Details, entry.PerformedBy, entry.CreatedAt)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("append audit entry", err)
	}
	return &entry, nil
}

// ListByDocument returns the full trail for a document in insertion order.
func (s *AuditStore) ListByDocument(ctx context.Context, documentID string) ([]models.AuditLogEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, document_id, signer_id, action, COALESCE(details, ''),
			performed_by, created_at
		FROM audit_log
		WHERE document_id = $1
		ORDER BY created_at`, documentID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list audit entries", err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(
			&e.ID, &e.DocumentID, &e.SignerID, &e.Action, &e.Details,
			&e.PerformedBy, &e.CreatedAt,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan audit entry", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
