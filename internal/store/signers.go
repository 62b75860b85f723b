// internal/store/signers.go
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/models"
)

// SignerStore reads and writes signer rows.
type SignerStore struct {
	q Querier
}

func NewSignerStore(q Querier) *SignerStore {
	return &SignerStore{q: q}
}

const signerColumns = `id, document_id, name, email, role, signing_order, status,
	access_token, is_internal, signed_at, COALESCE(signed_ip, ''),
	COALESCE(user_agent, ''), created_at, updated_at`

// Create inserts a signer with a fresh access token.
func (s *SignerStore) Create(ctx context.Context, signer *models.Signer) (string, error) {
	id := uuid.New().String()
	token := NewToken()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO signers (id, document_id, name, email, role, signing_order,
			status, access_token, is_internal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`,
		id, signer.DocumentID, signer.Name, signer.Email, signer.Role,
		signer.SigningOrder, models.SignerStatusPending, token, signer.IsInternal)
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("create signer", err)
	}
	return id, nil
}

func (s *SignerStore) GetByID(ctx context.Context, id string) (*models.Signer, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+signerColumns+`
		FROM signers
		WHERE id = $1`, id)
	signer, err := scanSigner(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewDocumentNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get signer", err)
	}
	return signer, nil
}

// ListByDocument returns all parties on a document ordered by signing order.
func (s *SignerStore) ListByDocument(ctx context.Context, documentID string) ([]models.Signer, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+signerColumns+`
		FROM signers
		WHERE document_id = $1
		ORDER BY signing_order, created_at`, documentID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list signers", err)
	}
	defer rows.Close()

	var signers []models.Signer
	for rows.Next() {
		var sg models.Signer
		if err := rows.Scan(
			&sg.ID, &sg.DocumentID, &sg.Name, &sg.Email, &sg.Role, &sg.SigningOrder,
			&sg.Status, &sg.AccessToken, &sg.IsInternal, &sg.SignedAt, &sg.SignedIP,
			&sg.UserAgent, &sg.CreatedAt, &sg.UpdatedAt,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan signer", err)
		}
		signers = append(signers, sg)
	}
	return signers, rows.Err()
}

func scanSigner(row *sql.Row) (*models.Signer, error) {
	var sg models.Signer
	err := row.Scan(
		&sg.ID, &sg.DocumentID, &sg.Name, &sg.Email, &sg.Role, &sg.SigningOrder,
		&sg.Status, &sg.AccessToken, &sg.IsInternal, &sg.SignedAt, &sg.SignedIP,
		&sg.UserAgent, &sg.CreatedAt, &sg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sg, nil
}

// MarkSent moves pending signers on a document to sent.
func (s *SignerStore) MarkSent(ctx context.Context, documentID string) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE signers
		SET status = $1, updated_at = NOW()
		WHERE document_id = $2 AND status = $3`,
		models.SignerStatusSent, documentID, models.SignerStatusPending)
	if err != nil {
		return errors.NewQueryExecutionFailedError("mark signers sent", err)
	}
	return nil
}

// MarkViewed records first view. Signers already past viewed keep their
// status.
func (s *SignerStore) MarkViewed(ctx context.Context, signerID string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE signers
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)`,
		models.SignerStatusViewed, signerID,
		models.SignerStatusPending, models.SignerStatusSent)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("mark signer viewed", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkSigned records the signature with its evidence. Returns false if the
// signer already reached a terminal status.
func (s *SignerStore) MarkSigned(ctx context.Context, signerID string, at time.Time, ip, userAgent string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE signers
		SET status = $1, signed_at = $2, signed_ip = $3, user_agent = $4, updated_at = NOW()
		WHERE id = $5 AND status NOT IN ($6, $7)`,
		models.SignerStatusSigned, at, ip, userAgent, signerID,
		models.SignerStatusSigned, models.SignerStatusDeclined)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("mark signer signed", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkDeclined records a decline. Returns false if already terminal.
func (s *SignerStore) MarkDeclined(ctx context.Context, signerID string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE signers
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status NOT IN ($3, $4)`,
		models.SignerStatusDeclined, signerID,
		models.SignerStatusSigned, models.SignerStatusDeclined)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("mark signer declined", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
