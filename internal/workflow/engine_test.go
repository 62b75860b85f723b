// internal/workflow/engine_test.go
package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

var documentCols = []string{
	"id", "template_id", "creator_id", "name", "file_url", "signed_file_url",
	"status", "expires_at", "reminder_enabled", "reminder_interval_days",
	"created_by", "completed_at", "created_at", "updated_at",
}

var signerCols = []string{
	"id", "document_id", "name", "email", "role", "signing_order", "status",
	"access_token", "is_internal", "signed_at", "signed_ip", "user_agent",
	"created_at", "updated_at",
}

func docRow(status models.DocumentStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows(documentCols).AddRow(
		"doc-1", "tpl-1", "user-1", "Offer Letter", "https://files/doc.pdf", "",
		string(status), nil, false, 0, "user-1", nil, now, now)
}

type signerSpec struct {
	id         string
	role       models.SignerRole
	order      int
	status     models.SignerStatus
	isInternal bool
}

func signerRows(specs ...signerSpec) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows(signerCols)
	for _, s := range specs {
		rows.AddRow(s.id, "doc-1", "Signer "+s.id, s.id+"@example.com",
			string(s.role), s.order, string(s.status), "tok-"+s.id,
			s.isInternal, nil, "", "", now, now)
	}
	return rows
}

type captureSink struct {
	entries []models.AuditLogEntry
}

func (c *captureSink) Index(_ context.Context, _ string, entry models.AuditLogEntry) {
	c.entries = append(c.entries, entry)
}

// ==========================
// Lifecycle Transition Tests
// ==========================

func TestEngine_SendDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE signers`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))

	sink := &captureSink{}
	engine := NewEngine(db, "acme", sink, logger.NewTestLogger(t))
	result, err := engine.SendDocument(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, []string{models.EventDocumentSent}, result.Events)
	assert.Equal(t, models.DocumentStatusPending, result.DocumentStatus)

	// The audit entry is mirrored to the sink with the tenant attached.
	require.Len(t, sink.entries, 1)
	assert.Equal(t, models.AuditActionDocumentSent, sink.entries[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_SendDocument_NotDraft(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 0))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.SendDocument(context.Background(), "doc-1", "user-1")
	require.NoError(t, err)

	assert.False(t, result.Applied)
	assert.Empty(t, result.Events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_MarkSignerViewed_StatusAdvanceFailureDoesNotBlock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM signers`).WillReturnRows(
		signerRows(signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSent}))
	mock.ExpectExec(`UPDATE signers`).WillReturnResult(sqlmock.NewResult(0, 1))
	// The document advance hits an infrastructure failure; the recorded view
	// must survive it.
	mock.ExpectExec(`UPDATE documents`).WillReturnError(errors.New("connection reset"))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.MarkSignerViewed(context.Background(), "s1", "user-1")
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, []string{models.EventDocumentViewed}, result.Events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_MarkSignerSigned_LastSignerCompletes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM signers`).WillReturnRows(
		signerRows(signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusViewed}))
	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusInProgress))
	mock.ExpectExec(`UPDATE signers`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))
	// Recompute: every blocking signer has signed.
	mock.ExpectQuery(`FROM signers`).WillReturnRows(
		signerRows(signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSigned}))
	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.MarkSignerSigned(context.Background(), "s1", "10.0.0.1", "Mozilla/5.0", "s1")
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, []string{models.EventDocumentSigned, models.EventDocumentCompleted}, result.Events)
	assert.Equal(t, models.DocumentStatusCompleted, result.DocumentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_MarkSignerSigned_OthersStillPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM signers`).WillReturnRows(
		signerRows(signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSent}))
	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusPending))
	mock.ExpectExec(`UPDATE signers`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))
	// Recompute: s2 has not signed, so the document moves to in_progress.
	mock.ExpectQuery(`FROM signers`).WillReturnRows(signerRows(
		signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSigned},
		signerSpec{id: "s2", role: models.SignerRoleSigner, order: 2, status: models.SignerStatusSent},
	))
	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 1))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.MarkSignerSigned(context.Background(), "s1", "10.0.0.1", "Mozilla/5.0", "s1")
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, []string{models.EventDocumentSigned}, result.Events)
	assert.Equal(t, models.DocumentStatusInProgress, result.DocumentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_MarkSignerSigned_CCDoesNotBlockCompletion(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM signers`).WillReturnRows(
		signerRows(signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusViewed}))
	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusInProgress))
	mock.ExpectExec(`UPDATE signers`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))
	// A cc recipient never gates completion.
	mock.ExpectQuery(`FROM signers`).WillReturnRows(signerRows(
		signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSigned},
		signerSpec{id: "cc1", role: models.SignerRoleCC, order: 2, status: models.SignerStatusSent},
	))
	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.MarkSignerSigned(context.Background(), "s1", "10.0.0.1", "Mozilla/5.0", "s1")
	require.NoError(t, err)

	assert.Equal(t, models.DocumentStatusCompleted, result.DocumentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_MarkSignerSigned_TerminalDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM signers`).WillReturnRows(
		signerRows(signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSent}))
	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusVoided))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.MarkSignerSigned(context.Background(), "s1", "10.0.0.1", "Mozilla/5.0", "s1")
	require.NoError(t, err)

	assert.False(t, result.Applied)
	assert.Equal(t, models.DocumentStatusVoided, result.DocumentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_MarkSignerSigned_AlreadySigned(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM signers`).WillReturnRows(
		signerRows(signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSigned}))
	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusInProgress))
	// Conditional update misses: signer already terminal.
	mock.ExpectExec(`UPDATE signers`).WillReturnResult(sqlmock.NewResult(0, 0))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.MarkSignerSigned(context.Background(), "s1", "10.0.0.1", "Mozilla/5.0", "s1")
	require.NoError(t, err)

	assert.False(t, result.Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_MarkSignerDeclined(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM signers`).WillReturnRows(
		signerRows(signerSpec{id: "s1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusViewed}))
	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusInProgress))
	mock.ExpectExec(`UPDATE signers`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.MarkSignerDeclined(context.Background(), "s1", "wrong terms", "s1")
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, []string{models.EventDocumentDeclined}, result.Events)
	assert.Equal(t, models.DocumentStatusDeclined, result.DocumentStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_VoidDocument_CompletedIsNotVoidable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 0))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	result, err := engine.VoidDocument(context.Background(), "doc-1", "mistake", "user-1")
	require.NoError(t, err)

	assert.False(t, result.Applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_ExpireDocuments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusPending))
	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(0, 1))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	expired, err := engine.ExpireDocuments(context.Background())
	require.NoError(t, err)

	require.Len(t, expired, 1)
	assert.Equal(t, models.DocumentStatusExpired, expired[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_ExpireDocuments_RacedDocumentSkipped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Candidate was completed between the list and the conditional update.
	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusPending))
	mock.ExpectExec(`UPDATE documents`).WillReturnResult(sqlmock.NewResult(0, 0))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	expired, err := engine.ExpireDocuments(context.Background())
	require.NoError(t, err)

	assert.Empty(t, expired)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Counter-Sign Queue Tests
// ==========================

func TestEngine_CounterSignQueue(t *testing.T) {
	tests := []struct {
		name     string
		signers  []signerSpec
		expected []string
	}{
		{
			name: "internal signer blocked by earlier external signer",
			signers: []signerSpec{
				{id: "ext", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSent},
				{id: "int", role: models.SignerRoleSigner, order: 2, status: models.SignerStatusSent, isInternal: true},
			},
			expected: nil,
		},
		{
			name: "internal signer eligible once earlier signer signed",
			signers: []signerSpec{
				{id: "ext", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSigned},
				{id: "int", role: models.SignerRoleSigner, order: 2, status: models.SignerStatusSent, isInternal: true},
			},
			expected: []string{"int"},
		},
		{
			name: "already signed internal signer excluded",
			signers: []signerSpec{
				{id: "int", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSigned, isInternal: true},
			},
			expected: nil,
		},
		{
			name: "external signers never queue",
			signers: []signerSpec{
				{id: "ext", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSent},
			},
			expected: nil,
		},
		{
			name: "same order internal signers are independent",
			signers: []signerSpec{
				{id: "int1", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSent, isInternal: true},
				{id: "int2", role: models.SignerRoleSigner, order: 1, status: models.SignerStatusSent, isInternal: true},
			},
			expected: []string{"int1", "int2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusInProgress))
			mock.ExpectQuery(`FROM signers`).WillReturnRows(signerRows(tt.signers...))

			engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
			eligible, err := engine.CounterSignQueue(context.Background(), "doc-1")
			require.NoError(t, err)

			var ids []string
			for _, s := range eligible {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.expected, ids)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEngine_CounterSignQueue_TerminalDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM documents`).WillReturnRows(docRow(models.DocumentStatusCompleted))

	engine := NewEngine(db, "acme", nil, logger.NewTestLogger(t))
	eligible, err := engine.CounterSignQueue(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Nil(t, eligible)
	assert.NoError(t, mock.ExpectationsWereMet())
}
