// internal/jobs/send-webhook/handler_test.go
package sendwebhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/tenant"
	"esign-engine/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{
		Timeout:         30 * time.Second,
		DeliveryTimeout: 5 * time.Second,
	}
}

func emptyRegistry() *registry.JobRegistry {
	return &registry.JobRegistry{Version: "test"}
}

func expectTenantScope(mock sqlmock.Sqlmock, slug, schema string) {
	mock.ExpectQuery(`FROM admin\.tenants`).
		WithArgs(slug).
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}).
			AddRow(schema, true))
	mock.ExpectExec(`SET search_path TO ` + schema).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func documentRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "template_id", "creator_id", "name", "file_url", "signed_file_url",
		"status", "expires_at", "reminder_enabled", "reminder_interval_days",
		"created_by", "completed_at", "created_at", "updated_at",
	}).AddRow("doc-1", "tpl-1", "user-1", "Offer Letter", "https://files/doc.pdf", "",
		"completed", nil, false, 0, "user-1", &now, now, now)
}

func signerRow() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "document_id", "name", "email", "role", "signing_order", "status",
		"access_token", "is_internal", "signed_at", "signed_ip", "user_agent",
		"created_at", "updated_at",
	}).AddRow("signer-1", "doc-1", "Alice", "alice@example.com", "signer", 1,
		"signed", "tok-1", false, &now, "10.0.0.1", "Mozilla/5.0", now, now)
}

func webhookRow(endpointURL string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "name", "endpoint_url", "secret_key", "events", "is_active",
		"last_triggered_at", "created_at", "updated_at",
	}).AddRow("hook-1", "CRM sync", endpointURL, "secret",
		"{document.completed}", true, nil, now, now)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_DispatchesToSubscriber(t *testing.T) {
	var deliveries int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deliveries++
		assert.NotEmpty(t, r.Header.Get("X-Esign-Signature"))
		assert.Equal(t, "document.completed", r.Header.Get("X-Esign-Event"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectTenantScope(mock, "acme", "tenant_acme")
	mock.ExpectQuery(`FROM documents`).WillReturnRows(documentRow())
	mock.ExpectQuery(`FROM signers`).WillReturnRows(signerRow())
	mock.ExpectQuery(`FROM webhooks`).WillReturnRows(webhookRow(server.URL))
	mock.ExpectExec(`INSERT INTO webhook_deliveries`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE webhooks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET search_path TO DEFAULT`).WillReturnResult(sqlmock.NewResult(0, 0))

	handler := NewHandler(createTestConfig(), db, tenant.NewRegistry(db, time.Minute),
		emptyRegistry(), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		TenantSlug: "acme",
		Event:      "document.completed",
		DocumentID: "doc-1",
	})
	require.NoError(t, err)

	assert.True(t, output.Success)
	assert.Equal(t, 1, output.Data.Triggered)
	assert.Equal(t, 1, output.Data.Successful)
	assert.Equal(t, 1, deliveries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_UnknownTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM admin\.tenants`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name", "is_active"}))

	handler := NewHandler(createTestConfig(), db, tenant.NewRegistry(db, time.Minute),
		emptyRegistry(), logger.NewTestLogger(t))

	_, err = handler.Execute(context.Background(), &Input{
		TenantSlug: "ghost",
		Event:      "document.sent",
		DocumentID: "doc-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_UNKNOWN")
}

func TestHandler_Execute_DocumentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectTenantScope(mock, "acme", "tenant_acme")
	mock.ExpectQuery(`FROM documents`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`SET search_path TO DEFAULT`).WillReturnResult(sqlmock.NewResult(0, 0))

	handler := NewHandler(createTestConfig(), db, tenant.NewRegistry(db, time.Minute),
		emptyRegistry(), logger.NewTestLogger(t))

	_, err = handler.Execute(context.Background(), &Input{
		TenantSlug: "acme",
		Event:      "document.sent",
		DocumentID: "missing",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCUMENT_NOT_FOUND")
}
