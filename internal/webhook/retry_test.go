// internal/webhook/retry_test.go
package webhook

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
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		retryCount int
		expected   time.Duration
	}{
		{0, 60 * time.Second},
		{1, 120 * time.Second},
		{2, 240 * time.Second},
		{3, 480 * time.Second},
		{4, 960 * time.Second},
		{5, 1920 * time.Second},
		{6, 3600 * time.Second},
		{7, 3600 * time.Second},
		{100, 3600 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, BackoffDelay(tt.retryCount),
			"retryCount=%d", tt.retryCount)
	}
}

func claimRows(t *testing.T, endpointURL string, retryCount int) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "webhook_id", "document_id", "event", "payload",
		"retry_count", "endpoint_url", "secret_key",
	}).AddRow("delivery-1", "hook-1", "doc-1", "document.sent",
		`{"event":"document.sent"}`, retryCount, endpointURL, "secret")
}

func TestRetryScheduler_Sweep_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Retries are re-signed with the webhook's current secret.
		body := []byte(`{"event":"document.sent"}`)
		assert.Equal(t, Sign("secret", body), r.Header.Get("X-Esign-Signature"))
		assert.Equal(t, "document.sent", r.Header.Get("X-Esign-Event"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE webhook_deliveries d`).
		WillReturnRows(claimRows(t, server.URL, 0))
	mock.ExpectExec(`UPDATE webhook_deliveries`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	scheduler := NewRetryScheduler(db, http.DefaultClient, 50, logger.NewTestLogger(t))
	result, err := scheduler.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Claimed)
	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Exhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryScheduler_Sweep_FailureSchedulesBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE webhook_deliveries d`).
		WillReturnRows(claimRows(t, server.URL, 1))
	mock.ExpectExec(`UPDATE webhook_deliveries`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	scheduler := NewRetryScheduler(db, http.DefaultClient, 50, logger.NewTestLogger(t))
	result, err := scheduler.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Claimed)
	assert.Equal(t, 0, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryScheduler_Sweep_ExhaustedAtMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// retry_count=4: this attempt is the fifth and final one.
	mock.ExpectQuery(`UPDATE webhook_deliveries d`).
		WillReturnRows(claimRows(t, server.URL, 4))
	mock.ExpectExec(`UPDATE webhook_deliveries`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	scheduler := NewRetryScheduler(db, http.DefaultClient, 50, logger.NewTestLogger(t))
	result, err := scheduler.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Exhausted)
	assert.Equal(t, 0, result.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetryScheduler_Sweep_NothingDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`UPDATE webhook_deliveries d`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "webhook_id", "document_id", "event", "payload",
			"retry_count", "endpoint_url", "secret_key",
		}))

	scheduler := NewRetryScheduler(db, http.DefaultClient, 50, logger.NewTestLogger(t))
	result, err := scheduler.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.Claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
