// internal/store/webhooks.go
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"esign-engine/internal/common/errors"
	"esign-engine/internal/models"
)

// WebhookStore manages subscriber endpoints and their delivery log.
type WebhookStore struct {
	q Querier
}

func NewWebhookStore(q Querier) *WebhookStore {
	return &WebhookStore{q: q}
}

// ListActiveForEvent returns active webhooks subscribed to the given event.
func (s *WebhookStore) ListActiveForEvent(ctx context.Context, event string) ([]models.Webhook, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, name, endpoint_url, secret_key, events, is_active,
			last_triggered_at, created_at, updated_at
		FROM webhooks
		WHERE is_active = TRUE AND $1 = ANY(events)`, event)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list webhooks", err)
	}
	defer rows.Close()

	var hooks []models.Webhook
	for rows.Next() {
		var w models.Webhook
		if err := rows.Scan(
			&w.ID, &w.Name, &w.EndpointURL, &w.SecretKey, pq.Array(&w.Events),
			&w.IsActive, &w.LastTriggeredAt, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan webhook", err)
		}
		hooks = append(hooks, w)
	}
	return hooks, rows.Err()
}

// TouchLastTriggered stamps the last delivery attempt time on a webhook.
func (s *WebhookStore) TouchLastTriggered(ctx context.Context, webhookID string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE webhooks
		SET last_triggered_at = $1, updated_at = NOW()
		WHERE id = $2`, at, webhookID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("touch webhook", err)
	}
	return nil
}

// RotateSecret replaces a webhook's signing secret.
func (s *WebhookStore) RotateSecret(ctx context.Context, webhookID, newSecret string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE webhooks
		SET secret_key = $1, updated_at = NOW()
		WHERE id = $2 AND is_active = TRUE`, newSecret, webhookID)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("rotate webhook secret", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertDelivery appends one attempt to the delivery log and returns its ID.
func (s *WebhookStore) InsertDelivery(ctx context.Context, d *models.WebhookDelivery) (string, error) {
	id := uuid.New().String()
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO webhook_deliveries (id, webhook_id, document_id, event,
			payload, response_status, response_body, success, duration_ms,
			retry_count, next_retry_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		id, d.WebhookID, d.DocumentID, d.Event, d.Payload, d.ResponseStatus,
		d.ResponseBody, d.Success, d.DurationMs, d.RetryCount, d.NextRetryAt)
	if err != nil {
		return "", errors.NewQueryExecutionFailedError("insert delivery", err)
	}
	return id, nil
}

// ClaimDueRetries atomically claims failed deliveries whose retry time has
// arrived, pushing next_retry_at forward as a lease so concurrent sweeps
// cannot pick up the same rows. The due-time guards are repeated in the outer
// WHERE: when a second sweep blocks on a row lock and re-evaluates against
// the committed row, it must see the lease and skip, not claim the row again.
// Returns the claimed deliveries joined with their webhook's current endpoint
// and secret.
func (s *WebhookStore) ClaimDueRetries(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]RetryClaim, error) {
	rows, err := s.q.QueryContext(ctx, `
		UPDATE webhook_deliveries d
		SET next_retry_at = $1, updated_at = NOW()
		FROM webhooks w
		WHERE d.id IN (
			SELECT id FROM webhook_deliveries
			WHERE success = FALSE AND retry_count < $2
				AND next_retry_at IS NOT NULL AND next_retry_at <= $3
			ORDER BY next_retry_at
			LIMIT $4
		)
		AND d.success = FALSE AND d.retry_count < $2
		AND d.next_retry_at IS NOT NULL AND d.next_retry_at <= $3
		AND w.id = d.webhook_id AND w.is_active = TRUE
		RETURNING d.id, d.webhook_id, d.document_id, d.event, d.payload,
			d.retry_count, w.endpoint_url, w.secret_key`,
		now.Add(lease), models.MaxDeliveryRetries, now, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("claim due retries", err)
	}
	defer rows.Close()

	var claims []RetryClaim
	for rows.Next() {
		var c RetryClaim
		if err := rows.Scan(
			&c.DeliveryID, &c.WebhookID, &c.DocumentID, &c.Event, &c.Payload,
			&c.RetryCount, &c.EndpointURL, &c.SecretKey,
		); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan retry claim", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// RetryClaim is one claimed delivery plus the subscriber details needed to
// re-attempt it.
type RetryClaim struct {
	DeliveryID  string
	WebhookID   string
	DocumentID  string
	Event       string
	Payload     string
	RetryCount  int
	EndpointURL string
	SecretKey   string
}

// RecordRetryResult updates a claimed delivery after a re-attempt. On
// success or exhaustion next_retry_at is cleared; otherwise it is set to the
// caller-computed backoff time.
func (s *WebhookStore) RecordRetryResult(ctx context.Context, deliveryID string, responseStatus int, responseBody string, success bool, durationMs int64, retryCount int, nextRetryAt *time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE webhook_deliveries
		SET response_status = $1, response_body = $2, success = $3,
			duration_ms = $4, retry_count = $5, next_retry_at = $6,
			updated_at = NOW()
		WHERE id = $7`,
		responseStatus, responseBody, success, durationMs, retryCount,
		nextRetryAt, deliveryID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("record retry result", err)
	}
	return nil
}
