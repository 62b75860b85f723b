// internal/webhook/retry.go
package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/metrics"
	"esign-engine/internal/models"
	"esign-engine/internal/store"
)

const (
	baseRetryDelay = 60 * time.Second
	maxRetryDelay  = 3600 * time.Second

	// claimLease is how far a sweep pushes next_retry_at forward when
	// claiming a row, so an overlapping sweep cannot pick it up while the
	// re-attempt is in flight.
	claimLease = 5 * time.Minute
)

// BackoffDelay returns the delay before the next attempt after retryCount
// failed retries: min(60s * 2^retryCount, 1h).
func BackoffDelay(retryCount int) time.Duration {
	if retryCount > 6 {
		return maxRetryDelay
	}
	d := baseRetryDelay * time.Duration(1<<retryCount)
	if d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

// SweepResult summarizes one retry sweep.
type SweepResult struct {
	Claimed    int `json:"claimed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Exhausted  int `json:"exhausted"`
}

// RetryScheduler re-attempts failed deliveries on an exponential backoff
// schedule. Rows are claimed with a conditional update so overlapping sweeps
// never double-process the same delivery.
type RetryScheduler struct {
	webhooks  *store.WebhookStore
	client    Doer
	batchSize int
	log       logger.Logger
	now       func() time.Time
}

func NewRetryScheduler(q store.Querier, client Doer, batchSize int, log logger.Logger) *RetryScheduler {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &RetryScheduler{
		webhooks:  store.NewWebhookStore(q),
		client:    client,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

// Sweep claims due deliveries and re-issues their original payloads. Each
// payload is re-signed with the webhook's current secret so rotation takes
// effect on retry.
func (r *RetryScheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	now := r.now().UTC()
	claims, err := r.webhooks.ClaimDueRetries(ctx, now, claimLease, r.batchSize)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Claimed: len(claims)}
	for _, claim := range claims {
		attempt := r.reattempt(ctx, claim)
		retryCount := claim.RetryCount + 1
		var nextRetryAt *time.Time

		switch {
		case attempt.Success:
			result.Successful++
			metrics.WebhookRetries.WithLabelValues("success").Inc()
		case retryCount >= models.MaxDeliveryRetries:
			// Exhausted: nextRetryAt stays cleared, row is terminal.
			result.Exhausted++
			metrics.WebhookRetries.WithLabelValues("exhausted").Inc()
			r.log.Warn("webhook delivery permanently failed", map[string]interface{}{
				"deliveryId": claim.DeliveryID,
				"webhookId":  claim.WebhookID,
				"retryCount": retryCount,
			})
		default:
			result.Failed++
			metrics.WebhookRetries.WithLabelValues("failure").Inc()
			at := r.now().UTC().Add(BackoffDelay(retryCount))
			nextRetryAt = &at
		}

		if err := r.webhooks.RecordRetryResult(ctx, claim.DeliveryID,
			attempt.ResponseStatus, attempt.ResponseBody, attempt.Success,
			attempt.DurationMs, retryCount, nextRetryAt); err != nil {
			r.log.WithError(err).Error("failed to record retry result", map[string]interface{}{
				"deliveryId": claim.DeliveryID,
			})
		}
	}

	return result, nil
}

// reattempt re-issues one claimed delivery with its snapshotted payload.
func (r *RetryScheduler) reattempt(ctx context.Context, claim store.RetryClaim) models.WebhookDelivery {
	payload := []byte(claim.Payload)
	start := r.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claim.EndpointURL, bytes.NewReader(payload))
	if err != nil {
		return models.WebhookDelivery{
			ResponseBody: truncate(err.Error(), responseBodyMax),
			DurationMs:   r.now().Sub(start).Milliseconds(),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, Sign(claim.SecretKey, payload))
	req.Header.Set(headerEvent, claim.Event)
	req.Header.Set(headerTimestamp, start.UTC().Format(time.RFC3339))

	resp, err := r.client.Do(req)
	durationMs := r.now().Sub(start).Milliseconds()
	if err != nil {
		return models.WebhookDelivery{
			ResponseBody: truncate(err.Error(), responseBodyMax),
			DurationMs:   durationMs,
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyMax+1))
	return models.WebhookDelivery{
		ResponseStatus: resp.StatusCode,
		ResponseBody:   truncate(string(body), responseBodyMax),
		Success:        resp.StatusCode >= 200 && resp.StatusCode < 300,
		DurationMs:     durationMs,
	}
}
