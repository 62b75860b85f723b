// internal/webhook/dispatcher.go
package webhook

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/metrics"
	"esign-engine/internal/models"
	"esign-engine/internal/store"
)

// Doer issues the outbound POST; satisfied by the timeout client wrapper and
// by httptest-backed fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	headerSignature = "X-Esign-Signature"
	headerEvent     = "X-Esign-Event"
	headerTimestamp = "X-Esign-Timestamp"

	// responseBodyMax bounds the response snapshot stored per delivery.
	responseBodyMax = 1000

	// initialRetryDelay is applied to a failed first attempt.
	initialRetryDelay = 60 * time.Second
)

// DispatchResult aggregates one event's fan-out.
type DispatchResult struct {
	Event      string `json:"event"`
	Triggered  int    `json:"triggered"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
}

// Dispatcher fans a domain event out to every subscribed webhook. Deliveries
// run concurrently with independent failure domains; the dispatcher records
// every attempt and never raises for an individual endpoint failure.
type Dispatcher struct {
	webhooks *store.WebhookStore
	client   Doer
	log      logger.Logger
	now      func() time.Time
}

func NewDispatcher(q store.Querier, client Doer, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks: store.NewWebhookStore(q),
		client:   client,
		log:      log,
		now:      time.Now,
	}
}

// Dispatch delivers the payload for one event to all active subscribers.
func (d *Dispatcher) Dispatch(ctx context.Context, q store.Querier, event, documentID string) (*DispatchResult, error) {
	payload, err := BuildPayload(ctx, q, event, documentID, d.now())
	if err != nil {
		return nil, err
	}

	hooks, err := d.webhooks.ListActiveForEvent(ctx, event)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{Event: event, Triggered: len(hooks)}
	if len(hooks) == 0 {
		return result, nil
	}

	type outcome struct {
		webhook  models.Webhook
		delivery models.WebhookDelivery
	}
	outcomes := make([]outcome, len(hooks))

	var wg sync.WaitGroup
	for i, hook := range hooks {
		wg.Add(1)
		go func(i int, hook models.Webhook) {
			defer wg.Done()
			outcomes[i] = outcome{
				webhook:  hook,
				delivery: d.attempt(ctx, hook.EndpointURL, hook.SecretKey, event, payload),
			}
		}(i, hook)
	}
	wg.Wait()

	now := d.now().UTC()
	for _, o := range outcomes {
		o.delivery.WebhookID = o.webhook.ID
		o.delivery.DocumentID = documentID
		o.delivery.Event = event
		o.delivery.Payload = string(payload)

		if o.delivery.Success {
			result.Successful++
			metrics.WebhookDeliveries.WithLabelValues(event, "success").Inc()
		} else {
			result.Failed++
			retryAt := now.Add(initialRetryDelay)
			o.delivery.NextRetryAt = &retryAt
			metrics.WebhookDeliveries.WithLabelValues(event, "failure").Inc()
		}

		if _, err := d.webhooks.InsertDelivery(ctx, &o.delivery); err != nil {
			d.log.WithError(err).Error("failed to log webhook delivery", map[string]interface{}{
				"webhookId": o.webhook.ID,
				"event":     event,
			})
		}
		if err := d.webhooks.TouchLastTriggered(ctx, o.webhook.ID, now); err != nil {
			d.log.WithError(err).Warn("failed to touch webhook", map[string]interface{}{
				"webhookId": o.webhook.ID,
			})
		}
	}

	return result, nil
}

// attempt issues one signed POST and captures its outcome. Any 2xx is
// success; everything else, including transport errors, is failure.
func (d *Dispatcher) attempt(ctx context.Context, endpointURL, secret, event string, payload []byte) models.WebhookDelivery {
	start := d.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(payload))
	if err != nil {
		return models.WebhookDelivery{
			ResponseBody: truncate(err.Error(), responseBodyMax),
			DurationMs:   d.now().Sub(start).Milliseconds(),
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, Sign(secret, payload))
	req.Header.Set(headerEvent, event)
	req.Header.Set(headerTimestamp, start.UTC().Format(time.RFC3339))

	resp, err := d.client.Do(req)
	durationMs := d.now().Sub(start).Milliseconds()
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

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
