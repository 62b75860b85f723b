// internal/models/webhook.go
package models

import "time"

// Domain events raised by document/signer state transitions.
const (
	EventDocumentSent      = "document.sent"
	EventDocumentViewed    = "document.viewed"
	EventDocumentSigned    = "document.signed"
	EventDocumentCompleted = "document.completed"
	EventDocumentDeclined  = "document.declined"
	EventDocumentExpired   = "document.expired"
	EventDocumentVoided    = "document.voided"
)

// AllEvents lists every dispatchable event name.
var AllEvents = []string{
	EventDocumentSent,
	EventDocumentViewed,
	EventDocumentSigned,
	EventDocumentCompleted,
	EventDocumentDeclined,
	EventDocumentExpired,
	EventDocumentVoided,
}

// Webhook is a tenant-registered subscriber endpoint.
type Webhook struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	EndpointURL     string     `json:"endpointUrl" db:"endpoint_url"`
	SecretKey       string     `json:"-" db:"secret_key"`
	Events          []string   `json:"events" db:"events"`
	IsActive        bool       `json:"isActive" db:"is_active"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty" db:"last_triggered_at"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// SubscribedTo reports whether the webhook subscribes to the given event.
func (w *Webhook) SubscribedTo(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// MaxDeliveryRetries caps retry attempts per delivery; a delivery row is
// terminal once success=true or retryCount reaches this value.
const MaxDeliveryRetries = 5

// WebhookDelivery records one attempted HTTP notification to one subscriber.
type WebhookDelivery struct {
	ID             string     `json:"id" db:"id"`
	WebhookID      string     `json:"webhookId" db:"webhook_id"`
	DocumentID     string     `json:"documentId" db:"document_id"`
	Event          string     `json:"event" db:"event"`
	Payload        string     `json:"payload" db:"payload"`
	ResponseStatus int        `json:"responseStatus" db:"response_status"`
	ResponseBody   string     `json:"responseBody,omitempty" db:"response_body"`
	Success        bool       `json:"success" db:"success"`
	DurationMs     int64      `json:"durationMs" db:"duration_ms"`
	RetryCount     int        `json:"retryCount" db:"retry_count"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty" db:"next_retry_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// Terminal reports whether the delivery will never be retried again.
func (d *WebhookDelivery) Terminal() bool {
	return d.Success || d.RetryCount >= MaxDeliveryRetries
}
