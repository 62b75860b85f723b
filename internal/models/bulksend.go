// internal/models/bulksend.go
package models

import "time"

// BulkSendStatus is the lifecycle state of a bulk send batch.
type BulkSendStatus string

const (
	BulkSendStatusQueued    BulkSendStatus = "queued"
	BulkSendStatusSending   BulkSendStatus = "sending"
	BulkSendStatusCompleted BulkSendStatus = "completed"
	BulkSendStatusPartial   BulkSendStatus = "partial"
	BulkSendStatusFailed    BulkSendStatus = "failed"
	BulkSendStatusCancelled BulkSendStatus = "cancelled"
)

// BulkSend fans one template out to many recipients as individual documents.
// RecipientCount is fixed at creation; sentCount+failedCount never exceeds it.
type BulkSend struct {
	ID             string          `json:"id" db:"id"`
	TemplateID     string          `json:"templateId" db:"template_id"`
	Name           string          `json:"name" db:"name"`
	RecipientCount int             `json:"recipientCount" db:"recipient_count"`
	Status         BulkSendStatus  `json:"status" db:"status"`
	ScheduledFor   *time.Time      `json:"scheduledFor,omitempty" db:"scheduled_for"`
	SentCount      int             `json:"sentCount" db:"sent_count"`
	FailedCount    int             `json:"failedCount" db:"failed_count"`
	ErrorLog       []BulkSendError `json:"errorLog" db:"error_log"`
	CreatedBy      string          `json:"createdBy" db:"created_by"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// BulkSendError is one append-only error log entry.
type BulkSendError struct {
	RecipientEmail string    `json:"recipientEmail"`
	Error          string    `json:"error"`
	Timestamp      time.Time `json:"timestamp"`
}

// FinalStatus computes the terminal batch status from the recorded counts.
func (b *BulkSend) FinalStatus() BulkSendStatus {
	switch {
	case b.FailedCount == 0:
		return BulkSendStatusCompleted
	case b.SentCount == 0:
		return BulkSendStatusFailed
	default:
		return BulkSendStatusPartial
	}
}

// RecipientStatus is the per-recipient processing state.
type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
)

// BulkSendRecipient is one recipient row; terminal once sent or failed,
// never re-queued automatically.
type BulkSendRecipient struct {
	ID           string            `json:"id" db:"id"`
	BulkSendID   string            `json:"bulkSendId" db:"bulk_send_id"`
	DocumentID   *string           `json:"documentId,omitempty" db:"document_id"`
	Name         string            `json:"name" db:"name"`
	Email        string            `json:"email" db:"email"`
	CustomFields map[string]string `json:"customFields,omitempty" db:"custom_fields"`
	Status       RecipientStatus   `json:"status" db:"status"`
	ErrorMessage string            `json:"errorMessage,omitempty" db:"error_message"`
	CreatedAt    time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time         `json:"updatedAt" db:"updated_at"`
}
