// internal/models/audit.go
package models

import "time"

// AuditAction names a lifecycle or administrative event on a document.
type AuditAction string

const (
	AuditActionDocumentCreated   AuditAction = "document_created"
	AuditActionDocumentSent      AuditAction = "document_sent"
	AuditActionDocumentViewed    AuditAction = "document_viewed"
	AuditActionSignerSigned      AuditAction = "signer_signed"
	AuditActionSignerDeclined    AuditAction = "signer_declined"
	AuditActionDocumentCompleted AuditAction = "document_completed"
	AuditActionDocumentVoided    AuditAction = "document_voided"
	AuditActionDocumentExpired   AuditAction = "document_expired"
	AuditActionReminderSent      AuditAction = "reminder_sent"
	AuditActionSessionStarted    AuditAction = "session_started"
	AuditActionSessionCompleted  AuditAction = "session_completed"
	AuditActionSessionCancelled  AuditAction = "session_cancelled"
	AuditActionSessionExpired    AuditAction = "session_expired"
)

// AuditLogEntry is append-only; entries are never mutated or deleted.
type AuditLogEntry struct {
	ID          string      `json:"id" db:"id"`
	DocumentID  string      `json:"documentId" db:"document_id"`
	SignerID    *string     `json:"signerId,omitempty" db:"signer_id"`
	Action      AuditAction `json:"action" db:"action"`
	Details     string      `json:"details,omitempty" db:"details"`
	PerformedBy string      `json:"performedBy" db:"performed_by"`
	CreatedAt   time.Time   `json:"createdAt" db:"created_at"`
}

// ReminderState tracks reminder emails sent for one document; one row per
// document.
type ReminderState struct {
	DocumentID string     `json:"documentId" db:"document_id"`
	LastSentAt *time.Time `json:"lastSentAt,omitempty" db:"last_sent_at"`
	SentCount  int        `json:"sentCount" db:"sent_count"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}
