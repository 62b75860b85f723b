// internal/models/document.go
package models

import "time"

// DocumentStatus is the lifecycle state of a document.
type DocumentStatus string

const (
	DocumentStatusDraft      DocumentStatus = "draft"
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusInProgress DocumentStatus = "in_progress"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusDeclined   DocumentStatus = "declined"
	DocumentStatusVoided     DocumentStatus = "voided"
	DocumentStatusExpired    DocumentStatus = "expired"
)

// Document is one signing workflow instance.
type Document struct {
	ID               string         `json:"id" db:"id"`
	TemplateID       string         `json:"templateId" db:"template_id"`
	CreatorID        string         `json:"creatorId" db:"creator_id"`
	Name             string         `json:"name" db:"name"`
	FileURL          string         `json:"fileUrl" db:"file_url"`
	SignedFileURL    string         `json:"signedFileUrl,omitempty" db:"signed_file_url"`
	Status           DocumentStatus `json:"status" db:"status"`
	ExpiresAt        *time.Time     `json:"expiresAt,omitempty" db:"expires_at"`
	ReminderEnabled  bool           `json:"reminderEnabled" db:"reminder_enabled"`
	ReminderInterval int            `json:"reminderIntervalDays" db:"reminder_interval_days"`
	CreatedBy        string         `json:"createdBy" db:"created_by"`
	CompletedAt      *time.Time     `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time      `json:"updatedAt" db:"updated_at"`
}

// IsTerminal reports whether no further lifecycle transitions are allowed.
func (d *Document) IsTerminal() bool {
	switch d.Status {
	case DocumentStatusCompleted, DocumentStatusDeclined, DocumentStatusVoided, DocumentStatusExpired:
		return true
	}
	return false
}

// Voidable reports whether the document may still be voided.
func (d *Document) Voidable() bool {
	return d.Status != DocumentStatusCompleted && d.Status != DocumentStatusVoided
}

// SignerRole describes what a party on a document is expected to do.
type SignerRole string

const (
	SignerRoleSigner   SignerRole = "signer"
	SignerRoleCC       SignerRole = "cc"
	SignerRoleViewer   SignerRole = "viewer"
	SignerRoleApprover SignerRole = "approver"
)

// SignerStatus is the per-signer progress state.
type SignerStatus string

const (
	SignerStatusPending  SignerStatus = "pending"
	SignerStatusSent     SignerStatus = "sent"
	SignerStatusViewed   SignerStatus = "viewed"
	SignerStatusSigned   SignerStatus = "signed"
	SignerStatusDeclined SignerStatus = "declined"
)

// Signer is one party on a document. AccessToken is the sole credential for
// signer-facing actions and is unique within the tenant.
type Signer struct {
	ID           string       `json:"id" db:"id"`
	DocumentID   string       `json:"documentId" db:"document_id"`
	Name         string       `json:"name" db:"name"`
	Email        string       `json:"email" db:"email"`
	Role         SignerRole   `json:"role" db:"role"`
	SigningOrder int          `json:"signingOrder" db:"signing_order"`
	Status       SignerStatus `json:"status" db:"status"`
	AccessToken  string       `json:"-" db:"access_token"`
	IsInternal   bool         `json:"isInternal" db:"is_internal"`
	SignedAt     *time.Time   `json:"signedAt,omitempty" db:"signed_at"`
	SignedIP     string       `json:"signedIp,omitempty" db:"signed_ip"`
	UserAgent    string       `json:"userAgent,omitempty" db:"user_agent"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// Blocking reports whether this signer gates document completion.
func (s *Signer) Blocking() bool {
	return s.Role == SignerRoleSigner
}
