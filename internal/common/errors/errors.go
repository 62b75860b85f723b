// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTenantUnknown      ErrorCode = "TENANT_UNKNOWN"
	ErrCodeTenantScopeFailed  ErrorCode = "TENANT_SCOPE_FAILED"
	ErrCodeInvalidJobInput    ErrorCode = "INVALID_JOB_INPUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeDocumentNotFound    ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeTransitionRejected  ErrorCode = "TRANSITION_REJECTED"

	ErrCodeBulkSendNotFound ErrorCode = "BULK_SEND_NOT_FOUND"
	ErrCodeBulkSendAborted  ErrorCode = "BULK_SEND_ABORTED"

	ErrCodeWebhookNotFound        ErrorCode = "WEBHOOK_NOT_FOUND"
	ErrCodeWebhookDeliveryFailed  ErrorCode = "WEBHOOK_DELIVERY_FAILED"
	ErrCodeWebhookPayloadFailed   ErrorCode = "WEBHOOK_PAYLOAD_FAILED"

	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewTenantUnknownError creates a non-retryable tenant resolution error.
func NewTenantUnknownError(slug string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTenantUnknown,
		Message:   "Tenant not found in registry",
		Details:   fmt.Sprintf("tenantSlug: %s", slug),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTenantScopeFailedError creates a retryable tenant scope acquisition error.
func NewTenantScopeFailedError(slug string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTenantScopeFailed,
		Message:   "Failed to acquire tenant-scoped connection",
		Details:   fmt.Sprintf("tenantSlug: %s, error: %s", slug, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidJobInputError creates a non-retryable input validation error.
func NewInvalidJobInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobInput,
		Message:   "Job input failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDocumentNotFoundError creates a non-retryable lookup error.
func NewDocumentNotFoundError(documentID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "Document not found",
		Details:   fmt.Sprintf("documentId: %s", documentID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBulkSendNotFoundError creates a non-retryable lookup error.
func NewBulkSendNotFoundError(bulkSendID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBulkSendNotFound,
		Message:   "Bulk send not found",
		Details:   fmt.Sprintf("bulkSendId: %s", bulkSendID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBulkSendAbortedError wraps a fatal processing fault; the batch is already
// marked failed with partial counts preserved.
func NewBulkSendAbortedError(bulkSendID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBulkSendAborted,
		Message:   "Bulk send processing aborted",
		Details:   fmt.Sprintf("bulkSendId: %s, error: %s", bulkSendID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebhookPayloadFailedError creates a non-retryable payload build error.
func NewWebhookPayloadFailedError(documentID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookPayloadFailed,
		Message:   "Failed to build webhook payload",
		Details:   fmt.Sprintf("documentId: %s, error: %s", documentID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionNotFoundError creates a non-retryable session lookup error.
func NewSessionNotFoundError(token string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found",
		Details:   fmt.Sprintf("sessionToken: %s", token),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable email send error.
func NewNotificationSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification send failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. BPMN Conversion
// ==========================

// BPMNErrorMapping maps internal codes onto the BPMN error codes declared on
// boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeTenantUnknown:          "TENANT_UNKNOWN",
	ErrCodeInvalidJobInput:        "INVALID_INPUT",
	ErrCodeDocumentNotFound:       "NOT_FOUND",
	ErrCodeBulkSendNotFound:       "NOT_FOUND",
	ErrCodeWebhookNotFound:        "NOT_FOUND",
	ErrCodeSessionNotFound:        "NOT_FOUND",
	ErrCodeBulkSendAborted:        "BULK_SEND_FAILED",
	ErrCodeNotificationSendFailed: "NOTIFICATION_FAILED",
}

// GetRetryCount returns scheduler-level retries for an error code. Sweeps
// retry internally, so most codes map to zero.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeTenantScopeFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeBulkSendAborted,
		ErrCodeNotificationSendFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TENANT"):
		return "TENANT"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "BULK_SEND"):
		return "BULK_SEND"
	case strings.Contains(codeStr, "WEBHOOK"):
		return "WEBHOOK"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
