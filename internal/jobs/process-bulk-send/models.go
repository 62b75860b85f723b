// internal/jobs/process-bulk-send/models.go
package processbulksend

import "esign-engine/internal/bulksend"

type Input struct {
	TenantSlug string `json:"tenantSlug"`
	BulkSendID string `json:"bulkSendId"`
}

type Output struct {
	Success bool             `json:"success"`
	Data    *bulksend.Result `json:"data,omitempty"`
}
