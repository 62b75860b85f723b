// internal/jobs/send-webhook/models.go
package sendwebhook

import "esign-engine/internal/webhook"

type Input struct {
	TenantSlug string `json:"tenantSlug"`
	Event      string `json:"event"`
	DocumentID string `json:"documentId"`
}

type Output struct {
	Success bool                    `json:"success"`
	Data    *webhook.DispatchResult `json:"data,omitempty"`
}
