// internal/jobs/retry-webhooks/models.go
package retrywebhooks

import "esign-engine/internal/webhook"

type Input struct {
	TenantSlug string `json:"tenantSlug"`
}

type Output struct {
	Success bool                 `json:"success"`
	Data    *webhook.SweepResult `json:"data,omitempty"`
}
