// internal/jobs/send-reminders/models.go
package sendreminders

import "esign-engine/internal/notify"

type Input struct {
	TenantSlug string `json:"tenantSlug"`
}

type Output struct {
	Success bool                `json:"success"`
	Data    *notify.SweepResult `json:"data,omitempty"`
}
