// internal/jobs/process-scheduled/models.go
package processscheduled

import "esign-engine/internal/bulksend"

type Input struct {
	TenantSlug string `json:"tenantSlug"`
}

type Data struct {
	Due       int                `json:"due"`
	Processed []*bulksend.Result `json:"processed,omitempty"`
}

type Output struct {
	Success bool  `json:"success"`
	Data    *Data `json:"data,omitempty"`
}
