// internal/jobs/check-expired/models.go
package checkexpired

type Input struct {
	TenantSlug string `json:"tenantSlug"`
}

type Data struct {
	DocumentsExpired    int      `json:"documentsExpired"`
	SessionsExpired     int64    `json:"sessionsExpired"`
	ExpiredDocumentIDs  []string `json:"expiredDocumentIds,omitempty"`
	WebhooksDispatched  int      `json:"webhooksDispatched"`
	WebhookFailures     int      `json:"webhookFailures"`
	NotificationsFailed int      `json:"notificationsFailed"`
}

type Output struct {
	Success bool  `json:"success"`
	Data    *Data `json:"data,omitempty"`
}
