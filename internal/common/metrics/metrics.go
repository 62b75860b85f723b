// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total webhook delivery attempts by event and outcome",
		},
		[]string{"event", "outcome"},
	)

	WebhookRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_retries_total",
			Help: "Total webhook retry attempts by outcome",
		},
		[]string{"outcome"},
	)

	BulkSendRecipients = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulksend_recipients_total",
			Help: "Total bulk send recipients processed by outcome",
		},
		[]string{"outcome"},
	)

	DocumentsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "documents_expired_total",
			Help: "Total documents transitioned to expired by the sweep",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Total in-person sessions transitioned to expired by the sweep",
		},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Best-effort notification failures by channel",
		},
		[]string{"channel"},
	)

	AuditIndexFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_index_failures_total",
			Help: "Best-effort audit mirror indexing failures",
		},
	)
)
