// internal/jobs/check-expired/handler.go
package checkexpired

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"esign-engine/internal/common/errors"
	httpclient "esign-engine/internal/common/http"
	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/metrics"
	"esign-engine/internal/models"
	"esign-engine/internal/notify"
	"esign-engine/internal/session"
	"esign-engine/internal/store"
	"esign-engine/internal/tenant"
	"esign-engine/internal/webhook"
	"esign-engine/internal/workflow"
	"esign-engine/pkg/registry"
)

const TaskType = "esign.check-expired"

type Handler struct {
	config   *Config
	db       *sql.DB
	tenants  *tenant.Registry
	jobs     *registry.JobRegistry
	notifier *notify.EmailNotifier
	sink     workflow.AuditSink
	client   webhook.Doer
	errs     *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, tenants *tenant.Registry, jobs *registry.JobRegistry, notifier *notify.EmailNotifier, sink workflow.AuditSink, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		db:       db,
		tenants:  tenants,
		jobs:     jobs,
		notifier: notifier,
		sink:     sink,
		client:   httpclient.NewClient(config.DeliveryTimeout),
		errs:     errors.NewErrorHandler(log),
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	if err := h.jobs.ValidateInput(TaskType, []byte(job.Variables)); err != nil {
		h.failJob(client, job, errors.NewInvalidJobInputError(err.Error()))
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, errors.NewInvalidJobInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode(err)).Inc()
		h.failJob(client, job, err)
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.completeJob(client, job, output)
}

// execute runs the two independent sweeps: overdue documents and overdue
// in-person sessions. Expired documents additionally fan out
// document.expired webhooks and a best-effort creator notice.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	scope, err := tenant.NewScope(ctx, h.db, h.tenants, input.TenantSlug)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	engine := workflow.NewEngine(scope, input.TenantSlug, h.sink, h.logger)
	expired, err := engine.ExpireDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if len(expired) > 0 {
		metrics.DocumentsExpired.Add(float64(len(expired)))
	}

	data := &Data{DocumentsExpired: len(expired)}
	dispatcher := webhook.NewDispatcher(scope, h.client, h.logger)
	for _, doc := range expired {
		data.ExpiredDocumentIDs = append(data.ExpiredDocumentIDs, doc.ID)

		result, err := dispatcher.Dispatch(ctx, scope, models.EventDocumentExpired, doc.ID)
		if err != nil {
			h.logger.WithError(err).Warn("expired webhook dispatch failed", map[string]interface{}{
				"documentId": doc.ID,
			})
			data.WebhookFailures++
			continue
		}
		data.WebhooksDispatched += result.Triggered
		data.WebhookFailures += result.Failed

		if h.config.NotifyCreators && h.notifier != nil {
			if email := h.creatorEmail(ctx, scope, doc.CreatorID); email != "" {
				h.notifier.SendExpirationNotice(ctx, &doc, email)
			}
		}
	}

	sessions := session.NewManager(scope, "", 0, h.logger)
	sessionsExpired, err := sessions.ExpireOld(ctx)
	if err != nil {
		return nil, err
	}
	data.SessionsExpired = sessionsExpired

	return &Output{Success: true, Data: data}, nil
}

func (h *Handler) creatorEmail(ctx context.Context, q store.Querier, creatorID string) string {
	var email string
	err := q.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, creatorID).Scan(&email)
	if err != nil {
		return ""
	}
	return email
}

// Execute exposes the core logic for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

func errorCode(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return string(stdErr.Code)
	}
	return "UNKNOWN_ERROR"
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, jobErr error) {
	h.errs.HandleJobError(context.Background(), client, job, jobErr)
}
