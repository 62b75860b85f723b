// internal/jobs/process-bulk-send/handler.go
package processbulksend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"esign-engine/internal/bulksend"
	"esign-engine/internal/common/errors"
	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/metrics"
	"esign-engine/internal/notify"
	"esign-engine/internal/ratelimit"
	"esign-engine/internal/store"
	"esign-engine/internal/tenant"
	"esign-engine/internal/workflow"
	"esign-engine/pkg/registry"
)

const TaskType = "esign.process-bulk-send"

type Handler struct {
	config   *Config
	db       *sql.DB
	tenants  *tenant.Registry
	jobs     *registry.JobRegistry
	limiter  ratelimit.Limiter
	notifier *notify.EmailNotifier
	sink     workflow.AuditSink
	errs     *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, db *sql.DB, tenants *tenant.Registry, jobs *registry.JobRegistry, limiter ratelimit.Limiter, notifier *notify.EmailNotifier, sink workflow.AuditSink, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		db:       db,
		tenants:  tenants,
		jobs:     jobs,
		limiter:  limiter,
		notifier: notifier,
		sink:     sink,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	scope, err := tenant.NewScope(ctx, h.db, h.tenants, input.TenantSlug)
	if err != nil {
		return nil, err
	}
	defer scope.Close()

	engine := workflow.NewEngine(scope, input.TenantSlug, h.sink, h.logger)
	sender := bulksend.NewDocumentSender(scope, engine, h.notifier)
	processor := bulksend.NewProcessor(scope, sender, h.limiter, bulksend.Config{
		BatchSize:     h.config.BatchSize,
		MinInterval:   h.config.MinInterval,
		RatePerMinute: h.config.RatePerMinute,
	}, h.logger)

	result, err := processor.Process(ctx, input.BulkSendID)
	if err != nil {
		return nil, err
	}
	return &Output{Success: true, Data: result}, nil
}

// Execute exposes the core logic for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

// ExecuteScoped runs the batch against an already-acquired querier, used by
// the scheduled-sends sweep and by tests with sqlmock.
func (h *Handler) ExecuteScoped(ctx context.Context, q store.Querier, tenantSlug, bulkSendID string) (*bulksend.Result, error) {
	engine := workflow.NewEngine(q, tenantSlug, h.sink, h.logger)
	sender := bulksend.NewDocumentSender(q, engine, h.notifier)
	processor := bulksend.NewProcessor(q, sender, h.limiter, bulksend.Config{
		BatchSize:     h.config.BatchSize,
		MinInterval:   h.config.MinInterval,
		RatePerMinute: h.config.RatePerMinute,
	}, h.logger)
	return processor.Process(ctx, bulkSendID)
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
