// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"esign-engine/internal/common/config"
	"esign-engine/internal/common/observability"
)

// HandlerFunc is the job callback signature exposed by the task handlers.
type HandlerFunc func(client worker.JobClient, job entities.Job)

// TaskWorker is a running job subscription for one task type.
type TaskWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job subscription for taskType and starts polling. Every
// handled job is counted and timed under the task type label.
func (c *Client) NewWorker(taskType string, wcfg config.WorkerConfig, handler HandlerFunc, obs *observability.Observability, logger *zap.Logger) *TaskWorker {
	jobWorker := c.client.NewJobWorker().
		JobType(taskType).
		Handler(func(client worker.JobClient, job entities.Job) {
			start := time.Now()
			handler(client, job)
			obs.RecordJobProcessed(context.Background(), taskType)
			obs.RecordJobDuration(context.Background(), taskType, time.Since(start))
		}).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", wcfg.MaxJobsActive),
		zap.Int("timeout_ms", wcfg.Timeout),
	)

	return &TaskWorker{
		worker:   jobWorker,
		logger:   logger,
		taskType: taskType,
	}
}

// Stop drains the subscription and stops polling.
func (w *TaskWorker) Stop() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
}
