// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"esign-engine/internal/audit"
	"esign-engine/internal/common/aws"
	"esign-engine/internal/common/camunda"
	"esign-engine/internal/common/config"
	"esign-engine/internal/common/database"
	"esign-engine/internal/common/logger"
	"esign-engine/internal/common/observability"
	"esign-engine/internal/notify"
	"esign-engine/internal/ratelimit"
	"esign-engine/internal/tenant"
	"esign-engine/internal/workflow"
	"esign-engine/pkg/registry"

	checkexpired "esign-engine/internal/jobs/check-expired"
	processbulksend "esign-engine/internal/jobs/process-bulk-send"
	processscheduled "esign-engine/internal/jobs/process-scheduled"
	retrywebhooks "esign-engine/internal/jobs/retry-webhooks"
	sendreminders "esign-engine/internal/jobs/send-reminders"
	sendwebhook "esign-engine/internal/jobs/send-webhook"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebeClient *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebeClient, err = camunda.NewClient(cfg.Camunda)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")

	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch audit mirror (optional) ---
	var auditSink workflow.AuditSink
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		auditSink = audit.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.AuditIndex, log)
		zapLog.Info("Elasticsearch connected successfully",
			zap.String("auditIndex", cfg.Database.Elasticsearch.AuditIndex),
		)
	} else {
		zapLog.Info("Elasticsearch audit mirror disabled")
	}

	// --- Init notifications ---
	var notifier *notify.EmailNotifier
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client failed", zap.Error(err))
		}
		notifier = notify.NewEmailNotifier(sesClient, cfg.Notifications.Email.FromEmail, cfg.Notifications.SigningBaseURL, log)
		zapLog.Info("Email notifications enabled", zap.String("fromEmail", cfg.Notifications.Email.FromEmail))
	} else {
		zapLog.Info("Email notifications disabled")
	}

	// --- Shared domain services ---
	tenants := tenant.NewRegistry(pg.DB, 5*time.Minute)
	limiter := ratelimit.NewRedisLimiter(redisClient.Client, nil)

	jobs, err := registry.LoadRegistry(cfg.Registry.Path)
	if err != nil {
		zapLog.Fatal("job registry load failed", zap.Error(err))
	}
	zapLog.Info("Job registry loaded",
		zap.String("version", jobs.Version),
		zap.Int("jobs", len(jobs.Jobs)),
	)

	// --- Register workers ---
	var workers []*camunda.TaskWorker

	if wcfg := config.GetWorkerConfig(cfg, processbulksend.TaskType); wcfg.Enabled {
		handler := processbulksend.NewHandler(
			&processbulksend.Config{
				Timeout:       config.GetDuration(wcfg.Timeout),
				BatchSize:     cfg.BulkSend.BatchSize,
				MinInterval:   time.Duration(cfg.BulkSend.MinIntervalSec) * time.Second,
				RatePerMinute: cfg.BulkSend.RatePerMinute,
			},
			pg.DB, tenants, jobs, limiter, notifier, auditSink, log,
		)
		workers = append(workers, zeebeClient.NewWorker(processbulksend.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, sendwebhook.TaskType); wcfg.Enabled {
		handler := sendwebhook.NewHandler(
			&sendwebhook.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				DeliveryTimeout: config.GetDuration(cfg.Webhook.Timeout),
			},
			pg.DB, tenants, jobs, log,
		)
		workers = append(workers, zeebeClient.NewWorker(sendwebhook.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, retrywebhooks.TaskType); wcfg.Enabled {
		handler := retrywebhooks.NewHandler(
			&retrywebhooks.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				DeliveryTimeout: config.GetDuration(cfg.Webhook.Timeout),
				BatchSize:       cfg.Webhook.RetryBatchSize,
			},
			pg.DB, tenants, jobs, log,
		)
		workers = append(workers, zeebeClient.NewWorker(retrywebhooks.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, sendreminders.TaskType); wcfg.Enabled {
		handler := sendreminders.NewHandler(
			&sendreminders.Config{
				Timeout:        config.GetDuration(wcfg.Timeout),
				MaxPerDocument: cfg.Notifications.ReminderMaxPerDocument,
			},
			pg.DB, tenants, jobs, notifier, log,
		)
		workers = append(workers, zeebeClient.NewWorker(sendreminders.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, checkexpired.TaskType); wcfg.Enabled {
		handler := checkexpired.NewHandler(
			&checkexpired.Config{
				Timeout:         config.GetDuration(wcfg.Timeout),
				DeliveryTimeout: config.GetDuration(cfg.Webhook.Timeout),
				NotifyCreators:  cfg.Notifications.Email.Enabled,
			},
			pg.DB, tenants, jobs, notifier, auditSink, log,
		)
		workers = append(workers, zeebeClient.NewWorker(checkexpired.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, processscheduled.TaskType); wcfg.Enabled {
		handler := processscheduled.NewHandler(
			&processscheduled.Config{
				Timeout:       config.GetDuration(wcfg.Timeout),
				BatchSize:     cfg.BulkSend.BatchSize,
				MinInterval:   time.Duration(cfg.BulkSend.MinIntervalSec) * time.Second,
				RatePerMinute: cfg.BulkSend.RatePerMinute,
			},
			pg.DB, tenants, jobs, limiter, notifier, auditSink, log,
		)
		workers = append(workers, zeebeClient.NewWorker(processscheduled.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	zapLog.Info("All workers registered successfully")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := pg.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": "postgres"})
				return
			}
			if err := zeebeClient.HealthCheck(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": "zeebe"})
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Stop()
	}

	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
