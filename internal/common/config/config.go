// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Webhook       WebhookConfig           `mapstructure:"webhook"`
	BulkSend      BulkSendConfig          `mapstructure:"bulk_send"`
	Sessions      SessionConfig           `mapstructure:"sessions"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Registry      RegistryConfig          `mapstructure:"registry"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
	Enabled    bool     `mapstructure:"enabled"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Specific Configuration Sections ---

// WebhookConfig holds settings for the dispatch and retry pipeline.
type WebhookConfig struct {
	Timeout          int `mapstructure:"timeout"`            // milliseconds, per delivery
	BaseRetryDelay   int `mapstructure:"base_retry_delay"`   // seconds
	MaxRetryDelay    int `mapstructure:"max_retry_delay"`    // seconds
	RetryBatchSize   int `mapstructure:"retry_batch_size"`
	ResponseBodyMax  int `mapstructure:"response_body_max"`  // bytes kept per delivery log
}

// BulkSendConfig holds batch processing and pacing settings.
type BulkSendConfig struct {
	BatchSize      int `mapstructure:"batch_size"`
	MinIntervalSec int `mapstructure:"min_interval_sec"` // seconds between recipients
	RatePerMinute  int `mapstructure:"rate_per_minute"`
}

// SessionConfig holds in-person session settings.
type SessionConfig struct {
	TTLMinutes int    `mapstructure:"ttl_minutes"`
	PinSalt    string `mapstructure:"pin_salt"`
}

// NotificationConfig holds settings for the reminder and notice emails.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SigningBaseURL         string `mapstructure:"signing_base_url"`
	ReminderMaxPerDocument int    `mapstructure:"reminder_max_per_document"`
}

// RegistryConfig points at the job registry JSON.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
