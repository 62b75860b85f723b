// internal/jobs/send-webhook/config.go
package sendwebhook

import "time"

type Config struct {
	Timeout         time.Duration
	DeliveryTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		// Job timeout exceeds the per-delivery timeout so a slow endpoint
		// cannot strand the job.
		Timeout:         2 * time.Minute,
		DeliveryTimeout: 30 * time.Second,
	}
}
