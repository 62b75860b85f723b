// internal/jobs/retry-webhooks/config.go
package retrywebhooks

import "time"

type Config struct {
	Timeout         time.Duration
	DeliveryTimeout time.Duration
	BatchSize       int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         5 * time.Minute,
		DeliveryTimeout: 30 * time.Second,
		BatchSize:       50,
	}
}
