// internal/jobs/check-expired/config.go
package checkexpired

import "time"

type Config struct {
	Timeout         time.Duration
	DeliveryTimeout time.Duration
	NotifyCreators  bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:         10 * time.Minute,
		DeliveryTimeout: 30 * time.Second,
		NotifyCreators:  true,
	}
}
