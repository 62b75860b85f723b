// internal/jobs/process-scheduled/config.go
package processscheduled

import "time"

type Config struct {
	Timeout       time.Duration
	BatchSize     int
	MinInterval   time.Duration
	RatePerMinute int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:       30 * time.Minute,
		BatchSize:     10,
		MinInterval:   6 * time.Second,
		RatePerMinute: 10,
	}
}
