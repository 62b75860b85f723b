// internal/jobs/process-bulk-send/config.go
package processbulksend

import "time"

type Config struct {
	Timeout       time.Duration
	BatchSize     int
	MinInterval   time.Duration
	RatePerMinute int
}

func LoadConfig() *Config {
	return &Config{
		// Long timeout: a full batch of 100 recipients at 6s pacing runs
		// ten minutes.
		Timeout:       30 * time.Minute,
		BatchSize:     10,
		MinInterval:   6 * time.Second,
		RatePerMinute: 10,
	}
}
