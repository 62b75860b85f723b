// internal/jobs/send-reminders/config.go
package sendreminders

import "time"

type Config struct {
	Timeout        time.Duration
	MaxPerDocument int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        10 * time.Minute,
		MaxPerDocument: 3,
	}
}
