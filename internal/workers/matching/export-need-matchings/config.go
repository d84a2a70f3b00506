// internal/workers/matching/export-need-matchings/config.go
package exportneedmatchings

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}
