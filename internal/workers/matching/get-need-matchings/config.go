// internal/workers/matching/get-need-matchings/config.go
package getneedmatchings

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{Timeout: 10 * time.Second}
}
