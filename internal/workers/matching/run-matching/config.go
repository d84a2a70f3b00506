// internal/workers/matching/run-matching/config.go
package runmatching

import (
	"time"

	"matching-workers/internal/models"
)

type Config struct {
	Timeout     time.Duration
	DefaultMode models.ScorerMode
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     120 * time.Second,
		DefaultMode: models.ScorerRuleBased,
	}
}
