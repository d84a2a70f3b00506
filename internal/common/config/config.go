// internal/common/config/config.go
package config

import (
	"fmt"

	"matching-workers/internal/models"
)

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig               `mapstructure:"app"`
	Camunda  CamundaConfig           `mapstructure:"camunda"`
	Database DatabaseConfig          `mapstructure:"database"`
	Workers  map[string]WorkerConfig `mapstructure:"workers"`
	Matching MatchingConfig          `mapstructure:"matching"`
	Logging  LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HealthPort  int    `mapstructure:"health_port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
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
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses      []string `mapstructure:"addresses"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	URL            string   `mapstructure:"url"`
	CandidateIndex string   `mapstructure:"candidate_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Matching ---

const (
	PoolSourcePostgres      = "postgres"
	PoolSourceElasticsearch = "elasticsearch"
)

// MatchingConfig drives the matching engine.
type MatchingConfig struct {
	PoolSource      string                   `mapstructure:"pool_source"`
	Concurrency     int                      `mapstructure:"concurrency"`
	NeedTimeout     int                      `mapstructure:"need_timeout"` // milliseconds
	PresentationCap int                      `mapstructure:"presentation_cap"`
	Weights         WeightsConfig            `mapstructure:"weights"`
	TenantWeights   map[string]WeightsConfig `mapstructure:"tenant_weights"`
	Thresholds      ThresholdsConfig         `mapstructure:"thresholds"`
	Scoring         ScoringConfig            `mapstructure:"scoring"`
	Cache           CacheConfig              `mapstructure:"cache"`
	Assisted        AssistedConfig           `mapstructure:"assisted"`
}

type WeightsConfig struct {
	Name         string  `mapstructure:"name"`
	Version      string  `mapstructure:"version"`
	Total        float64 `mapstructure:"total"`
	Skills       float64 `mapstructure:"skills"`
	Location     float64 `mapstructure:"location"`
	Availability float64 `mapstructure:"availability"`
	Financial    float64 `mapstructure:"financial"`
	Experience   float64 `mapstructure:"experience"`
}

// IsZero reports whether no weight was configured.
func (w WeightsConfig) IsZero() bool {
	return w.Skills == 0 && w.Location == 0 && w.Availability == 0 && w.Financial == 0 && w.Experience == 0
}

// ToModel converts the section into a models.WeightConfig.
func (w WeightsConfig) ToModel() models.WeightConfig {
	return models.WeightConfig{
		Name:         w.Name,
		Version:      w.Version,
		Total:        w.Total,
		Skills:       w.Skills,
		Location:     w.Location,
		Availability: w.Availability,
		Financial:    w.Financial,
		Experience:   w.Experience,
	}
}

// ThresholdsConfig holds the explanation tag thresholds on the [0,1] scale.
type ThresholdsConfig struct {
	Strength float64 `mapstructure:"strength"`
	Weakness float64 `mapstructure:"weakness"`
}

type LocationLevelConfig struct {
	Name       string  `mapstructure:"name"`
	DistanceKm float64 `mapstructure:"distance_km"`
	Score      float64 `mapstructure:"score"`
}

// ScoringConfig holds the rule-based scoring policy. Empty values keep the built-in policy.
type ScoringConfig struct {
	LocationLevels            []LocationLevelConfig `mapstructure:"location_levels"`
	MissingLocationScore      *float64              `mapstructure:"missing_location_score"`
	AvailabilityDecayDays     float64               `mapstructure:"availability_decay_days"`
	FinancialTolerance        float64               `mapstructure:"financial_tolerance"`
	MissingRateScore          *float64              `mapstructure:"missing_rate_score"`
	ExperienceBase            *float64              `mapstructure:"experience_base"`
	ExperienceSaturationYears float64               `mapstructure:"experience_saturation_years"`
}

type CacheConfig struct {
	MaxEntries int    `mapstructure:"max_entries"`
	TTL        int    `mapstructure:"ttl"` // milliseconds, 0 keeps entries until evicted
	Remote     bool   `mapstructure:"remote"`
	RemoteTTL  int    `mapstructure:"remote_ttl"` // milliseconds
	KeyPrefix  string `mapstructure:"key_prefix"`
}

type AssistedConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
	MaxLogLength int    `mapstructure:"max_log_length"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
