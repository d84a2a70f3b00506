package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: matching
    user: matching
    password: ${MATCHING_TEST_DB_PASSWORD}
  redis:
    address: localhost:6379
workers:
  run-matching:
    enabled: true
    timeout: 45000
matching:
  weights:
    name: default
    version: "2"
    total: 100
    skills: 40
    location: 20
    availability: 15
    financial: 15
    experience: 10
  tenant_weights:
    acme:
      name: acme
      skills: 50
      location: 50
  cache:
    remote: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("MATCHING_TEST_DB_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	wc := GetWorkerConfig(cfg, "run-matching")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 45000, wc.Timeout)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 3, wc.MaxRetries)

	m := cfg.Matching
	assert.Equal(t, PoolSourcePostgres, m.PoolSource)
	assert.Equal(t, 4, m.Concurrency)
	assert.Equal(t, 20, m.PresentationCap)
	assert.Equal(t, 1024, m.Cache.MaxEntries)
	assert.Equal(t, "match", m.Cache.KeyPrefix)
	assert.InDelta(t, 0.75, m.Thresholds.Strength, 1e-9)
	assert.InDelta(t, 0.35, m.Thresholds.Weakness, 1e-9)

	w := m.Weights.ToModel()
	assert.Equal(t, "2", w.Version)
	assert.NoError(t, w.Validate())

	require.Contains(t, m.TenantWeights, "acme")
	assert.InDelta(t, 50.0, m.TenantWeights["acme"].Skills, 1e-9)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		errContains string
	}{
		{
			name:        "missing broker",
			yaml:        "database:\n  postgres:\n    host: db\n    database: m\n    user: u\n",
			errContains: "camunda.broker_address",
		},
		{
			name: "elasticsearch pool without address",
			yaml: "camunda:\n  broker_address: zeebe:26500\ndatabase:\n  postgres:\n    host: db\n    database: m\n    user: u\n" +
				"matching:\n  pool_source: elasticsearch\n",
			errContains: "database.elasticsearch",
		},
		{
			name: "remote cache without redis",
			yaml: "camunda:\n  broker_address: zeebe:26500\ndatabase:\n  postgres:\n    host: db\n    database: m\n    user: u\n" +
				"matching:\n  cache:\n    remote: true\n",
			errContains: "database.redis.address",
		},
		{
			name: "unknown pool source",
			yaml: "camunda:\n  broker_address: zeebe:26500\ndatabase:\n  postgres:\n    host: db\n    database: m\n    user: u\n" +
				"matching:\n  pool_source: csv\n",
			errContains: "matching.pool_source",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)

			_, err := LoadFromFile(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"update-need": {Enabled: false}}}

	assert.False(t, IsWorkerEnabled(cfg, "update-need"))
	assert.True(t, IsWorkerEnabled(cfg, "run-matching"))
}
