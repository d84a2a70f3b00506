// Package weights resolves the weight configuration of a tenant.
package weights

import (
	"context"
	"strings"

	"matching-workers/internal/common/config"
	"matching-workers/internal/models"
)

// ConfigProvider serves the configured weights, with optional per-tenant overrides.
// Without any configured weights it serves models.DefaultWeights.
type ConfigProvider struct {
	global  models.WeightConfig
	tenants map[string]models.WeightConfig
}

func NewConfigProvider(cfg config.MatchingConfig) *ConfigProvider {
	p := &ConfigProvider{
		global:  models.DefaultWeights(),
		tenants: make(map[string]models.WeightConfig, len(cfg.TenantWeights)),
	}
	if !cfg.Weights.IsZero() {
		p.global = named(cfg.Weights.ToModel(), "global")
	}
	for tenantID, w := range cfg.TenantWeights {
		p.tenants[strings.ToLower(tenantID)] = named(w.ToModel(), tenantID)
	}
	return p
}

func (p *ConfigProvider) Weights(_ context.Context, tenantID string) (models.WeightConfig, error) {
	if w, ok := p.tenants[strings.ToLower(tenantID)]; ok {
		return w, nil
	}
	return p.global, nil
}

func named(w models.WeightConfig, fallback string) models.WeightConfig {
	if w.Name == "" {
		w.Name = fallback
	}
	return w
}
