package score

import (
	"fmt"

	"matching-workers/internal/common/config"
)

// PolicyFromConfig overlays the configured scoring section on the default policy.
func PolicyFromConfig(cfg config.ScoringConfig) (Policy, error) {
	p := DefaultPolicy()
	for _, l := range cfg.LocationLevels {
		level := LocationLevel{Name: l.Name, DistanceKm: l.DistanceKm, Score: l.Score}
		switch l.Name {
		case LevelPostal:
			p.SamePostal = level
		case LevelArea:
			p.SameArea = level
		case LevelDepartment:
			p.SameDepartment = level
		case LevelOther:
			p.Elsewhere = level
		default:
			return Policy{}, fmt.Errorf("unknown location level %q", l.Name)
		}
	}
	if cfg.MissingLocationScore != nil {
		p.MissingLocationScore = *cfg.MissingLocationScore
	}
	if cfg.AvailabilityDecayDays > 0 {
		p.AvailabilityDecayDays = cfg.AvailabilityDecayDays
	}
	if cfg.FinancialTolerance > 0 {
		p.FinancialTolerance = cfg.FinancialTolerance
	}
	if cfg.MissingRateScore != nil {
		p.MissingRateScore = *cfg.MissingRateScore
	}
	if cfg.ExperienceBase != nil {
		p.ExperienceBase = *cfg.ExperienceBase
	}
	if cfg.ExperienceSaturationYears > 0 {
		p.ExperienceSaturationYears = cfg.ExperienceSaturationYears
	}
	return p, p.Validate()
}
