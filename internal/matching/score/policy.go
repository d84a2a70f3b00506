package score

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// LocationLevel is one distance bucket of the location step function.
type LocationLevel struct {
	Name       string
	DistanceKm float64
	Score      float64
}

// Location bucket names, from nearest to farthest.
const (
	LevelPostal     = "postal"
	LevelArea       = "area"
	LevelDepartment = "department"
	LevelOther      = "other"
)

// Policy holds the tunable parameters of the rule-based calculator.
type Policy struct {
	SamePostal     LocationLevel
	SameArea       LocationLevel
	SameDepartment LocationLevel
	Elsewhere      LocationLevel
	// MissingLocationScore applies when either side has no location.
	MissingLocationScore float64

	// AvailabilityDecayDays is the delay past the need's start at which the
	// availability score reaches 0.
	AvailabilityDecayDays float64

	// FinancialTolerance is the relative rate overshoot at which the financial
	// score reaches 0.
	FinancialTolerance float64
	MissingRateScore   float64

	ExperienceBase            float64
	ExperienceSaturationYears float64
}

// DefaultPolicy returns the built-in scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		SamePostal:                LocationLevel{Name: LevelPostal, DistanceKm: 0, Score: 1.0},
		SameArea:                  LocationLevel{Name: LevelArea, DistanceKm: 10, Score: 0.85},
		SameDepartment:            LocationLevel{Name: LevelDepartment, DistanceKm: 30, Score: 0.6},
		Elsewhere:                 LocationLevel{Name: LevelOther, DistanceKm: 150, Score: 0.2},
		MissingLocationScore:      0.5,
		AvailabilityDecayDays:     30,
		FinancialTolerance:        0.25,
		MissingRateScore:          0.5,
		ExperienceBase:            0.6,
		ExperienceSaturationYears: 5,
	}
}

// Levels returns the location buckets from nearest to farthest.
func (p Policy) Levels() []LocationLevel {
	return []LocationLevel{p.SamePostal, p.SameArea, p.SameDepartment, p.Elsewhere}
}

// Validate checks the policy keeps every criterion monotone and bounded.
func (p Policy) Validate() error {
	levels := p.Levels()
	for i, l := range levels {
		if !unit(l.Score) {
			return fmt.Errorf("location level %s: score %g outside [0,1]", l.Name, l.Score)
		}
		if l.DistanceKm < 0 || math.IsNaN(l.DistanceKm) {
			return fmt.Errorf("location level %s: negative distance", l.Name)
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1]
		if l.DistanceKm < prev.DistanceKm {
			return fmt.Errorf("location level %s is nearer than %s", l.Name, prev.Name)
		}
		if l.Score > prev.Score {
			return fmt.Errorf("location level %s scores higher than %s", l.Name, prev.Name)
		}
	}
	if !unit(p.MissingLocationScore) || !unit(p.MissingRateScore) || !unit(p.ExperienceBase) {
		return fmt.Errorf("default scores must be within [0,1], got missing location %g, missing rate %g, experience base %g",
			p.MissingLocationScore, p.MissingRateScore, p.ExperienceBase)
	}
	if p.AvailabilityDecayDays <= 0 {
		return fmt.Errorf("availability decay must be positive, got %g", p.AvailabilityDecayDays)
	}
	if p.FinancialTolerance <= 0 {
		return fmt.Errorf("financial tolerance must be positive, got %g", p.FinancialTolerance)
	}
	if p.ExperienceSaturationYears < 0 {
		return fmt.Errorf("experience saturation must not be negative, got %g", p.ExperienceSaturationYears)
	}
	return nil
}

// Version is a content hash of the policy. Rankings computed under different
// policies never share a cache entry.
func (p Policy) Version() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%+v", p)))
	return hex.EncodeToString(sum[:8])
}

func unit(v float64) bool {
	return v >= 0 && v <= 1 && !math.IsNaN(v)
}
