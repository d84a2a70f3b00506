// Package score computes the five criterion scores of a (candidate, need) pair.
package score

import (
	"context"
	"math"
	"strings"
	"unicode"

	"matching-workers/internal/models"
)

// Scorer produces criterion scores for one pair. Implementations must not
// mutate their inputs.
type Scorer interface {
	Mode() models.ScorerMode
	// Version changes whenever the scorer would produce different scores for
	// the same inputs.
	Version() string
	Score(ctx context.Context, c models.Candidate, n models.JobNeed, w models.WeightConfig) (models.CriterionScores, error)
}

// Calculator is the deterministic rule-based scorer. It holds no mutable state.
type Calculator struct {
	policy  Policy
	version string
}

func NewCalculator(p Policy) (*Calculator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{policy: p, version: p.Version()}, nil
}

// MustCalculator panics on an invalid policy. Intended for the default policy and tests.
func MustCalculator(p Policy) *Calculator {
	c, err := NewCalculator(p)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Calculator) Mode() models.ScorerMode { return models.ScorerRuleBased }

func (c *Calculator) Version() string { return c.version }

func (c *Calculator) Policy() Policy { return c.policy }

func (c *Calculator) Score(_ context.Context, cand models.Candidate, need models.JobNeed, _ models.WeightConfig) (models.CriterionScores, error) {
	return c.Calculate(cand, need), nil
}

// Calculate is the pure scoring function.
func (c *Calculator) Calculate(cand models.Candidate, need models.JobNeed) models.CriterionScores {
	return models.CriterionScores{
		Skills:       Skills(cand.Skills, need.RequiredSkills),
		Location:     c.Location(cand, need),
		Availability: c.Availability(cand, need),
		Financial:    c.Financial(cand, need),
		Experience:   c.Experience(cand, need),
	}
}

// Skills is |required ∩ candidate| / |required|, comparing normalized skill names.
func Skills(candidate, required []string) float64 {
	req := SkillSet(required)
	if len(req) == 0 {
		return 1.0
	}
	have := SkillSet(candidate)
	matched := 0
	for s := range req {
		if _, ok := have[s]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(req))
}

// SkillSet normalizes skill names and drops empty ones.
func SkillSet(skills []string) map[string]struct{} {
	out := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if n := NormalizeSkill(s); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}

// NormalizeSkill lowercases and collapses whitespace.
func NormalizeSkill(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}

// Location scores the nearest matching bucket, or 0 when that bucket lies beyond
// the candidate's mobility radius.
func (c *Calculator) Location(cand models.Candidate, need models.JobNeed) float64 {
	level, ok := c.locate(cand, need)
	if !ok {
		return c.policy.MissingLocationScore
	}
	if level.DistanceKm > float64(cand.Mobility()) {
		return 0
	}
	return level.Score
}

func (c *Calculator) locate(cand models.Candidate, need models.JobNeed) (LocationLevel, bool) {
	cp, np := normalizePostal(cand.PostalCode), normalizePostal(need.PostalCode)
	cd, nd := department(cand.Department, cp), department(need.Department, np)
	if (cp == "" && cd == "") || (np == "" && nd == "") {
		return LocationLevel{}, false
	}
	switch {
	case cp != "" && cp == np:
		return c.policy.SamePostal, true
	case len(cp) >= 3 && len(np) >= 3 && cp[:3] == np[:3]:
		return c.policy.SameArea, true
	case cd != "" && cd == nd:
		return c.policy.SameDepartment, true
	}
	return c.policy.Elsewhere, true
}

func normalizePostal(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

func department(explicit, postal string) string {
	if d := strings.ToUpper(strings.TrimSpace(explicit)); d != "" {
		return d
	}
	if len(postal) >= 2 {
		return postal[:2]
	}
	return ""
}

// Availability is 1 when the candidate can start by the need's start date and
// decays linearly with the extra delay.
func (c *Calculator) Availability(cand models.Candidate, need models.JobNeed) float64 {
	if cand.Availability == models.AvailabilityOnMission {
		return 0
	}
	late := float64(cand.LeadDays() - need.LeadDays())
	if late <= 0 {
		return 1.0
	}
	return floor0(1 - late/c.policy.AvailabilityDecayDays)
}

// Financial is 1 when the candidate's rate fits the budget and decays linearly
// with the relative overshoot.
func (c *Calculator) Financial(cand models.Candidate, need models.JobNeed) float64 {
	if need.MaxHourlyRate == nil || *need.MaxHourlyRate <= 0 {
		return 1.0
	}
	if cand.MinHourlyRate == nil {
		return c.policy.MissingRateScore
	}
	rate, budget := *cand.MinHourlyRate, *need.MaxHourlyRate
	if rate <= budget {
		return 1.0
	}
	return floor0(1 - ((rate-budget)/budget)/c.policy.FinancialTolerance)
}

// Experience is 0 below the need's minimum, then rises from the base score to 1
// over the saturation window.
func (c *Calculator) Experience(cand models.Candidate, need models.JobNeed) float64 {
	var have, required float64
	if cand.ExperienceYears != nil {
		have = *cand.ExperienceYears
	}
	if need.MinExperienceYears != nil {
		required = *need.MinExperienceYears
	}
	if have < required {
		return 0
	}
	if c.policy.ExperienceSaturationYears <= 0 {
		return 1.0
	}
	extra := math.Min(1, (have-required)/c.policy.ExperienceSaturationYears)
	return c.policy.ExperienceBase + (1-c.policy.ExperienceBase)*extra
}

func floor0(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}
