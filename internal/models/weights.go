// internal/models/weights.go
package models

import (
	"fmt"
	"math"
)

// Criterion names one of the five scoring criteria.
type Criterion string

const (
	CriterionSkills       Criterion = "skills"
	CriterionLocation     Criterion = "location"
	CriterionAvailability Criterion = "availability"
	CriterionFinancial    Criterion = "financial"
	CriterionExperience   Criterion = "experience"
)

// Criteria lists every criterion in presentation order.
var Criteria = []Criterion{
	CriterionSkills,
	CriterionLocation,
	CriterionAvailability,
	CriterionFinancial,
	CriterionExperience,
}

const DefaultWeightTotal = 100.0

const weightSumTolerance = 1e-6

// WeightConfig holds the named weights of the five criteria.
type WeightConfig struct {
	Name         string  `json:"name"`
	Version      string  `json:"version"`
	Total        float64 `json:"total"`
	Skills       float64 `json:"skills"`
	Location     float64 `json:"location"`
	Availability float64 `json:"availability"`
	Financial    float64 `json:"financial"`
	Experience   float64 `json:"experience"`
}

// DefaultWeights is used when neither the request nor the configuration provides weights.
func DefaultWeights() WeightConfig {
	return WeightConfig{
		Name:         "default",
		Total:        DefaultWeightTotal,
		Skills:       35,
		Location:     20,
		Availability: 15,
		Financial:    15,
		Experience:   15,
	}
}

// Weight returns the weight of a criterion.
func (w WeightConfig) Weight(c Criterion) float64 {
	switch c {
	case CriterionSkills:
		return w.Skills
	case CriterionLocation:
		return w.Location
	case CriterionAvailability:
		return w.Availability
	case CriterionFinancial:
		return w.Financial
	case CriterionExperience:
		return w.Experience
	}
	return 0
}

// Sum is the sum of the five weights.
func (w WeightConfig) Sum() float64 {
	var sum float64
	for _, c := range Criteria {
		sum += w.Weight(c)
	}
	return sum
}

// Validate checks the weights resolve to a usable positive-sum weighting. When Total
// is set the weights must add up to it.
func (w WeightConfig) Validate() error {
	for _, c := range Criteria {
		v := w.Weight(c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %s is not a finite number", c)
		}
		if v < 0 {
			return fmt.Errorf("weight %s is negative (%g)", c, v)
		}
	}
	sum := w.Sum()
	if sum <= 0 {
		return fmt.Errorf("weights sum to %g, expected a positive sum", sum)
	}
	if w.Total > 0 && math.Abs(sum-w.Total) > weightSumTolerance {
		return fmt.Errorf("weights sum to %g, expected %g", sum, w.Total)
	}
	return nil
}

// Aggregate computes Σ(score×weight)/Σ(weights). Callers validate the weights first.
func (w WeightConfig) Aggregate(s CriterionScores) float64 {
	sum := w.Sum()
	if sum <= 0 {
		return 0
	}
	var total float64
	for _, c := range Criteria {
		total += s.Get(c) * w.Weight(c)
	}
	return clamp01(total / sum)
}
