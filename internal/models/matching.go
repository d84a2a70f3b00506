// internal/models/matching.go
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ScorerMode selects the scorer implementation used for a run.
type ScorerMode string

const (
	ScorerRuleBased ScorerMode = "rule-based"
	ScorerAssisted  ScorerMode = "assisted"
)

// ParseScorerMode maps a request value to a mode; empty means rule-based.
func ParseScorerMode(raw string) (ScorerMode, error) {
	switch raw {
	case "", string(ScorerRuleBased), "rule_based", "rules":
		return ScorerRuleBased, nil
	case string(ScorerAssisted), "ai":
		return ScorerAssisted, nil
	}
	return "", fmt.Errorf("unknown scorer mode %q", raw)
}

// CriterionScores holds the five criterion scores, each in [0,1].
type CriterionScores struct {
	Skills       float64 `json:"skills"`
	Location     float64 `json:"location"`
	Availability float64 `json:"availability"`
	Financial    float64 `json:"financial"`
	Experience   float64 `json:"experience"`
}

func (s CriterionScores) Get(c Criterion) float64 {
	switch c {
	case CriterionSkills:
		return s.Skills
	case CriterionLocation:
		return s.Location
	case CriterionAvailability:
		return s.Availability
	case CriterionFinancial:
		return s.Financial
	case CriterionExperience:
		return s.Experience
	}
	return 0
}

// Set returns a copy with the criterion replaced by v clamped to [0,1].
func (s CriterionScores) Set(c Criterion, v float64) CriterionScores {
	v = clamp01(v)
	switch c {
	case CriterionSkills:
		s.Skills = v
	case CriterionLocation:
		s.Location = v
	case CriterionAvailability:
		s.Availability = v
	case CriterionFinancial:
		s.Financial = v
	case CriterionExperience:
		s.Experience = v
	}
	return s
}

// ScoreBreakdown is the result for one (need, candidate) pair.
type ScoreBreakdown struct {
	CandidateID string          `json:"candidateId"`
	Scores      CriterionScores `json:"scores"`
	Total       float64         `json:"total"`
	Rank        int             `json:"rank"`
	Strengths   []Criterion     `json:"strengths"`
	Weaknesses  []Criterion     `json:"weaknesses"`
}

// BreakdownView is the display contract consumed by exports and job outputs:
// every score is on the 0-100 scale.
type BreakdownView struct {
	CandidateID  string      `json:"candidateId"`
	ScoreTotal   float64     `json:"scoreTotal"`
	Skills       float64     `json:"scoreSkills"`
	Location     float64     `json:"scoreLocation"`
	Availability float64     `json:"scoreAvailability"`
	Financial    float64     `json:"scoreFinancial"`
	Experience   float64     `json:"scoreExperience"`
	Rank         int         `json:"rank"`
	Strengths    []Criterion `json:"strengths"`
	Weaknesses   []Criterion `json:"weaknesses"`
}

// View converts the breakdown to its display form.
func (b ScoreBreakdown) View() BreakdownView {
	return BreakdownView{
		CandidateID:  b.CandidateID,
		ScoreTotal:   DisplayScore(b.Total),
		Skills:       DisplayScore(b.Scores.Skills),
		Location:     DisplayScore(b.Scores.Location),
		Availability: DisplayScore(b.Scores.Availability),
		Financial:    DisplayScore(b.Scores.Financial),
		Experience:   DisplayScore(b.Scores.Experience),
		Rank:         b.Rank,
		Strengths:    nonNil(b.Strengths),
		Weaknesses:   nonNil(b.Weaknesses),
	}
}

// DisplayScore maps a [0,1] score to the 0-100 scale with two decimals.
func DisplayScore(v float64) float64 {
	return math.Round(clamp01(v)*10000) / 100
}

// MatchRanking is the full ordered result for one fingerprint. Ranked always holds
// every eligible candidate; Limit marks the presented prefix.
type MatchRanking struct {
	Fingerprint   string           `json:"fingerprint"`
	TenantID      string           `json:"tenantId"`
	NeedID        string           `json:"needId"`
	NeedVersion   string           `json:"needVersion"`
	PoolVersion   string           `json:"poolVersion"`
	WeightVersion string           `json:"weightVersion"`
	Mode          ScorerMode       `json:"scorerMode"`
	Ranked        []ScoreBreakdown `json:"ranked"`
	Limit         int              `json:"limit"`
	ComputedAt    time.Time        `json:"computedAt"`
}

// Presented returns the shortlist shown to users and persisted.
func (r *MatchRanking) Presented() []ScoreBreakdown {
	if r == nil {
		return nil
	}
	limit := r.Limit
	if limit < 0 {
		limit = 0
	}
	if limit > len(r.Ranked) {
		limit = len(r.Ranked)
	}
	return r.Ranked[:limit]
}

// Best returns the best presented breakdown.
func (r *MatchRanking) Best() (ScoreBreakdown, bool) {
	p := r.Presented()
	if len(p) == 0 {
		return ScoreBreakdown{}, false
	}
	return p[0], true
}

// Empty reports whether no candidate survived filtering.
func (r *MatchRanking) Empty() bool {
	return r == nil || len(r.Ranked) == 0
}

// StoredMatching is a persisted shortlist row.
type StoredMatching struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId"`
	NeedID      string        `json:"needId"`
	Breakdown   BreakdownView `json:"breakdown"`
	Assisted    bool          `json:"assisted"`
	Fingerprint string        `json:"fingerprint"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ExportRow is one line of a matching export.
type ExportRow struct {
	Rank          int    `json:"rank"`
	Score         string `json:"score"`
	Candidate     string `json:"candidate"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Location      string `json:"location"`
	Experience    string `json:"experience"`
	Availability  string `json:"availability"`
	MinHourlyRate string `json:"minHourlyRate"`
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func nonNil(c []Criterion) []Criterion {
	if c == nil {
		return []Criterion{}
	}
	return c
}

// MatchedCandidate joins a stored matching with the candidate it refers to.
type MatchedCandidate struct {
	Matching  StoredMatching `json:"matching"`
	Candidate Candidate      `json:"candidate"`
}

// ExportRow renders a matched candidate for reporting collaborators.
func (m MatchedCandidate) ExportRow() ExportRow {
	c := m.Candidate
	row := ExportRow{
		Rank:          m.Matching.Breakdown.Rank,
		Score:         fmt.Sprintf("%.1f%%", m.Matching.Breakdown.ScoreTotal),
		Candidate:     c.FullName(),
		Email:         c.Email,
		Phone:         c.Phone,
		Location:      c.City,
		Experience:    "N/A",
		Availability:  availabilityLabel(c),
		MinHourlyRate: "N/A",
	}
	if c.Department != "" {
		row.Location = strings.TrimSpace(fmt.Sprintf("%s (%s)", c.City, c.Department))
	}
	if c.ExperienceYears != nil {
		row.Experience = fmt.Sprintf("%.1f years", *c.ExperienceYears)
	}
	if c.MinHourlyRate != nil {
		row.MinHourlyRate = fmt.Sprintf("%.2f", *c.MinHourlyRate)
	}
	return row
}

func availabilityLabel(c Candidate) string {
	switch c.Availability {
	case AvailabilityInDays:
		return fmt.Sprintf("in %d days", c.LeadDays())
	case AvailabilityOnMission:
		return "on mission"
	}
	return "immediate"
}

// MatchingQuery filters stored matchings of a need.
type MatchingQuery struct {
	Limit    int
	MinScore float64 // 0-100 scale
}

const (
	DefaultMatchingLimit = 20
	MaxMatchingLimit     = 100
)

// Normalized applies the default and maximum limits.
func (q MatchingQuery) Normalized() MatchingQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultMatchingLimit
	}
	if q.Limit > MaxMatchingLimit {
		q.Limit = MaxMatchingLimit
	}
	if q.MinScore < 0 {
		q.MinScore = 0
	}
	return q
}
