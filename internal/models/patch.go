// internal/models/patch.go
package models

import (
	"fmt"
	"time"
)

// NeedField enumerates the need columns a patch may touch.
type NeedField string

const (
	NeedFieldStatus         NeedField = "status"
	NeedFieldScoreThreshold NeedField = "score_threshold"
	NeedFieldDesiredCount   NeedField = "desired_count"
	NeedFieldMatchingsCount NeedField = "matchings_count"
	NeedFieldBestScore      NeedField = "best_score"
	NeedFieldLastAnalysisAt NeedField = "last_analysis_at"
)

// NeedPatch is a partial update of a need. Nil fields are left untouched.
// ClearBestScore writes NULL to best_score.
type NeedPatch struct {
	Status         *NeedStatus
	ScoreThreshold *float64
	DesiredCount   *int
	MatchingsCount *int
	BestScore      *float64
	ClearBestScore bool
	LastAnalysisAt *time.Time
}

// SummaryPatch builds the post-run summary update for a ranking.
func SummaryPatch(r *MatchRanking, at time.Time) NeedPatch {
	count := len(r.Presented())
	p := NeedPatch{MatchingsCount: &count, LastAnalysisAt: &at}
	if best, ok := r.Best(); ok {
		score := DisplayScore(best.Total)
		p.BestScore = &score
	} else {
		p.ClearBestScore = true
	}
	return p
}

// IsEmpty reports whether the patch changes nothing.
func (p NeedPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields returns the columns touched by the patch and their values.
func (p NeedPatch) Fields() map[NeedField]interface{} {
	out := make(map[NeedField]interface{})
	if p.Status != nil {
		out[NeedFieldStatus] = string(*p.Status)
	}
	if p.ScoreThreshold != nil {
		out[NeedFieldScoreThreshold] = *p.ScoreThreshold
	}
	if p.DesiredCount != nil {
		out[NeedFieldDesiredCount] = *p.DesiredCount
	}
	if p.MatchingsCount != nil {
		out[NeedFieldMatchingsCount] = *p.MatchingsCount
	}
	if p.BestScore != nil {
		out[NeedFieldBestScore] = *p.BestScore
	} else if p.ClearBestScore {
		out[NeedFieldBestScore] = nil
	}
	if p.LastAnalysisAt != nil {
		out[NeedFieldLastAnalysisAt] = p.LastAnalysisAt.UTC()
	}
	return out
}

// Validate rejects values outside their domain.
func (p NeedPatch) Validate() error {
	if p.Status != nil && *p.Status != NeedStatusOpen && *p.Status != NeedStatusClosed {
		return fmt.Errorf("invalid status %q", *p.Status)
	}
	if p.ScoreThreshold != nil && (*p.ScoreThreshold < 0 || *p.ScoreThreshold > 100) {
		return fmt.Errorf("score threshold %g outside [0,100]", *p.ScoreThreshold)
	}
	if p.DesiredCount != nil && *p.DesiredCount < 1 {
		return fmt.Errorf("desired count must be positive, got %d", *p.DesiredCount)
	}
	if p.MatchingsCount != nil && *p.MatchingsCount < 0 {
		return fmt.Errorf("matchings count must not be negative, got %d", *p.MatchingsCount)
	}
	return nil
}

// Apply returns a copy of the need with the patch applied.
func (p NeedPatch) Apply(n JobNeed) JobNeed {
	if p.Status != nil {
		n.Status = *p.Status
	}
	if p.ScoreThreshold != nil {
		n.ScoreThreshold = *p.ScoreThreshold
	}
	if p.DesiredCount != nil {
		n.DesiredCount = *p.DesiredCount
	}
	if p.MatchingsCount != nil {
		n.MatchingsCount = *p.MatchingsCount
	}
	if p.BestScore != nil {
		v := *p.BestScore
		n.BestScore = &v
	} else if p.ClearBestScore {
		n.BestScore = nil
	}
	if p.LastAnalysisAt != nil {
		t := *p.LastAnalysisAt
		n.LastAnalysisAt = &t
	}
	return n
}
