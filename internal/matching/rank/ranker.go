// Package rank turns criterion scores into an ordered, explained shortlist.
package rank

import (
	"context"
	"fmt"
	"sort"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/matching/score"
	"matching-workers/internal/models"
)

const (
	DefaultStrengthThreshold = 0.75
	DefaultWeaknessThreshold = 0.35
	DefaultPresentationCap   = 20
)

// Options tune tagging and presentation. Zero values use the defaults.
type Options struct {
	StrengthThreshold float64
	WeaknessThreshold float64
	PresentationCap   int
}

func (o Options) withDefaults() Options {
	if o.StrengthThreshold == 0 {
		o.StrengthThreshold = DefaultStrengthThreshold
	}
	if o.WeaknessThreshold == 0 {
		o.WeaknessThreshold = DefaultWeaknessThreshold
	}
	if o.PresentationCap == 0 {
		o.PresentationCap = DefaultPresentationCap
	}
	return o
}

// Ranker is stateless and safe for concurrent use.
type Ranker struct {
	opts Options
}

func New(opts Options) *Ranker {
	return &Ranker{opts: opts.withDefaults()}
}

func (r *Ranker) Options() Options { return r.opts }

// Rank filters out ineligible candidates, scores the rest with scorer and returns
// every survivor in rank order. The returned ranking has no fingerprint or
// versions yet. Scorer errors and panics come back as MATCH_COMPUTE_FAILED.
func (r *Ranker) Rank(ctx context.Context, scorer score.Scorer, candidates []models.Candidate, need models.JobNeed, weights models.WeightConfig) (ranking *models.MatchRanking, err error) {
	defer func() {
		if p := recover(); p != nil {
			ranking = nil
			err = apperrors.NewComputeFailedError(need.ID, fmt.Errorf("panic while ranking: %v", p))
		}
	}()

	ranked := make([]models.ScoreBreakdown, 0, len(candidates))
	for _, c := range candidates {
		if !c.Eligible() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scores, err := scorer.Score(ctx, c, need, weights)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, apperrors.NewComputeFailedError(need.ID, fmt.Errorf("candidate %s: %w", c.ID, err))
		}
		ranked = append(ranked, r.breakdown(c.ID, scores, weights))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return &models.MatchRanking{
		TenantID: need.TenantID,
		NeedID:   need.ID,
		Mode:     scorer.Mode(),
		Ranked:   ranked,
		Limit:    r.limit(ranked, need),
	}, nil
}

func (r *Ranker) breakdown(candidateID string, scores models.CriterionScores, weights models.WeightConfig) models.ScoreBreakdown {
	b := models.ScoreBreakdown{
		CandidateID: candidateID,
		Scores:      scores,
		Total:       weights.Aggregate(scores),
	}
	b.Strengths, b.Weaknesses = r.Tags(scores)
	return b
}

// Tags derives the explanation tags from the scores alone.
func (r *Ranker) Tags(scores models.CriterionScores) (strengths, weaknesses []models.Criterion) {
	strengths, weaknesses = []models.Criterion{}, []models.Criterion{}
	for _, c := range models.Criteria {
		v := scores.Get(c)
		switch {
		case v >= r.opts.StrengthThreshold:
			strengths = append(strengths, c)
		case v <= r.opts.WeaknessThreshold:
			weaknesses = append(weaknesses, c)
		}
	}
	return strengths, weaknesses
}

// limit is the presented prefix: the desired count, capped, and cut where the
// display score drops below the need's threshold.
func (r *Ranker) limit(ranked []models.ScoreBreakdown, need models.JobNeed) int {
	n := need.Desired()
	if r.opts.PresentationCap > 0 && n > r.opts.PresentationCap {
		n = r.opts.PresentationCap
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	for i := 0; i < n; i++ {
		if models.DisplayScore(ranked[i].Total) < need.ScoreThreshold {
			return i
		}
	}
	return n
}
