package engine

import (
	"fmt"
	"sort"
	"time"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/matching/cache"
	"matching-workers/internal/matching/tenant"
	"matching-workers/internal/models"
)

// Request selects what a run ranks. An empty NeedID ranks every open need of
// the tenant. Weights overrides the tenant's configured weights for this run only.
type Request struct {
	TenantID     string
	NeedID       string
	Weights      *models.WeightConfig
	ForceRefresh bool
	Mode         models.ScorerMode
}

func (r Request) Validate() error {
	if !tenant.ValidTenant(r.TenantID) {
		return apperrors.NewInvalidRequestError("tenantId is required")
	}
	return nil
}

// NeedResult is the outcome of one need within a run.
type NeedResult struct {
	NeedID      string                   `json:"needId"`
	Fingerprint string                   `json:"fingerprint,omitempty"`
	Ranking     *models.MatchRanking     `json:"-"`
	Source      cache.Source             `json:"source,omitempty"`
	Shared      bool                     `json:"shared,omitempty"`
	Presented   int                      `json:"presented"`
	Persisted   bool                     `json:"persisted"`
	Failure     *apperrors.StandardError `json:"failure,omitempty"`
	Duration    time.Duration            `json:"-"`
}

func (r NeedResult) Failed() bool { return r.Failure != nil }

// CacheUsage counts how the run's rankings were obtained.
type CacheUsage struct {
	Hits     int `json:"hits"`
	Computed int `json:"computed"`
	Shared   int `json:"shared"`
}

type Summary struct {
	Success        bool              `json:"success"`
	Message        string            `json:"message"`
	TenantID       string            `json:"tenantId"`
	Mode           models.ScorerMode `json:"scorerMode"`
	NeedsProcessed int               `json:"needsProcessed"`
	NeedsFailed    int               `json:"needsFailed"`
	RankingsCount  int               `json:"rankingsCount"`
	Cache          CacheUsage        `json:"cache"`
	Results        []NeedResult      `json:"results"`
	Duration       time.Duration     `json:"-"`
}

// Result returns the result for needID.
func (s *Summary) Result(needID string) (NeedResult, bool) {
	for _, r := range s.Results {
		if r.NeedID == needID {
			return r, true
		}
	}
	return NeedResult{}, false
}

// Failures returns the failed results.
func (s *Summary) Failures() []NeedResult {
	var out []NeedResult
	for _, r := range s.Results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// newSummary aggregates per-need results. A run succeeds when nothing failed or
// at least one need was processed.
func newSummary(req Request, results []NeedResult) *Summary {
	sort.Slice(results, func(i, j int) bool { return results[i].NeedID < results[j].NeedID })
	s := &Summary{
		TenantID: req.TenantID,
		Mode:     req.Mode,
		Results:  results,
	}
	if s.Results == nil {
		s.Results = []NeedResult{}
	}
	for _, r := range results {
		if r.Failed() {
			s.NeedsFailed++
			continue
		}
		s.NeedsProcessed++
		s.RankingsCount += r.Presented
		switch {
		case r.Shared:
			s.Cache.Shared++
		case r.Source == cache.SourceComputed:
			s.Cache.Computed++
		default:
			s.Cache.Hits++
		}
	}
	s.Success = s.NeedsFailed == 0 || s.NeedsProcessed > 0

	switch {
	case len(results) == 0:
		s.Message = "no open need to match"
	case s.NeedsFailed == 0:
		s.Message = fmt.Sprintf("matched %d need(s), %d candidate(s) presented", s.NeedsProcessed, s.RankingsCount)
	default:
		s.Message = fmt.Sprintf("matched %d need(s), %d failed", s.NeedsProcessed, s.NeedsFailed)
	}
	return s
}
