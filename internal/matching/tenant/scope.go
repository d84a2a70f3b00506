// Package tenant confines every data access of a matching run to one tenant.
package tenant

import (
	"context"
	"strings"

	"github.com/google/uuid"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/matching/fingerprint"
	"matching-workers/internal/models"
	"matching-workers/internal/ports"
)

// Scope wraps the providers. Foreign and missing resources both come back as the
// same NOT_FOUND error; provider failures come back as UPSTREAM_UNAVAILABLE.
type Scope struct {
	needs ports.NeedProvider
	pool  ports.CandidatePoolProvider
}

func NewScope(needs ports.NeedProvider, pool ports.CandidatePoolProvider) *Scope {
	return &Scope{needs: needs, pool: pool}
}

// ValidTenant reports whether id looks like a tenant identifier.
func ValidTenant(id string) bool {
	return strings.TrimSpace(id) != ""
}

// Need returns the need when it exists and belongs to tenantID.
func (s *Scope) Need(ctx context.Context, tenantID, needID string) (models.JobNeed, error) {
	if _, err := uuid.Parse(needID); err != nil {
		return models.JobNeed{}, apperrors.NewNotFoundError("need")
	}
	need, err := s.needs.GetNeed(ctx, tenantID, needID)
	if err != nil {
		return models.JobNeed{}, upstream("needs", err)
	}
	if need.TenantID != tenantID || need.ID != needID {
		return models.JobNeed{}, apperrors.NewNotFoundError("need")
	}
	return need, nil
}

// OpenNeeds lists the tenant's open needs, dropping anything attributed elsewhere.
func (s *Scope) OpenNeeds(ctx context.Context, tenantID string) ([]models.JobNeed, error) {
	needs, err := s.needs.ListOpenNeeds(ctx, tenantID)
	if err != nil {
		return nil, upstream("needs", err)
	}
	out := needs[:0:0]
	for _, n := range needs {
		if n.TenantID == tenantID && n.IsOpen() {
			out = append(out, n)
		}
	}
	return out, nil
}

// Pool resolves the candidate pool visible to the tenant. A missing version is
// filled with a content hash.
func (s *Scope) Pool(ctx context.Context, tenantID string) (models.CandidatePool, error) {
	pool, err := s.pool.CandidatePool(ctx, tenantID)
	if err != nil {
		return models.CandidatePool{}, apperrors.NewUpstreamUnavailableError("candidate-pool", err)
	}
	if pool.Version == "" {
		pool.Version = fingerprint.PoolVersion(pool.Candidates)
	}
	return pool, nil
}

// CheckRanking rejects rankings attributed to another tenant or need.
func (s *Scope) CheckRanking(tenantID, needID string, r *models.MatchRanking) error {
	if r == nil || r.TenantID != tenantID || r.NeedID != needID {
		return apperrors.NewNotFoundError("ranking")
	}
	return nil
}

func upstream(provider string, err error) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFoundError("need")
	}
	return apperrors.NewUpstreamUnavailableError(provider, err)
}
