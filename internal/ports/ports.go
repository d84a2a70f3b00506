// Package ports declares the collaborators the matching engine talks to.
package ports

import (
	"context"

	"matching-workers/internal/models"
)

// CandidatePoolProvider returns the active candidates visible to a tenant along
// with a version token that changes whenever that set changes.
type CandidatePoolProvider interface {
	CandidatePool(ctx context.Context, tenantID string) (models.CandidatePool, error)
}

// NeedProvider reads needs. GetNeed returns a NOT_FOUND error for missing needs and
// for needs owned by another tenant alike.
type NeedProvider interface {
	GetNeed(ctx context.Context, tenantID, needID string) (models.JobNeed, error)
	ListOpenNeeds(ctx context.Context, tenantID string) ([]models.JobNeed, error)
}

// WeightProvider returns the active weight configuration of a tenant.
type WeightProvider interface {
	Weights(ctx context.Context, tenantID string) (models.WeightConfig, error)
}

// ResultSink persists rankings and need summaries. NOT_FOUND outcomes are benign.
type ResultSink interface {
	SaveRanking(ctx context.Context, ranking *models.MatchRanking) error
	ApplyNeedPatch(ctx context.Context, tenantID, needID string, patch models.NeedPatch) error
}

// MatchingReader reads persisted shortlists.
type MatchingReader interface {
	ListByNeed(ctx context.Context, tenantID, needID string, q models.MatchingQuery) ([]models.StoredMatching, error)
	ExportByNeed(ctx context.Context, tenantID, needID string) ([]models.MatchedCandidate, error)
}
