// internal/workers/matching/export-need-matchings/handler_test.go
package exportneedmatchings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/common/validation"
	"matching-workers/internal/models"
	"matching-workers/pkg/registry"
)

// ==========================
// Test Helper Functions
// ==========================

type stubExporter struct {
	rows   []models.MatchedCandidate
	err    error
	tenant string
}

func (s *stubExporter) ExportByNeed(_ context.Context, tenantID, _ string) ([]models.MatchedCandidate, error) {
	s.tenant = tenantID
	return s.rows, s.err
}

func f64(v float64) *float64 { return &v }

func setupHandler(t *testing.T, exp *stubExporter) *Handler {
	reg, err := registry.Builtin()
	require.NoError(t, err)
	v, err := validation.NewValidator(reg)
	require.NoError(t, err)

	h := NewHandler(LoadConfig(), exp, v, logger.NewTestLogger(t))
	h.now = func() time.Time { return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) }
	return h
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_RendersRows(t *testing.T) {
	exp := &stubExporter{rows: []models.MatchedCandidate{
		{
			Matching: models.StoredMatching{Breakdown: models.BreakdownView{Rank: 1, ScoreTotal: 87.5}},
			Candidate: models.Candidate{
				FirstName: "Alice", LastName: "Martin", Email: "alice@example.com", Phone: "0600000000",
				City: "Paris", Department: "75", ExperienceYears: f64(3), MinHourlyRate: f64(15),
				Availability: models.AvailabilityImmediate,
			},
		},
		{
			Matching:  models.StoredMatching{Breakdown: models.BreakdownView{Rank: 2, ScoreTotal: 61.34}},
			Candidate: models.Candidate{FirstName: "Bob", City: "Lyon", Availability: models.AvailabilityInDays, AvailableInDays: 7},
		},
	}}
	h := setupHandler(t, exp)

	out, err := h.Execute(context.Background(), &Input{TenantID: "tenant-a", NeedID: "need-1"})
	require.NoError(t, err)

	assert.Equal(t, "tenant-a", exp.tenant)
	assert.Equal(t, 2, out.Count)
	assert.Len(t, out.Columns, 9)
	assert.Equal(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC), out.GeneratedAt)

	first := out.Rows[0]
	assert.Equal(t, models.ExportRow{
		Rank: 1, Score: "87.5%", Candidate: "Alice Martin", Email: "alice@example.com", Phone: "0600000000",
		Location: "Paris (75)", Experience: "3.0 years", Availability: "immediate", MinHourlyRate: "15.00",
	}, first)

	second := out.Rows[1]
	assert.Equal(t, "61.3%", second.Score)
	assert.Equal(t, "N/A", second.Experience)
	assert.Equal(t, "N/A", second.MinHourlyRate)
	assert.Equal(t, "in 7 days", second.Availability)
}

func TestHandler_Execute_EmptyShortlist(t *testing.T) {
	h := setupHandler(t, &stubExporter{})

	out, err := h.Execute(context.Background(), &Input{TenantID: "tenant-a", NeedID: "need-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.NotNil(t, out.Rows)
}

func TestHandler_Execute_NotFoundPassesThrough(t *testing.T) {
	h := setupHandler(t, &stubExporter{err: apperrors.NewNotFoundError("need")})

	_, err := h.Execute(context.Background(), &Input{TenantID: "tenant-b", NeedID: "need-1"})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestHandler_ParseInput(t *testing.T) {
	h := setupHandler(t, &stubExporter{})

	in, err := h.ParseInput(`{"tenantId":"tenant-a","needId":"need-1"}`)
	require.NoError(t, err)
	assert.Equal(t, "need-1", in.NeedID)

	_, err = h.ParseInput(`{"tenantId":"tenant-a"}`)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
}
