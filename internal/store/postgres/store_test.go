package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

const (
	testNeedID = "0e8f5a3c-7a0d-4a4e-9d5e-3b1c2f4a6d01"
	testCandA  = "9b2e4c1a-1f3d-4b6e-8a7c-5d9e0f1a2b01"
	testCandB  = "9b2e4c1a-1f3d-4b6e-8a7c-5d9e0f1a2b02"
)

var fixedNow = time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := New(db,
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(logger.NewTestLogger(t)),
	)
	return store, mock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func candidateRows() *sqlmock.Rows {
	return sqlmock.NewRows(candidateColumns).
		AddRow(testCandA, "EXT-1", "Alice", "Martin", "alice@example.com", "0600000000", "Paris",
			"75011", "75", 20, "{python,django}", 6.0,
			"immediate", day(2026, 1, 25), 45.0, true, false).
		AddRow(testCandB, nil, "Bob", "Durand", nil, nil, nil,
			nil, nil, nil, "{}", nil,
			"en mission", nil, nil, true, false)
}

func needRow(status string) *sqlmock.Rows {
	return sqlmock.NewRows(needColumns).
		AddRow(testNeedID, "tenant-a", "Python developer", "{Python}", 2.0, 50.0,
			"75011", "75", day(2026, 1, 17), 3, status, 40.0,
			0, nil, nil)
}

func sampleRanking() *models.MatchRanking {
	return &models.MatchRanking{
		Fingerprint: "match:tenant-a:abc",
		TenantID:    "tenant-a",
		NeedID:      testNeedID,
		Mode:        models.ScorerRuleBased,
		Ranked: []models.ScoreBreakdown{
			{CandidateID: testCandA, Total: 0.91, Rank: 1, Strengths: []models.Criterion{models.CriterionSkills}},
			{CandidateID: testCandB, Total: 0.62, Rank: 2},
			{CandidateID: "9b2e4c1a-1f3d-4b6e-8a7c-5d9e0f1a2b03", Total: 0.2, Rank: 3},
		},
		Limit: 2,
	}
}

// ==========================
// Candidate pool
// ==========================

func TestStore_CandidatePool(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`SELECT id, external_id, .+ FROM candidates WHERE active = \$1 AND blacklisted = \$2 AND \(visible_to IS NULL OR cardinality\(visible_to\) = 0 OR \$3 = ANY\(visible_to\)\) ORDER BY id`).
		WithArgs(true, false, "tenant-a").
		WillReturnRows(candidateRows())

	pool, err := store.CandidatePool(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Len(t, pool.Candidates, 2)
	assert.NotEmpty(t, pool.Version)

	alice := pool.Candidates[0]
	assert.Equal(t, []string{"python", "django"}, alice.Skills)
	assert.Equal(t, "Paris", alice.City)
	require.NotNil(t, alice.MobilityKm)
	assert.Equal(t, 20, *alice.MobilityKm)
	assert.Equal(t, models.AvailabilityInDays, alice.Availability)
	assert.Equal(t, 15, alice.LeadDays())
	require.NotNil(t, alice.MinHourlyRate)
	assert.Equal(t, 45.0, *alice.MinHourlyRate)

	bob := pool.Candidates[1]
	assert.Equal(t, models.AvailabilityOnMission, bob.Availability)
	assert.Nil(t, bob.ExperienceYears)
	assert.Equal(t, models.DefaultMobilityKm, bob.Mobility())
	assert.False(t, bob.Eligible())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CandidatePoolQueryError(t *testing.T) {
	store, mock := setupStore(t)
	mock.ExpectQuery(`FROM candidates`).WillReturnError(errors.New("connection reset"))

	_, err := store.CandidatePool(context.Background(), "tenant-a")
	assert.ErrorContains(t, err, "query candidate pool")
}

// ==========================
// Needs
// ==========================

func TestStore_GetNeed(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`SELECT id, tenant_id, .+ FROM needs WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(testNeedID, "tenant-a").
		WillReturnRows(needRow("ouvert"))

	need, err := store.GetNeed(context.Background(), "tenant-a", testNeedID)
	require.NoError(t, err)
	assert.Equal(t, models.NeedStatusOpen, need.Status)
	assert.Equal(t, []string{"Python"}, need.RequiredSkills)
	assert.Equal(t, 7, need.LeadDays())
	assert.Equal(t, 3, need.Desired())
	assert.Nil(t, need.BestScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetNeedNotFound(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`FROM needs WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(testNeedID, "tenant-b").
		WillReturnRows(sqlmock.NewRows(needColumns))

	_, foreignErr := store.GetNeed(context.Background(), "tenant-b", testNeedID)
	_, malformedErr := store.GetNeed(context.Background(), "tenant-b", "42")

	assert.True(t, apperrors.IsNotFound(foreignErr))
	assert.Equal(t, foreignErr.Error(), malformedErr.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListOpenNeeds(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`FROM needs WHERE status IN \(\$1,\$2\) AND tenant_id = \$3 ORDER BY id`).
		WithArgs("open", "ouvert", "tenant-a").
		WillReturnRows(needRow("open"))

	needs, err := store.ListOpenNeeds(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Len(t, needs, 1)
	assert.True(t, needs[0].IsOpen())
}

func TestStore_UnknownStatusIsClosed(t *testing.T) {
	store, mock := setupStore(t)
	mock.ExpectQuery(`FROM needs`).WillReturnRows(needRow("archived"))

	need, err := store.GetNeed(context.Background(), "tenant-a", testNeedID)
	require.NoError(t, err)
	assert.False(t, need.IsOpen())
}

func TestStore_ApplyNeedPatch(t *testing.T) {
	ranking := sampleRanking()
	patch := models.SummaryPatch(ranking, fixedNow)

	store, mock := setupStore(t)
	mock.ExpectExec(`UPDATE needs SET best_score = \$1, last_analysis_at = \$2, matchings_count = \$3, updated_at = \$4 WHERE id = \$5 AND tenant_id = \$6`).
		WithArgs(91.0, fixedNow, 2, fixedNow, testNeedID, "tenant-a").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.ApplyNeedPatch(context.Background(), "tenant-a", testNeedID, patch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ApplyNeedPatchOutcomes(t *testing.T) {
	closed := models.NeedStatusClosed
	badCount := 0

	tests := []struct {
		name   string
		needID string
		patch  models.NeedPatch
		mock   func(mock sqlmock.Sqlmock)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "foreign need",
			needID: testNeedID,
			patch:  models.NeedPatch{Status: &closed},
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE needs SET status = \$1, updated_at = \$2`).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsNotFound(err)) },
		},
		{
			name:   "invalid patch",
			needID: testNeedID,
			patch:  models.NeedPatch{DesiredCount: &badCount},
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
			},
		},
		{
			name:   "empty patch",
			needID: testNeedID,
			check:  func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name:   "database failure",
			needID: testNeedID,
			patch:  models.NeedPatch{Status: &closed},
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE needs`).WillReturnError(errors.New("deadlock detected"))
			},
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setupStore(t)
			if tt.mock != nil {
				tt.mock(mock)
			}
			tt.check(t, store.ApplyNeedPatch(context.Background(), "tenant-a", tt.needID, tt.patch))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Shortlists
// ==========================

func TestStore_SaveRankingReplacesShortlist(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM needs WHERE id = \$1 AND tenant_id = \$2 FOR UPDATE`).
		WithArgs(testNeedID, "tenant-a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testNeedID))
	mock.ExpectExec(`DELETE FROM matchings WHERE need_id = \$1 AND tenant_id = \$2`).
		WithArgs(testNeedID, "tenant-a").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(`INSERT INTO matchings \(id,tenant_id,need_id,candidate_id,rank,.+\) VALUES \(.+\),\(.+\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, store.SaveRanking(context.Background(), sampleRanking()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveRankingEmptyShortlistOnlyDeletes(t *testing.T) {
	store, mock := setupStore(t)
	ranking := sampleRanking()
	ranking.Limit = 0

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testNeedID))
	mock.ExpectExec(`DELETE FROM matchings`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	require.NoError(t, store.SaveRanking(context.Background(), ranking))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveRankingFailures(t *testing.T) {
	tests := []struct {
		name  string
		mock  func(mock sqlmock.Sqlmock)
		check func(t *testing.T, err error)
	}{
		{
			name: "foreign need",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectRollback()
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsNotFound(err)) },
		},
		{
			name: "candidate or need removed",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testNeedID))
				mock.ExpectExec(`DELETE FROM matchings`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`INSERT INTO matchings`).WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
				mock.ExpectRollback()
			},
			check: func(t *testing.T, err error) { assert.True(t, apperrors.IsNotFound(err)) },
		},
		{
			name: "insert failure",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(testNeedID))
				mock.ExpectExec(`DELETE FROM matchings`).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec(`INSERT INTO matchings`).WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed))
			},
		},
		{
			name: "begin failure",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(sql.ErrConnDone)
			},
			check: func(t *testing.T, err error) {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setupStore(t)
			tt.mock(mock)
			tt.check(t, store.SaveRanking(context.Background(), sampleRanking()))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func matchingRows() *sqlmock.Rows {
	return sqlmock.NewRows(matchingColumns).
		AddRow("m-1", "tenant-a", testNeedID, testCandA, 1, 91.0, 100.0, 100.0, 50.0, 100.0, 100.0,
			"{skills,location}", "{}", false, "match:tenant-a:abc", fixedNow).
		AddRow("m-2", "tenant-a", testNeedID, testCandB, 2, 62.0, 100.0, 20.0, 0.0, 50.0, 60.0,
			"{skills}", "{availability}", false, "match:tenant-a:abc", fixedNow)
}

func TestStore_ListByNeed(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`SELECT 1 FROM needs WHERE id = \$1 AND tenant_id = \$2`).
		WithArgs(testNeedID, "tenant-a").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT id, tenant_id, need_id, .+ FROM matchings WHERE need_id = \$1 AND tenant_id = \$2 AND score_total >= \$3 ORDER BY rank LIMIT 20`).
		WithArgs(testNeedID, "tenant-a", 50.0).
		WillReturnRows(matchingRows())

	got, err := store.ListByNeed(context.Background(), "tenant-a", testNeedID, models.MatchingQuery{MinScore: 50})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, testCandA, got[0].Breakdown.CandidateID)
	assert.Equal(t, 91.0, got[0].Breakdown.ScoreTotal)
	assert.Equal(t, []models.Criterion{models.CriterionSkills, models.CriterionLocation}, got[0].Breakdown.Strengths)
	assert.Equal(t, []models.Criterion{}, got[0].Breakdown.Weaknesses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListByNeedCapsLimit(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`SELECT 1 FROM needs`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`LIMIT 100`).WillReturnRows(sqlmock.NewRows(matchingColumns))

	got, err := store.ListByNeed(context.Background(), "tenant-a", testNeedID, models.MatchingQuery{Limit: 5000})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListByNeedForeignNeed(t *testing.T) {
	store, mock := setupStore(t)
	mock.ExpectQuery(`SELECT 1 FROM needs`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	_, err := store.ListByNeed(context.Background(), "tenant-b", testNeedID, models.MatchingQuery{})
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ExportByNeed(t *testing.T) {
	store, mock := setupStore(t)

	cols := append(append([]string{}, matchingColumns...), candidateColumns...)
	rows := sqlmock.NewRows(cols).AddRow(
		"m-1", "tenant-a", testNeedID, testCandA, 1, 87.5, 100.0, 100.0, 50.0, 100.0, 100.0,
		"{skills}", "{}", true, "match:tenant-a:abc", fixedNow,
		testCandA, "EXT-1", "Alice", "Martin", "alice@example.com", "0600000000", "Paris",
		"75011", "75", 20, "{python}", 3.0,
		"immediate", nil, 15.0, true, false,
	)

	mock.ExpectQuery(`SELECT 1 FROM needs`).WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`SELECT m\.id, .+, c\.id, .+ FROM matchings m JOIN candidates c ON c\.id = m\.candidate_id WHERE m\.need_id = \$1 AND m\.tenant_id = \$2 ORDER BY m\.rank`).
		WithArgs(testNeedID, "tenant-a").
		WillReturnRows(rows)

	got, err := store.ExportByNeed(context.Background(), "tenant-a", testNeedID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Matching.Assisted)

	row := got[0].ExportRow()
	assert.Equal(t, "87.5%", row.Score)
	assert.Equal(t, "Alice Martin", row.Candidate)
	assert.Equal(t, "Paris (75)", row.Location)
	assert.Equal(t, "3.0 years", row.Experience)
	assert.Equal(t, "15.00", row.MinHourlyRate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Migrations
// ==========================

func TestMigrations_Embedded(t *testing.T) {
	data, err := fs.ReadFile(Migrations(), "00001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- +goose Up")
	assert.Contains(t, string(data), "-- +goose Down")
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS matchings")
}
