package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/models"
)

var needColumns = []string{
	"id", "tenant_id", "title", "required_skills", "min_experience_years", "max_hourly_rate",
	"postal_code", "department", "start_date", "desired_count", "status", "score_threshold",
	"matchings_count", "best_score", "last_analysis_at",
}

// openStatuses are the stored labels of an open need.
var openStatuses = []string{string(models.NeedStatusOpen), "ouvert"}

func (s *Store) GetNeed(ctx context.Context, tenantID, needID string) (models.JobNeed, error) {
	if !validID(needID) {
		return models.JobNeed{}, apperrors.NewNotFoundError("need")
	}
	query, args, err := s.sb.Select(needColumns...).
		From("needs").
		Where(sq.Eq{"id": needID, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return models.JobNeed{}, fmt.Errorf("build need query: %w", err)
	}

	need, err := s.scanNeed(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return models.JobNeed{}, apperrors.NewNotFoundError("need")
	}
	if err != nil {
		return models.JobNeed{}, err
	}
	return need, nil
}

func (s *Store) ListOpenNeeds(ctx context.Context, tenantID string) ([]models.JobNeed, error) {
	query, args, err := s.sb.Select(needColumns...).
		From("needs").
		Where(sq.Eq{"tenant_id": tenantID, "status": openStatuses}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build open needs query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query open needs: %w", err)
	}
	defer rows.Close()

	var needs []models.JobNeed
	for rows.Next() {
		n, err := s.scanNeed(rows)
		if err != nil {
			return nil, err
		}
		needs = append(needs, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open needs: %w", err)
	}
	return needs, nil
}

// ApplyNeedPatch updates the patched columns of a tenant's need. A missing or
// foreign need yields NOT_FOUND.
func (s *Store) ApplyNeedPatch(ctx context.Context, tenantID, needID string, patch models.NeedPatch) error {
	if err := patch.Validate(); err != nil {
		return apperrors.NewInvalidRequestError(err.Error())
	}
	if !validID(needID) {
		return apperrors.NewNotFoundError("need")
	}
	fields := patch.Fields()
	if len(fields) == 0 {
		return nil
	}

	set := make(map[string]interface{}, len(fields)+1)
	for f, v := range fields {
		set[string(f)] = v
	}
	set["updated_at"] = s.now().UTC()

	query, args, err := s.sb.Update("needs").
		SetMap(set).
		Where(sq.Eq{"id": needID, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build need update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewPersistenceFailedError("update need", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewPersistenceFailedError("update need", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError("need")
	}
	return nil
}

// UpdateNeed applies an operator patch and returns the resulting need.
func (s *Store) UpdateNeed(ctx context.Context, tenantID, needID string, patch models.NeedPatch) (models.JobNeed, error) {
	if err := s.ApplyNeedPatch(ctx, tenantID, needID, patch); err != nil {
		return models.JobNeed{}, err
	}
	return s.GetNeed(ctx, tenantID, needID)
}

func (s *Store) needExists(ctx context.Context, tenantID, needID string) error {
	if !validID(needID) {
		return apperrors.NewNotFoundError("need")
	}
	query, args, err := s.sb.Select("1").
		From("needs").
		Where(sq.Eq{"id": needID, "tenant_id": tenantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build need lookup: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError("need")
	}
	if err != nil {
		return apperrors.NewUpstreamUnavailableError("needs", err)
	}
	return nil
}

func (s *Store) scanNeed(row rowScanner) (models.JobNeed, error) {
	var (
		n                         models.JobNeed
		skills                    pq.StringArray
		minExp, maxRate, best     sql.NullFloat64
		postal, dept              sql.NullString
		startDate, lastAnalysisAt sql.NullTime
		status                    string
	)
	err := row.Scan(
		&n.ID, &n.TenantID, &n.Title, &skills, &minExp, &maxRate,
		&postal, &dept, &startDate, &n.DesiredCount, &status, &n.ScoreThreshold,
		&n.MatchingsCount, &best, &lastAnalysisAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.JobNeed{}, err
		}
		return models.JobNeed{}, fmt.Errorf("scan need: %w", err)
	}

	n.RequiredSkills = []string(skills)
	n.MinExperienceYears = nullFloat(minExp)
	n.MaxHourlyRate = nullFloat(maxRate)
	n.BestScore = nullFloat(best)
	n.PostalCode = nullString(postal)
	n.Department = nullString(dept)
	if startDate.Valid {
		days := models.DaysUntil(startDate.Time, s.now())
		n.StartInDays = &days
	}
	if lastAnalysisAt.Valid {
		t := lastAnalysisAt.Time.UTC()
		n.LastAnalysisAt = &t
	}

	n.Status, err = models.ParseNeedStatus(status)
	if err != nil {
		s.logger.Warn("Unknown need status, treating need as closed", map[string]interface{}{"needId": n.ID, "status": status})
		n.Status = models.NeedStatusClosed
	}
	return n, nil
}
