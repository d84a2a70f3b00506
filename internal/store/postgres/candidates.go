package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"matching-workers/internal/matching/fingerprint"
	"matching-workers/internal/models"
)

var candidateColumns = []string{
	"id", "external_id", "first_name", "last_name", "email", "phone", "city",
	"postal_code", "department", "mobility_km", "skills", "experience_years",
	"availability", "available_from", "min_hourly_rate", "active", "blacklisted",
}

// visibleTo matches candidates shared with every tenant or explicitly with tenantID.
func visibleTo(column, tenantID string) sq.Sqlizer {
	return sq.Or{
		sq.Eq{column: nil},
		sq.Expr("cardinality(" + column + ") = 0"),
		sq.Expr("? = ANY("+column+")", tenantID),
	}
}

// CandidatePool returns the active, non-blacklisted candidates visible to the tenant.
func (s *Store) CandidatePool(ctx context.Context, tenantID string) (models.CandidatePool, error) {
	query, args, err := s.sb.Select(candidateColumns...).
		From("candidates").
		Where(sq.Eq{"active": true, "blacklisted": false}).
		Where(visibleTo("visible_to", tenantID)).
		OrderBy("id").
		ToSql()
	if err != nil {
		return models.CandidatePool{}, fmt.Errorf("build candidate pool query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.CandidatePool{}, fmt.Errorf("query candidate pool: %w", err)
	}
	defer rows.Close()

	now := s.now()
	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows, now)
		if err != nil {
			return models.CandidatePool{}, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return models.CandidatePool{}, fmt.Errorf("iterate candidate pool: %w", err)
	}

	s.logger.Debug("Candidate pool loaded", map[string]interface{}{"tenantId": tenantID, "candidates": len(candidates)})
	return models.CandidatePool{
		Candidates: candidates,
		Version:    fingerprint.PoolVersion(candidates),
	}, nil
}

type candidateRow struct {
	c                                            models.Candidate
	externalID, email, phone, city, postal, dept sql.NullString
	mobility                                     sql.NullInt64
	skills                                       pq.StringArray
	experience, minRate                          sql.NullFloat64
	availability                                 string
	availableFrom                                sql.NullTime
}

func (r *candidateRow) dest() []interface{} {
	return []interface{}{
		&r.c.ID, &r.externalID, &r.c.FirstName, &r.c.LastName, &r.email, &r.phone, &r.city,
		&r.postal, &r.dept, &r.mobility, &r.skills, &r.experience,
		&r.availability, &r.availableFrom, &r.minRate, &r.c.Active, &r.c.Blacklisted,
	}
}

func (r *candidateRow) finish(now time.Time) models.Candidate {
	c := r.c
	c.ExternalID = nullString(r.externalID)
	c.Email = nullString(r.email)
	c.Phone = nullString(r.phone)
	c.City = nullString(r.city)
	c.PostalCode = nullString(r.postal)
	c.Department = nullString(r.dept)
	c.Skills = []string(r.skills)
	c.ExperienceYears = nullFloat(r.experience)
	c.MinHourlyRate = nullFloat(r.minRate)
	if r.mobility.Valid {
		km := int(r.mobility.Int64)
		c.MobilityKm = &km
	}

	var from *time.Time
	if r.availableFrom.Valid {
		from = &r.availableFrom.Time
	}
	c.Availability, c.AvailableInDays = models.ResolveAvailability(r.availability, from, now)
	return c
}

func scanCandidate(row rowScanner, now time.Time) (models.Candidate, error) {
	var r candidateRow
	if err := row.Scan(r.dest()...); err != nil {
		return models.Candidate{}, fmt.Errorf("scan candidate: %w", err)
	}
	return r.finish(now), nil
}
