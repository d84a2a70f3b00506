package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/models"
)

var matchingColumns = []string{
	"id", "tenant_id", "need_id", "candidate_id", "rank",
	"score_total", "score_skills", "score_location", "score_availability", "score_financial", "score_experience",
	"strengths", "weaknesses", "assisted", "fingerprint", "created_at",
}

// SaveRanking replaces the stored shortlist of the ranking's need with its
// presented prefix, in one transaction. Saving the same ranking twice leaves the
// same rows.
func (s *Store) SaveRanking(ctx context.Context, r *models.MatchRanking) (err error) {
	if r == nil {
		return apperrors.NewInvalidRequestError("ranking is required")
	}
	if !validID(r.NeedID) {
		return apperrors.NewNotFoundError("need")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewPersistenceFailedError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn("Failed to roll back shortlist transaction", map[string]interface{}{"needId": r.NeedID, "error": rbErr.Error()})
			}
		}
	}()

	if err = s.lockNeed(ctx, tx, r.TenantID, r.NeedID); err != nil {
		return err
	}

	query, args, err := s.sb.Delete("matchings").
		Where(sq.Eq{"need_id": r.NeedID, "tenant_id": r.TenantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build shortlist delete: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewPersistenceFailedError("delete shortlist", err)
	}

	presented := r.Presented()
	if len(presented) > 0 {
		now := s.now().UTC()
		insert := s.sb.Insert("matchings").Columns(matchingColumns...)
		for _, b := range presented {
			v := b.View()
			insert = insert.Values(
				uuid.NewString(), r.TenantID, r.NeedID, b.CandidateID, b.Rank,
				v.ScoreTotal, v.Skills, v.Location, v.Availability, v.Financial, v.Experience,
				pq.Array(criteriaStrings(v.Strengths)), pq.Array(criteriaStrings(v.Weaknesses)),
				r.Mode == models.ScorerAssisted, r.Fingerprint, now,
			)
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return fmt.Errorf("build shortlist insert: %w", err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			if pqCode(err) == pqForeignKeyViolation {
				return apperrors.NewNotFoundError("need")
			}
			return apperrors.NewPersistenceFailedError("insert shortlist", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewPersistenceFailedError("commit shortlist", err)
	}
	s.logger.Debug("Shortlist stored", map[string]interface{}{"needId": r.NeedID, "rows": len(presented)})
	return nil
}

// lockNeed serializes shortlist writes per need and checks the need belongs to the tenant.
func (s *Store) lockNeed(ctx context.Context, tx *sql.Tx, tenantID, needID string) error {
	query, args, err := s.sb.Select("id").
		From("needs").
		Where(sq.Eq{"id": needID, "tenant_id": tenantID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build need lock: %w", err)
	}
	var id string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewNotFoundError("need")
	}
	if err != nil {
		return apperrors.NewPersistenceFailedError("lock need", err)
	}
	return nil
}

// ListByNeed returns the stored shortlist of a tenant's need ordered by rank.
func (s *Store) ListByNeed(ctx context.Context, tenantID, needID string, q models.MatchingQuery) ([]models.StoredMatching, error) {
	if err := s.needExists(ctx, tenantID, needID); err != nil {
		return nil, err
	}
	q = q.Normalized()

	query, args, err := s.sb.Select(matchingColumns...).
		From("matchings").
		Where(sq.Eq{"need_id": needID, "tenant_id": tenantID}).
		Where(sq.GtOrEq{"score_total": q.MinScore}).
		OrderBy("rank").
		Limit(uint64(q.Limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build matchings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("matchings", err)
	}
	defer rows.Close()

	out := []models.StoredMatching{}
	for rows.Next() {
		m, err := scanMatching(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("matchings", err)
	}
	return out, nil
}

// ExportByNeed joins the stored shortlist of a tenant's need with its candidates.
func (s *Store) ExportByNeed(ctx context.Context, tenantID, needID string) ([]models.MatchedCandidate, error) {
	if err := s.needExists(ctx, tenantID, needID); err != nil {
		return nil, err
	}

	cols := append(prefixed("m.", matchingColumns), prefixed("c.", candidateColumns)...)
	query, args, err := s.sb.Select(cols...).
		From("matchings m").
		Join("candidates c ON c.id = m.candidate_id").
		Where(sq.Eq{"m.need_id": needID, "m.tenant_id": tenantID}).
		OrderBy("m.rank").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build export query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("matchings", err)
	}
	defer rows.Close()

	now := s.now()
	out := []models.MatchedCandidate{}
	for rows.Next() {
		m, c, err := scanMatchedCandidate(rows, now)
		if err != nil {
			return nil, err
		}
		out = append(out, models.MatchedCandidate{Matching: m, Candidate: c})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamUnavailableError("matchings", err)
	}
	return out, nil
}

type matchingRow struct {
	m                     models.StoredMatching
	candidateID           string
	strengths, weaknesses pq.StringArray
}

func (r *matchingRow) dest() []interface{} {
	b := &r.m.Breakdown
	return []interface{}{
		&r.m.ID, &r.m.TenantID, &r.m.NeedID, &r.candidateID, &b.Rank,
		&b.ScoreTotal, &b.Skills, &b.Location, &b.Availability, &b.Financial, &b.Experience,
		&r.strengths, &r.weaknesses, &r.m.Assisted, &r.m.Fingerprint, &r.m.CreatedAt,
	}
}

func (r *matchingRow) finish() models.StoredMatching {
	r.m.Breakdown.CandidateID = r.candidateID
	r.m.Breakdown.Strengths = toCriteria(r.strengths)
	r.m.Breakdown.Weaknesses = toCriteria(r.weaknesses)
	return r.m
}

func scanMatching(row rowScanner) (models.StoredMatching, error) {
	var r matchingRow
	if err := row.Scan(r.dest()...); err != nil {
		return models.StoredMatching{}, fmt.Errorf("scan matching: %w", err)
	}
	return r.finish(), nil
}

func scanMatchedCandidate(row rowScanner, now time.Time) (models.StoredMatching, models.Candidate, error) {
	var (
		m matchingRow
		c candidateRow
	)
	if err := row.Scan(append(m.dest(), c.dest()...)...); err != nil {
		return models.StoredMatching{}, models.Candidate{}, fmt.Errorf("scan matched candidate: %w", err)
	}
	return m.finish(), c.finish(now), nil
}

func criteriaStrings(c []models.Criterion) []string {
	out := make([]string, len(c))
	for i, v := range c {
		out[i] = string(v)
	}
	return out
}

func toCriteria(s []string) []models.Criterion {
	out := make([]models.Criterion, len(s))
	for i, v := range s {
		out[i] = models.Criterion(v)
	}
	return out
}
