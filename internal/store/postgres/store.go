// Package postgres is the relational store of the matching service: it serves the
// candidate pool and needs, and persists shortlists and need summaries.
package postgres

import (
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/ports"
)

const pqForeignKeyViolation = "23503"

var (
	_ ports.CandidatePoolProvider = (*Store)(nil)
	_ ports.NeedProvider          = (*Store)(nil)
	_ ports.ResultSink            = (*Store)(nil)
	_ ports.MatchingReader        = (*Store)(nil)
)

type Store struct {
	db     *sql.DB
	sb     sq.StatementBuilderType
	now    func() time.Time
	logger logger.Logger
}

type Option func(*Store)

// WithClock sets the clock used to turn start and availability dates into lead days.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l logger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:    time.Now,
		logger: logger.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) DB() *sql.DB { return s.db }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// validID reports whether id can be compared against a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func prefixed(prefix string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return out
}

func nullString(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return ""
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
