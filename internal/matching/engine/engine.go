// Package engine orchestrates matching runs: it resolves the tenant's needs and
// candidate pool, reuses or computes rankings through the cache and writes the
// results back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "matching-workers/internal/common/errors"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching/cache"
	"matching-workers/internal/matching/fingerprint"
	"matching-workers/internal/matching/rank"
	"matching-workers/internal/matching/score"
	"matching-workers/internal/matching/tenant"
	"matching-workers/internal/models"
	"matching-workers/internal/ports"
)

const (
	DefaultConcurrency = 4
	DefaultNeedTimeout = 20 * time.Second
)

// Recorder receives run and per-need measurements.
type Recorder interface {
	RecordRun(ctx context.Context, mode models.ScorerMode, outcome string, d time.Duration)
	RecordNeed(ctx context.Context, mode models.ScorerMode, source, outcome string, ranked int, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(context.Context, models.ScorerMode, string, time.Duration) {}
func (nopRecorder) RecordNeed(context.Context, models.ScorerMode, string, string, int, time.Duration) {
}

type Config struct {
	Concurrency int
	NeedTimeout time.Duration
	KeyPrefix   string
}

// Deps are the collaborators of an Engine. Needs, Pool, Weights, Sink, Cache
// and at least one scorer are required.
type Deps struct {
	Needs    ports.NeedProvider
	Pool     ports.CandidatePoolProvider
	Weights  ports.WeightProvider
	Sink     ports.ResultSink
	Cache    *cache.MatchCache
	Ranker   *rank.Ranker
	Scorers  []score.Scorer
	Logger   logger.Logger
	Recorder Recorder
	Tracer   trace.Tracer
	Clock    func() time.Time
}

type Engine struct {
	scope    *tenant.Scope
	weights  ports.WeightProvider
	sink     ports.ResultSink
	cache    *cache.MatchCache
	ranker   *rank.Ranker
	scorers  map[models.ScorerMode]score.Scorer
	cfg      Config
	logger   logger.Logger
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time
}

func New(deps Deps, cfg Config) (*Engine, error) {
	switch {
	case deps.Needs == nil || deps.Pool == nil:
		return nil, errors.New("engine: need and candidate pool providers are required")
	case deps.Weights == nil:
		return nil, errors.New("engine: weight provider is required")
	case deps.Sink == nil:
		return nil, errors.New("engine: result sink is required")
	case deps.Cache == nil:
		return nil, errors.New("engine: cache is required")
	case len(deps.Scorers) == 0:
		return nil, errors.New("engine: at least one scorer is required")
	}

	scorers := make(map[models.ScorerMode]score.Scorer, len(deps.Scorers))
	for _, s := range deps.Scorers {
		scorers[s.Mode()] = s
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.NeedTimeout <= 0 {
		cfg.NeedTimeout = DefaultNeedTimeout
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = fingerprint.DefaultPrefix
	}

	e := &Engine{
		scope:    tenant.NewScope(deps.Needs, deps.Pool),
		weights:  deps.Weights,
		sink:     deps.Sink,
		cache:    deps.Cache,
		ranker:   deps.Ranker,
		scorers:  scorers,
		cfg:      cfg,
		logger:   deps.Logger,
		recorder: deps.Recorder,
		tracer:   deps.Tracer,
		now:      deps.Clock,
	}
	if e.ranker == nil {
		e.ranker = rank.New(rank.Options{})
	}
	if e.logger == nil {
		e.logger = logger.NewNoOpLogger()
	}
	if e.recorder == nil {
		e.recorder = nopRecorder{}
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("matching-workers/engine")
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Modes lists the enabled scorer modes.
func (e *Engine) Modes() []models.ScorerMode {
	out := make([]models.ScorerMode, 0, len(e.scorers))
	for m := range e.scorers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CacheStats returns the process-wide cache counters.
func (e *Engine) CacheStats() cache.Stats { return e.cache.Stats() }

// Run resolves the needs selected by req and ranks each one against the tenant's
// candidate pool. Batch-level problems (invalid request or weights, unavailable
// providers) abort with an error; per-need failures are reported in the summary.
func (e *Engine) Run(ctx context.Context, req Request) (*Summary, error) {
	start := e.now()
	if req.Mode == "" {
		req.Mode = models.ScorerRuleBased
	}

	ctx, span := e.tracer.Start(ctx, "matching.run", trace.WithAttributes(
		attribute.String("tenant.id", req.TenantID),
		attribute.String("need.id", req.NeedID),
		attribute.String("scorer.mode", string(req.Mode)),
		attribute.Bool("force_refresh", req.ForceRefresh),
	))
	defer span.End()

	log := e.logger.WithFields(map[string]interface{}{
		"tenantId":     req.TenantID,
		"needId":       req.NeedID,
		"scorerMode":   string(req.Mode),
		"forceRefresh": req.ForceRefresh,
	})

	summary, err := e.run(ctx, req, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recorder.RecordRun(ctx, req.Mode, "aborted", e.now().Sub(start))
		log.Error("Matching run aborted", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	summary.Duration = e.now().Sub(start)
	outcome := "success"
	if !summary.Success {
		outcome = "failed"
		span.SetStatus(codes.Error, summary.Message)
	} else if summary.NeedsFailed > 0 {
		outcome = "partial"
	}
	span.SetAttributes(
		attribute.Int("needs.processed", summary.NeedsProcessed),
		attribute.Int("needs.failed", summary.NeedsFailed),
		attribute.Int("rankings.count", summary.RankingsCount),
	)
	e.recorder.RecordRun(ctx, req.Mode, outcome, summary.Duration)

	log.Info("Matching run completed", map[string]interface{}{
		"needsProcessed": summary.NeedsProcessed,
		"needsFailed":    summary.NeedsFailed,
		"rankingsCount":  summary.RankingsCount,
		"cacheHits":      summary.Cache.Hits,
		"computed":       summary.Cache.Computed,
		"durationMs":     summary.Duration.Milliseconds(),
	})
	return summary, nil
}

func (e *Engine) run(ctx context.Context, req Request, log logger.Logger) (*Summary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	scorer, ok := e.scorers[req.Mode]
	if !ok {
		return nil, apperrors.NewInvalidRequestError(fmt.Sprintf("scorer mode %q is not enabled", req.Mode))
	}

	weights, err := e.resolveWeights(ctx, req)
	if err != nil {
		return nil, err
	}

	needs, err := e.resolveNeeds(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(needs) == 0 {
		return newSummary(req, nil), nil
	}

	pool, err := e.scope.Pool(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	log.Debug("Matching inputs resolved", map[string]interface{}{
		"needs":       len(needs),
		"candidates":  len(pool.Candidates),
		"poolVersion": pool.Version,
		"weights":     weights.Name,
	})

	batch := batchInput{
		req:           req,
		pool:          pool,
		weights:       weights,
		weightVersion: fingerprint.WeightVersion(weights),
		scorer:        scorer,
	}

	results := make([]NeedResult, len(needs))
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Concurrency)
	for i, need := range needs {
		g.Go(func() error {
			results[i] = e.processNeed(ctx, batch, need, log)
			return nil
		})
	}
	_ = g.Wait() // processNeed records failures instead of returning them

	return newSummary(req, results), nil
}

func (e *Engine) resolveWeights(ctx context.Context, req Request) (models.WeightConfig, error) {
	var w models.WeightConfig
	if req.Weights != nil {
		w = *req.Weights
		if w.Name == "" {
			w.Name = "request"
		}
	} else {
		var err error
		w, err = e.weights.Weights(ctx, req.TenantID)
		if err != nil {
			return models.WeightConfig{}, apperrors.NewUpstreamUnavailableError("weights", err)
		}
	}
	if err := w.Validate(); err != nil {
		return models.WeightConfig{}, apperrors.NewInvalidWeightConfigError(err)
	}
	return w, nil
}

func (e *Engine) resolveNeeds(ctx context.Context, req Request) ([]models.JobNeed, error) {
	if req.NeedID == "" {
		return e.scope.OpenNeeds(ctx, req.TenantID)
	}
	need, err := e.scope.Need(ctx, req.TenantID, req.NeedID)
	if err != nil {
		return nil, err
	}
	if !need.IsOpen() {
		return nil, apperrors.NewNeedClosedError(need.ID)
	}
	return []models.JobNeed{need}, nil
}

type batchInput struct {
	req           Request
	pool          models.CandidatePool
	weights       models.WeightConfig
	weightVersion string
	scorer        score.Scorer
}

func (e *Engine) processNeed(ctx context.Context, b batchInput, need models.JobNeed, log logger.Logger) NeedResult {
	start := e.now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.NeedTimeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "matching.need", trace.WithAttributes(attribute.String("need.id", need.ID)))
	defer span.End()

	in := fingerprint.Input{
		TenantID:      b.req.TenantID,
		NeedID:        need.ID,
		NeedVersion:   fingerprint.NeedVersion(need),
		PoolVersion:   b.pool.Version,
		WeightVersion: b.weightVersion,
		Mode:          b.scorer.Mode(),
		ScorerVersion: b.scorer.Version(),
	}
	key := in.Key(e.cfg.KeyPrefix)
	result := NeedResult{NeedID: need.ID, Fingerprint: key}

	compute := func(cctx context.Context) (*models.MatchRanking, error) {
		r, err := e.ranker.Rank(cctx, b.scorer, b.pool.Candidates, need, b.weights)
		if err != nil {
			return nil, err
		}
		r.Fingerprint = key
		r.NeedVersion = in.NeedVersion
		r.PoolVersion = in.PoolVersion
		r.WeightVersion = in.WeightVersion
		r.ComputedAt = e.now().UTC()
		return r, nil
	}

	var (
		res cache.Result
		err error
	)
	if b.req.ForceRefresh {
		res, err = e.cache.Refresh(ctx, key, compute)
	} else {
		res, err = e.cache.GetOrCompute(ctx, key, compute)
	}
	if err == nil {
		err = e.scope.CheckRanking(b.req.TenantID, need.ID, res.Ranking)
	}
	if err != nil {
		return e.fail(ctx, span, b, result, classify(need.ID, err), start, log)
	}

	result.Ranking = res.Ranking
	result.Source = res.Source
	result.Shared = res.Shared
	result.Presented = len(res.Ranking.Presented())
	span.SetAttributes(attribute.String("cache.source", string(res.Source)), attribute.Int("ranked", len(res.Ranking.Ranked)))

	if err := e.persist(ctx, b.req.TenantID, need.ID, res.Ranking); err != nil {
		return e.fail(ctx, span, b, result, err, start, log)
	}
	result.Persisted = true
	result.Duration = e.now().Sub(start)
	e.recorder.RecordNeed(ctx, b.scorer.Mode(), string(res.Source), "ok", len(res.Ranking.Ranked), result.Duration)
	return result
}

// persist stores the shortlist then the need summary. NOT_FOUND from the sink
// means the need disappeared mid-run and is skipped.
func (e *Engine) persist(ctx context.Context, tenantID, needID string, r *models.MatchRanking) error {
	if err := e.sink.SaveRanking(ctx, r); err != nil && !apperrors.IsNotFound(err) {
		return persistenceError("save ranking", err)
	}
	patch := models.SummaryPatch(r, e.now().UTC())
	if err := e.sink.ApplyNeedPatch(ctx, tenantID, needID, patch); err != nil && !apperrors.IsNotFound(err) {
		return persistenceError("update need summary", err)
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, span trace.Span, b batchInput, result NeedResult, err error, start time.Time, log logger.Logger) NeedResult {
	stdErr := apperrors.Normalize(err)
	result.Failure = stdErr
	result.Duration = e.now().Sub(start)

	span.RecordError(err)
	span.SetStatus(codes.Error, stdErr.Message)
	source := string(result.Source)
	if source == "" {
		source = "none"
	}
	e.recorder.RecordNeed(ctx, b.scorer.Mode(), source, string(stdErr.Code), 0, result.Duration)
	log.Warn("Need matching failed", map[string]interface{}{
		"needId":    result.NeedID,
		"errorCode": string(stdErr.Code),
		"error":     err.Error(),
	})
	return result
}

func classify(needID string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewComputeTimeoutError(needID, err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewComputeFailedError(needID, err)
	}
	if _, ok := apperrors.AsStandard(err); ok {
		return err
	}
	return apperrors.NewComputeFailedError(needID, err)
}

func persistenceError(op string, err error) error {
	if apperrors.HasCode(err, apperrors.ErrCodePersistenceFailed) {
		return err
	}
	return apperrors.NewPersistenceFailedError(op, err)
}
