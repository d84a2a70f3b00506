// Package bootstrap assembles the matching stack and its workers from configuration.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"matching-workers/internal/common/camunda"
	"matching-workers/internal/common/config"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/common/validation"
	"matching-workers/internal/matching/assisted"
	"matching-workers/internal/matching/cache"
	"matching-workers/internal/matching/engine"
	"matching-workers/internal/matching/rank"
	"matching-workers/internal/matching/score"
	"matching-workers/internal/matching/weights"
	"matching-workers/internal/ports"
	"matching-workers/internal/store/postgres"
	"matching-workers/internal/store/search"
	"matching-workers/pkg/registry"

	enm "matching-workers/internal/workers/matching/export-need-matchings"
	gnm "matching-workers/internal/workers/matching/get-need-matchings"
	rm "matching-workers/internal/workers/matching/run-matching"
	un "matching-workers/internal/workers/matching/update-need"
)

// Backends are the opened connections the matching stack runs on. Redis and
// Search are optional.
type Backends struct {
	DB     *sql.DB
	Redis  redis.Cmdable
	Search *elasticsearch.Client
}

// Telemetry is the optional instrumentation handed to the engine.
type Telemetry struct {
	Recorder engine.Recorder
	Tracer   trace.Tracer
}

// Matching is the assembled matching stack.
type Matching struct {
	Store     *postgres.Store
	Pool      ports.CandidatePoolProvider
	Cache     *cache.MatchCache
	Remote    *cache.RedisStore
	Engine    *engine.Engine
	Validator *validation.Validator
}

// NewMatching wires stores, scorers, cache and engine from cfg.
func NewMatching(ctx context.Context, cfg *config.Config, b Backends, tel Telemetry, log logger.Logger) (*Matching, error) {
	if b.DB == nil {
		return nil, errors.New("bootstrap: postgres connection is required")
	}
	mc := cfg.Matching

	store := postgres.New(b.DB, postgres.WithLogger(log))

	pool, err := poolProvider(cfg, store, b.Search, log)
	if err != nil {
		return nil, err
	}

	scorers, err := buildScorers(ctx, mc, log)
	if err != nil {
		return nil, err
	}

	cacheOpts := cache.Options{
		MaxEntries:     mc.Cache.MaxEntries,
		TTL:            config.GetDuration(mc.Cache.TTL),
		RemoteTTL:      config.GetDuration(mc.Cache.RemoteTTL),
		ComputeTimeout: config.GetDuration(mc.NeedTimeout),
		Logger:         log,
	}
	var remote *cache.RedisStore
	if mc.Cache.Remote {
		if b.Redis == nil {
			log.Warn("Remote cache enabled without a redis connection, using local cache only", nil)
		} else {
			remote = cache.NewRedisStore(b.Redis)
			cacheOpts.Remote = remote
		}
	}
	matchCache := cache.New(cacheOpts)

	eng, err := engine.New(engine.Deps{
		Needs:   store,
		Pool:    pool,
		Weights: weights.NewConfigProvider(mc),
		Sink:    store,
		Cache:   matchCache,
		Ranker: rank.New(rank.Options{
			StrengthThreshold: mc.Thresholds.Strength,
			WeaknessThreshold: mc.Thresholds.Weakness,
			PresentationCap:   mc.PresentationCap,
		}),
		Scorers:  scorers,
		Logger:   log,
		Recorder: tel.Recorder,
		Tracer:   tel.Tracer,
	}, engine.Config{
		Concurrency: mc.Concurrency,
		NeedTimeout: config.GetDuration(mc.NeedTimeout),
		KeyPrefix:   mc.Cache.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}

	reg, err := registry.Builtin()
	if err != nil {
		return nil, fmt.Errorf("load activity registry: %w", err)
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		return nil, fmt.Errorf("compile input schemas: %w", err)
	}

	return &Matching{
		Store:     store,
		Pool:      pool,
		Cache:     matchCache,
		Remote:    remote,
		Engine:    eng,
		Validator: validator,
	}, nil
}

func poolProvider(cfg *config.Config, store *postgres.Store, es *elasticsearch.Client, log logger.Logger) (ports.CandidatePoolProvider, error) {
	switch cfg.Matching.PoolSource {
	case config.PoolSourceElasticsearch:
		if es == nil {
			return nil, errors.New("bootstrap: pool_source elasticsearch needs an elasticsearch connection")
		}
		return search.NewPoolProvider(es,
			search.WithIndex(cfg.Database.Elasticsearch.CandidateIndex),
			search.WithLogger(log),
		), nil
	case config.PoolSourcePostgres, "":
		return store, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown pool source %q", cfg.Matching.PoolSource)
	}
}

// buildScorers always includes the rule-based calculator; the assisted scorer is
// added when enabled and an api key is present.
func buildScorers(ctx context.Context, mc config.MatchingConfig, log logger.Logger) ([]score.Scorer, error) {
	policy, err := score.PolicyFromConfig(mc.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scoring policy: %w", err)
	}
	calc, err := score.NewCalculator(policy)
	if err != nil {
		return nil, fmt.Errorf("scoring policy: %w", err)
	}
	scorers := []score.Scorer{calc}

	if !mc.Assisted.Enabled {
		return scorers, nil
	}
	if mc.Assisted.APIKey == "" {
		log.Warn("Assisted scoring enabled without an api key, rule-based only", nil)
		return scorers, nil
	}
	gen, err := assisted.NewGenerator(ctx, mc.Assisted.APIKey, mc.Assisted.Model)
	if err != nil {
		return nil, fmt.Errorf("assisted scoring: %w", err)
	}
	scorers = append(scorers, assisted.NewScorer(gen, calc, log, assisted.Options{
		Timeout:      config.GetDuration(mc.Assisted.Timeout),
		MaxLogLength: mc.Assisted.MaxLogLength,
	}))
	return scorers, nil
}

// Handlers are the four matching job handlers keyed by task type.
func (m *Matching) Handlers(cfg *config.Config, log logger.Logger) map[string]camunda.JobHandler {
	runCfg := rm.LoadConfig()
	runCfg.Timeout = workerTimeout(cfg, rm.TaskType, runCfg.Timeout)
	getCfg := gnm.LoadConfig()
	getCfg.Timeout = workerTimeout(cfg, gnm.TaskType, getCfg.Timeout)
	exportCfg := enm.LoadConfig()
	exportCfg.Timeout = workerTimeout(cfg, enm.TaskType, exportCfg.Timeout)
	updateCfg := un.LoadConfig()
	updateCfg.Timeout = workerTimeout(cfg, un.TaskType, updateCfg.Timeout)

	return map[string]camunda.JobHandler{
		rm.TaskType:  rm.NewHandler(runCfg, m.Engine, m.Validator, log),
		gnm.TaskType: gnm.NewHandler(getCfg, m.Store, m.Validator, log),
		enm.TaskType: enm.NewHandler(exportCfg, m.Store, m.Validator, log),
		un.TaskType:  un.NewHandler(updateCfg, m.Store, m.Validator, log),
	}
}

// RegisterWorkers opens a job worker per enabled handler and returns the opened task types.
func (m *Matching) RegisterWorkers(reg *camunda.Registry, cfg *config.Config, log logger.Logger) []string {
	for taskType, handler := range m.Handlers(cfg, log) {
		reg.Register(taskType, config.GetWorkerConfig(cfg, taskType), handler)
	}
	return reg.TaskTypes()
}

func workerTimeout(cfg *config.Config, taskType string, fallback time.Duration) time.Duration {
	if w, ok := cfg.Workers[taskType]; ok && w.Timeout > 0 {
		return config.GetDuration(w.Timeout)
	}
	return fallback
}
