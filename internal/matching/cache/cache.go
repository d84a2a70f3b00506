// Package cache stores computed rankings by fingerprint and collapses concurrent
// computations of the same fingerprint into one.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"matching-workers/internal/common/logger"
	"matching-workers/internal/models"
)

const DefaultMaxEntries = 1024

// Source tells where a result came from.
type Source string

const (
	SourceLocal    Source = "local"
	SourceRemote   Source = "remote"
	SourceComputed Source = "computed"
)

// Result is returned by GetOrCompute. Shared is set when the result was produced
// by a flight other callers waited on too.
type Result struct {
	Ranking *models.MatchRanking
	Source  Source
	Shared  bool
}

// ComputeFunc builds the ranking for a key. It runs detached from the caller's
// cancellation.
type ComputeFunc func(ctx context.Context) (*models.MatchRanking, error)

// RemoteStore is an optional shared second level, typically Redis.
type RemoteStore interface {
	Get(ctx context.Context, key string) (*models.MatchRanking, bool, error)
	Set(ctx context.Context, key string, ranking *models.MatchRanking, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Options struct {
	MaxEntries int
	// TTL bounds the age of local entries; 0 keeps them until evicted.
	TTL       time.Duration
	Remote    RemoteStore
	RemoteTTL time.Duration
	// ComputeTimeout bounds a detached computation; 0 means no bound.
	ComputeTimeout time.Duration
	Logger         logger.Logger
}

// Stats is a point-in-time copy of the cache counters.
type Stats struct {
	LocalHits    uint64 `json:"localHits"`
	RemoteHits   uint64 `json:"remoteHits"`
	Computations uint64 `json:"computations"`
	Failures     uint64 `json:"failures"`
	SharedWaits  uint64 `json:"sharedWaits"`
	Abandoned    uint64 `json:"abandoned"`
	RemoteErrors uint64 `json:"remoteErrors"`
	Entries      int    `json:"entries"`
}

type counters struct {
	localHits, remoteHits, computations, failures, sharedWaits, abandoned, remoteErrors atomic.Uint64
}

// MatchCache is safe for concurrent use. Locking is per key: callers for
// different keys never wait on each other.
type MatchCache struct {
	local          *expirable.LRU[string, *models.MatchRanking]
	group          singleflight.Group
	remote         RemoteStore
	remoteTTL      time.Duration
	computeTimeout time.Duration
	logger         logger.Logger
	stats          counters
}

func New(opts Options) *MatchCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &MatchCache{
		local:          expirable.NewLRU[string, *models.MatchRanking](opts.MaxEntries, nil, opts.TTL),
		remote:         opts.Remote,
		remoteTTL:      opts.RemoteTTL,
		computeTimeout: opts.ComputeTimeout,
		logger:         opts.Logger,
	}
}

// GetOrCompute returns the cached ranking for key or runs compute, at most once
// at a time per key. A caller whose ctx ends stops waiting; the computation goes
// on for the remaining waiters and still fills the cache.
func (c *MatchCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (Result, error) {
	if r, ok := c.local.Get(key); ok {
		c.stats.localHits.Add(1)
		return Result{Ranking: r, Source: SourceLocal}, nil
	}
	return c.flight(ctx, key, compute, false)
}

// Refresh drops key and recomputes it without consulting either cache level.
// Refreshes and gets arriving while that computation runs wait on it instead of
// starting their own.
func (c *MatchCache) Refresh(ctx context.Context, key string, compute ComputeFunc) (Result, error) {
	c.Invalidate(ctx, key)
	return c.flight(ctx, key, compute, true)
}

// Invalidate drops the entry from both levels. A computation already in flight
// for key is not abandoned: later callers join it.
func (c *MatchCache) Invalidate(ctx context.Context, key string) {
	c.local.Remove(key)
	if c.remote == nil {
		return
	}
	if err := c.remote.Delete(ctx, key); err != nil {
		c.stats.remoteErrors.Add(1)
		c.logger.Warn("Failed to delete shared ranking", map[string]interface{}{"key": key, "error": err.Error()})
	}
}

func (c *MatchCache) Stats() Stats {
	return Stats{
		LocalHits:    c.stats.localHits.Load(),
		RemoteHits:   c.stats.remoteHits.Load(),
		Computations: c.stats.computations.Load(),
		Failures:     c.stats.failures.Load(),
		SharedWaits:  c.stats.sharedWaits.Load(),
		Abandoned:    c.stats.abandoned.Load(),
		RemoteErrors: c.stats.remoteErrors.Load(),
		Entries:      c.local.Len(),
	}
}

// Len is the number of local entries.
func (c *MatchCache) Len() int { return c.local.Len() }

func (c *MatchCache) flight(ctx context.Context, key string, compute ComputeFunc, fresh bool) (Result, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.load(detached, key, compute, fresh)
	})

	select {
	case <-ctx.Done():
		c.stats.abandoned.Add(1)
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		out := res.Val.(Result)
		if res.Shared {
			c.stats.sharedWaits.Add(1)
			out.Shared = true
		}
		return out, nil
	}
}

func (c *MatchCache) load(ctx context.Context, key string, compute ComputeFunc, fresh bool) (Result, error) {
	if !fresh {
		// another flight may have filled the entry between our miss and now
		if r, ok := c.local.Get(key); ok {
			c.stats.localHits.Add(1)
			return Result{Ranking: r, Source: SourceLocal}, nil
		}
		if r, ok := c.remoteGet(ctx, key); ok {
			c.stats.remoteHits.Add(1)
			c.local.Add(key, r)
			return Result{Ranking: r, Source: SourceRemote}, nil
		}
	}

	if c.computeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.computeTimeout)
		defer cancel()
	}

	c.stats.computations.Add(1)
	r, err := safeCompute(ctx, compute)
	if err != nil {
		c.stats.failures.Add(1)
		return Result{}, err
	}
	if r == nil {
		c.stats.failures.Add(1)
		return Result{}, fmt.Errorf("compute for %s returned no ranking", key)
	}

	c.local.Add(key, r)
	c.remoteSet(ctx, key, r)
	return Result{Ranking: r, Source: SourceComputed}, nil
}

func safeCompute(ctx context.Context, compute ComputeFunc) (r *models.MatchRanking, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("ranking computation panicked: %v", p)
		}
	}()
	return compute(ctx)
}

func (c *MatchCache) remoteGet(ctx context.Context, key string) (*models.MatchRanking, bool) {
	if c.remote == nil {
		return nil, false
	}
	r, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		c.stats.remoteErrors.Add(1)
		c.logger.Warn("Shared ranking cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	if !ok || r == nil || r.Fingerprint != key {
		return nil, false
	}
	return r, true
}

func (c *MatchCache) remoteSet(ctx context.Context, key string, r *models.MatchRanking) {
	if c.remote == nil {
		return
	}
	if err := c.remote.Set(ctx, key, r, c.remoteTTL); err != nil {
		c.stats.remoteErrors.Add(1)
		c.logger.Warn("Shared ranking cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
