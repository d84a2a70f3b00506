package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"matching-workers/internal/matching/fingerprint"
	"matching-workers/internal/models"
)

// RedisStore keeps rankings as json strings under their fingerprint.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.MatchRanking, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var r models.MatchRanking
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, false, fmt.Errorf("decode ranking %s: %w", key, err)
	}
	return &r, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, r *models.MatchRanking, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode ranking %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// PurgeTenant removes every shared ranking of a tenant. Keys follow the
// "<prefix>:<tenant>:<digest>" layout of fingerprint keys.
func (s *RedisStore) PurgeTenant(ctx context.Context, prefix, tenantID string) (int, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, errors.New("purge needs a tenant id")
	}
	if prefix == "" {
		prefix = fingerprint.DefaultPrefix
	}
	var (
		cursor  uint64
		removed int
		pattern = globEscaper.Replace(prefix) + ":" + fingerprint.TenantSegment(tenantID) + ":*"
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)
