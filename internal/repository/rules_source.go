package repository

import (
	"context"
	"errors"

	drepo "OptPull/internal/domain/repository"
	"OptPull/pkg/cache"
)

// RedisRuleSource reads the severity-rule override payload from Redis. A
// missing key is not an error: it means no overrides are set.
type RedisRuleSource struct {
	cache cache.Service
	key   string
}

// NewRedisRuleSource creates a rule source backed by the shared cache client.
func NewRedisRuleSource(c cache.Service, key string) drepo.RuleSource {
	return &RedisRuleSource{cache: c, key: key}
}

func (r *RedisRuleSource) RawRules(ctx context.Context) ([]byte, error) {
	var raw string
	if err := r.cache.Get(ctx, r.key, &raw); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(raw), nil
}
