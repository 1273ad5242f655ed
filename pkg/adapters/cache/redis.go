package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	GotoKeyPrefix   = "short_link:goto:"
	IsNullKeyPrefix = "short_link:is_null:"

	nullMarker = "-"
)

// RedisStore keeps cache entries in Redis. Positive and negative entries are
// written in a MULTI block together with the removal of the opposite kind.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetPositive(ctx context.Context, key string) (string, bool, error) {
	url, err := s.client.Get(ctx, GotoKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return url, true, nil
}

func (s *RedisStore) IsNegative(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, IsNullKeyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) SetPositive(ctx context.Context, key, url string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, GotoKeyPrefix+key, url, ttl)
		p.Del(ctx, IsNullKeyPrefix+key)
		return nil
	})
	return err
}

func (s *RedisStore) SetNegative(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, IsNullKeyPrefix+key, nullMarker, ttl)
		p.Del(ctx, GotoKeyPrefix+key)
		return nil
	})
	return err
}

func (s *RedisStore) Invalidate(ctx context.Context, key string) error {
	return s.client.Del(ctx, GotoKeyPrefix+key, IsNullKeyPrefix+key).Err()
}

var _ ports.CacheStore = (*RedisStore)(nil)
