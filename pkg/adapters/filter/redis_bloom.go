package filter

import (
	"context"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	LinkFilterKey     = "short_link:bloom:create"
	UsernameFilterKey = "short_link:bloom:register"
)

// RedisBloom is a bloom filter stored as a Redis bitmap so every instance
// sees the same set. Bit positions come from the same double hashing the
// in-process filter uses.
type RedisBloom struct {
	client *redis.Client
	key    string
	m      uint
	k      uint
}

// NewRedisBloom sizes the filter for capacity items at the given false
// positive rate.
func NewRedisBloom(client *redis.Client, key string, capacity uint, fpRate float64) *RedisBloom {
	m, k := bloom.EstimateParameters(capacity, fpRate)
	return &RedisBloom{client: client, key: key, m: m, k: k}
}

func (f *RedisBloom) offsets(item string) []int64 {
	locs := bloom.Locations([]byte(item), f.k)
	out := make([]int64, len(locs))
	for i, l := range locs {
		out[i] = int64(l % uint64(f.m))
	}
	return out
}

func (f *RedisBloom) Add(ctx context.Context, item string) error {
	_, err := f.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, off := range f.offsets(item) {
			p.SetBit(ctx, f.key, off, 1)
		}
		return nil
	})
	return err
}

func (f *RedisBloom) MightContain(ctx context.Context, item string) (bool, error) {
	offs := f.offsets(item)
	cmds := make([]*redis.IntCmd, len(offs))
	_, err := f.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, off := range offs {
			cmds[i] = p.GetBit(ctx, f.key, off)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	for _, c := range cmds {
		if c.Val() == 0 {
			return false, nil
		}
	}
	return true, nil
}

// Exists reports whether the bitmap is present at all. A missing key means
// Redis was flushed or never seeded, and every lookup would answer absent.
func (f *RedisBloom) Exists(ctx context.Context) (bool, error) {
	n, err := f.client.Exists(ctx, f.key).Result()
	return n > 0, err
}

// Size returns the number of bits and hash functions in use.
func (f *RedisBloom) Size() (m, k uint) {
	return f.m, f.k
}

var _ ports.ExistenceFilter = (*RedisBloom)(nil)
