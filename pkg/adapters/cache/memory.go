package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type negativeEntry struct{}

// MemoryStore is an in-process CacheStore backed by Ristretto. Entries for a
// code share one cache key so the positive and negative kinds replace each
// other.
type MemoryStore struct {
	client *ristretto.Cache
	// mu orders Set/Del pairs with the asynchronous ristretto buffers.
	mu sync.Mutex
}

func NewMemoryStore(maxSizeMB int) (*MemoryStore, error) {
	maxCost := int64(maxSizeMB) * 1024 * 1024

	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost / 100, // ~10x the number of entries we expect to hold
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int("max_size_mb", maxSizeMB).Msg("Local cache initialized")
	return &MemoryStore{client: client}, nil
}

func (s *MemoryStore) GetPositive(_ context.Context, key string) (string, bool, error) {
	v, ok := s.client.Get(key)
	if !ok {
		return "", false, nil
	}
	url, ok := v.(string)
	return url, ok, nil
}

func (s *MemoryStore) IsNegative(_ context.Context, key string) (bool, error) {
	v, ok := s.client.Get(key)
	if !ok {
		return false, nil
	}
	_, neg := v.(negativeEntry)
	return neg, nil
}

func (s *MemoryStore) SetPositive(_ context.Context, key, url string, ttl time.Duration) error {
	s.set(key, url, int64(len(key)+len(url)), ttl)
	return nil
}

func (s *MemoryStore) SetNegative(_ context.Context, key string, ttl time.Duration) error {
	s.set(key, negativeEntry{}, int64(len(key)+1), ttl)
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.Del(key)
	s.client.Wait()
	return nil
}

func (s *MemoryStore) set(key string, value interface{}, cost int64, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Del first: a rejected Set must not leave the opposite kind behind.
	s.client.Del(key)
	s.client.SetWithTTL(key, value, cost, ttl)
	s.client.Wait()
}

// HitRatio reports the fraction of lookups served from the cache.
func (s *MemoryStore) HitRatio() float64 {
	if s.client.Metrics == nil {
		return 0
	}
	return s.client.Metrics.Ratio()
}

func (s *MemoryStore) Close() {
	s.client.Close()
	log.Info().Msg("Local cache closed")
}

var _ ports.CacheStore = (*MemoryStore)(nil)
