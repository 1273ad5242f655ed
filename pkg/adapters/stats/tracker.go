package stats

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// RedisTracker keeps one Redis set per link and counter kind.
type RedisTracker struct {
	client *redis.Client
}

func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

func (t *RedisTracker) Seen(ctx context.Context, set, member string) (bool, error) {
	added, err := t.client.SAdd(ctx, set, member).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

// MemoryTracker is the single instance variant.
type MemoryTracker struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{sets: make(map[string]map[string]struct{})}
}

func (t *MemoryTracker) Seen(_ context.Context, set, member string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sets[set]
	if !ok {
		s = make(map[string]struct{})
		t.sets[set] = s
	}
	if _, dup := s[member]; dup {
		return false, nil
	}
	s[member] = struct{}{}
	return true, nil
}

var (
	_ ports.VisitorTracker = (*RedisTracker)(nil)
	_ ports.VisitorTracker = (*MemoryTracker)(nil)
)
