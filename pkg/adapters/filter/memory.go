package filter

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// MemoryBloom is an in-process bloom filter for single instance deployments.
type MemoryBloom struct {
	mu sync.RWMutex
	bf *bloom.BloomFilter
}

func NewMemoryBloom(capacity uint, fpRate float64) *MemoryBloom {
	return &MemoryBloom{bf: bloom.NewWithEstimates(capacity, fpRate)}
}

func (f *MemoryBloom) Add(_ context.Context, item string) error {
	f.mu.Lock()
	f.bf.AddString(item)
	f.mu.Unlock()
	return nil
}

func (f *MemoryBloom) MightContain(_ context.Context, item string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.TestString(item), nil
}

var _ ports.ExistenceFilter = (*MemoryBloom)(nil)
