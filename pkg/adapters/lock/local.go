package lock

import (
	"context"
	"sync"

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// LocalLocker serializes callers inside one process. Locks die with the
// process, so no lease is needed.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (ports.Lock, error) {
	for {
		lk, wait := l.try(key)
		if lk != nil {
			return lk, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string) (ports.Lock, bool, error) {
	lk, _ := l.try(key)
	return lk, lk != nil, nil
}

// try returns the lock, or the channel closed when the current holder
// releases.
func (l *LocalLocker) try(key string) (*localLock, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.held[key]; ok {
		return nil, ch
	}
	ch := make(chan struct{})
	l.held[key] = ch
	return &localLock{locker: l, key: key, ch: ch}, nil
}

type localLock struct {
	locker *LocalLocker
	key    string
	ch     chan struct{}
	once   sync.Once
}

func (lk *localLock) Release(context.Context) error {
	lk.once.Do(func() {
		lk.locker.mu.Lock()
		delete(lk.locker.held, lk.key)
		lk.locker.mu.Unlock()
		close(lk.ch)
	})
	return nil
}

var _ ports.Locker = (*LocalLocker)(nil)
