package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// ErrNotHeld is returned by Release when the lease expired and another
// holder took the key.
var ErrNotHeld = errors.New("lock not held")

// KEYS[1] lock key, ARGV[1] holder token
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// KEYS[1] lock key, ARGV[1] holder token, ARGV[2] lease in ms
var renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

type Options struct {
	// Lease is how long a key stays locked without renewal.
	Lease time.Duration
	// RetryInterval is the poll period of a blocking Acquire.
	RetryInterval time.Duration
	// Renew keeps extending the lease every Lease/3 while the lock is held.
	Renew bool
}

// RedisLocker implements SET NX PX based locks shared by every instance
// talking to the same Redis.
type RedisLocker struct {
	client *redis.Client
	opts   Options
}

func NewRedisLocker(client *redis.Client, opts Options) *RedisLocker {
	if opts.Lease <= 0 {
		opts.Lease = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	return &RedisLocker{client: client, opts: opts}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (ports.Lock, error) {
	token := uuid.NewString()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		ok, err := l.client.SetNX(ctx, key, token, l.opts.Lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return l.held(key, token), nil
		}
		timer.Reset(l.opts.RetryInterval)
	}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string) (ports.Lock, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.opts.Lease).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return l.held(key, token), true, nil
}

func (l *RedisLocker) held(key, token string) *redisLock {
	lk := &redisLock{locker: l, key: key, token: token, stop: make(chan struct{})}
	if l.opts.Renew {
		lk.wg.Add(1)
		go lk.watchdog()
	}
	return lk
}

type redisLock struct {
	locker *RedisLocker
	key    string
	token  string

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (lk *redisLock) watchdog() {
	defer lk.wg.Done()
	lease := lk.locker.opts.Lease
	ticker := time.NewTicker(lease / 3)
	defer ticker.Stop()

	for {
		select {
		case <-lk.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), lease/3)
			n, err := renewScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token, lease.Milliseconds()).Int()
			cancel()
			if err != nil {
				log.Warn().Err(err).Str("key", lk.key).Msg("lock renewal failed")
				continue
			}
			if n == 0 {
				log.Warn().Str("key", lk.key).Msg("lock lost before renewal")
				return
			}
		}
	}
}

func (lk *redisLock) Release(ctx context.Context) error {
	var err error
	lk.once.Do(func() {
		close(lk.stop)
		lk.wg.Wait()

		var n int
		n, err = releaseScript.Run(ctx, lk.locker.client, []string{lk.key}, lk.token).Int()
		if err == nil && n == 0 {
			err = ErrNotHeld
		}
	})
	return err
}

var _ ports.Locker = (*RedisLocker)(nil)
