package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	groupCreateLockPrefix  = "short_link:group_create_lock:"
	userRegisterLockPrefix = "short_link:user_register_lock:"
	gotoLockPrefix         = "short_link:lock_goto:"
)

func acquire(ctx context.Context, locker ports.Locker, key string) (ports.Lock, error) {
	lk, err := locker.Acquire(ctx, key)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.LockAcquisitions.WithLabelValues("blocking", "timeout").Inc()
		return nil, domain.ErrResourceBusy.Wrap(err)
	case err != nil:
		metrics.LockAcquisitions.WithLabelValues("blocking", "error").Inc()
		return nil, err
	}
	metrics.LockAcquisitions.WithLabelValues("blocking", "acquired").Inc()
	return lk, nil
}

func tryAcquire(ctx context.Context, locker ports.Locker, key string) (ports.Lock, bool, error) {
	lk, ok, err := locker.TryAcquire(ctx, key)
	switch {
	case err != nil:
		metrics.LockAcquisitions.WithLabelValues("try", "error").Inc()
	case !ok:
		metrics.LockAcquisitions.WithLabelValues("try", "busy").Inc()
	default:
		metrics.LockAcquisitions.WithLabelValues("try", "acquired").Inc()
	}
	return lk, ok, err
}

// release runs detached from the request context so a cancelled request
// still frees its lock.
func release(lk ports.Lock, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := lk.Release(ctx); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("release lock")
	}
}
