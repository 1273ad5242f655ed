// Package bootstrap assembles the adapters and services for a given
// configuration. The server, the CLI and the serverless entrypoint share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/cache"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/filter"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/handler"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/lock"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/stats"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

type App struct {
	Config *config.Config
	Repo   *sqlite.SQLiteRepository
	// Redis is nil in memory mode.
	Redis *redis.Client

	LinkFilter ports.ExistenceFilter
	UserFilter ports.ExistenceFilter

	Services handler.Services

	closers []func() error
}

// New opens the database and wires every service. The filters are seeded
// from the database before New returns whenever they start out empty: always
// in memory mode, and in redis mode when either bitmap is missing.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	app := &App{Config: cfg, Repo: repo}
	app.closers = append(app.closers, repo.Close)

	var (
		store   ports.CacheStore
		locker  ports.Locker
		tracker ports.VisitorTracker
		seed    bool
	)

	switch cfg.StoreMode {
	case config.StoreMemory:
		mem, err := cache.NewMemoryStore(cfg.LocalCacheMaxMB)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("local cache: %w", err)
		}
		app.closers = append(app.closers, func() error { mem.Close(); return nil })
		store = mem
		locker = lock.NewLocalLocker()
		tracker = stats.NewMemoryTracker()
		app.LinkFilter = filter.NewMemoryBloom(cfg.FilterCapacity, cfg.FilterErrorRate)
		app.UserFilter = filter.NewMemoryBloom(cfg.FilterCapacity, cfg.FilterErrorRate)
		seed = true

	case config.StoreRedis, "":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		app.Redis = client
		app.closers = append(app.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}

		store = cache.NewRedisStore(client)
		locker = lock.NewRedisLocker(client, lock.Options{Lease: cfg.LockLease, Renew: true})
		tracker = stats.NewRedisTracker(client)
		linkFilter := filter.NewRedisBloom(client, filter.LinkFilterKey, cfg.FilterCapacity, cfg.FilterErrorRate)
		userFilter := filter.NewRedisBloom(client, filter.UsernameFilterKey, cfg.FilterCapacity, cfg.FilterErrorRate)
		app.LinkFilter, app.UserFilter = linkFilter, userFilter

		for _, f := range []*filter.RedisBloom{linkFilter, userFilter} {
			ok, err := f.Exists(ctx)
			if err != nil {
				_ = app.Close()
				return nil, fmt.Errorf("check filters: %w", err)
			}
			if !ok {
				seed = true
			}
		}

	default:
		_ = app.Close()
		return nil, fmt.Errorf("unknown store mode %q", cfg.StoreMode)
	}

	linkSvc := services.NewLinkService(repo.Links(), repo.Groups(), store, app.LinkFilter, locker, services.LinkOptions{
		Domain:      cfg.Domain,
		DefaultTTL:  cfg.CacheDefaultTTL,
		NullTTL:     cfg.CacheNullTTL,
		FilterGuard: cfg.FilterGuard,
	})
	groupSvc := services.NewGroupService(repo.Groups(), linkSvc, locker, cfg.GroupMaxNum)

	app.Services = handler.Services{
		Links:   linkSvc,
		Recycle: services.NewRecycleBinService(linkSvc),
		Groups:  groupSvc,
		Users:   services.NewUserService(repo.Users(), groupSvc, app.UserFilter, locker),
		Stats:   services.NewStatsService(repo.Links(), tracker, cfg.Domain),
	}

	if seed {
		links, users, err := app.RebuildFilters(ctx)
		if err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("seed filters: %w", err)
		}
		log.Info().Str("store_mode", cfg.StoreMode).Int("links", links).Int("users", users).Msg("existence filters seeded")
	}

	log.Info().Str("store_mode", cfg.StoreMode).Str("domain", cfg.Domain).Msg("application wired")
	return app, nil
}

// Handler returns the HTTP router for the wired services.
func (a *App) Handler() http.Handler {
	return handler.NewRouter(a.Config, a.Services)
}

// RebuildFilters re-adds every issued short link and username to the
// existence filters. Bloom filters cannot drop members, so this only ever
// adds.
func (a *App) RebuildFilters(ctx context.Context) (links, users int, err error) {
	all, err := a.Repo.Links().Dump(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("dump links: %w", err)
	}
	for _, l := range all {
		if err := a.LinkFilter.Add(ctx, domain.LinkKey(l.Domain, l.ShortURI)); err != nil {
			return links, 0, fmt.Errorf("add %s: %w", l.FullShortURL, err)
		}
		links++
	}

	names, err := a.Repo.Users().ListUsernames(ctx)
	if err != nil {
		return links, 0, fmt.Errorf("list usernames: %w", err)
	}
	for _, n := range names {
		if err := a.UserFilter.Add(ctx, n); err != nil {
			return links, users, fmt.Errorf("add %s: %w", n, err)
		}
		users++
	}
	return links, users, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
