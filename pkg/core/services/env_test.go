package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/cache"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/filter"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/lock"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/stats"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	testDomain = "nurl.ink"
	testUserID = int64(42)
)

// countingLinks records how often the store is read on the resolve path.
type countingLinks struct {
	ports.LinkRepository
	finds atomic.Int32
}

func (c *countingLinks) FindActive(ctx context.Context, domainName, code string) (*domain.Link, error) {
	c.finds.Add(1)
	return c.LinkRepository.FindActive(ctx, domainName, code)
}

type env struct {
	mr         *miniredis.Miniredis
	repo       *sqlite.SQLiteRepository
	links      *countingLinks
	linkFilter *filter.RedisBloom
	userFilter *filter.RedisBloom
	locker     *lock.RedisLocker

	linkSvc    *LinkService
	recycleSvc *RecycleBinService
	groupSvc   *GroupService
	userSvc    *UserService
	statsSvc   *StatsService
}

type envOption func(*LinkOptions, *int)

func withoutFilterGuard() envOption {
	return func(o *LinkOptions, _ *int) { o.FilterGuard = false }
}

func withMaxGroups(n int) envOption {
	return func(_ *LinkOptions, max *int) { *max = n }
}

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()

	repo, err := sqlite.NewSQLiteRepository("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	linkOpts := LinkOptions{
		Domain:      testDomain,
		DefaultTTL:  24 * time.Hour,
		NullTTL:     5 * time.Minute,
		FilterGuard: true,
	}
	maxGroups := 20
	for _, o := range opts {
		o(&linkOpts, &maxGroups)
	}

	e := &env{
		mr:         mr,
		repo:       repo,
		links:      &countingLinks{LinkRepository: repo.Links()},
		linkFilter: filter.NewRedisBloom(client, filter.LinkFilterKey, 10_000, 0.001),
		userFilter: filter.NewRedisBloom(client, filter.UsernameFilterKey, 10_000, 0.001),
		locker:     lock.NewRedisLocker(client, lock.Options{Lease: 5 * time.Second, RetryInterval: 2 * time.Millisecond}),
	}

	e.linkSvc = NewLinkService(e.links, repo.Groups(), cache.NewRedisStore(client), e.linkFilter, e.locker, linkOpts)
	e.recycleSvc = NewRecycleBinService(e.linkSvc)
	e.groupSvc = NewGroupService(repo.Groups(), e.linkSvc, e.locker, maxGroups)
	e.userSvc = NewUserService(repo.Users(), e.groupSvc, e.userFilter, e.locker)
	e.statsSvc = NewStatsService(repo.Links(), stats.NewRedisTracker(client), testDomain)
	return e
}

func (e *env) group(t *testing.T, userID int64) string {
	t.Helper()
	g, err := e.groupSvc.CreateGroup(context.Background(), userID, "links")
	require.NoError(t, err)
	return g.Gid
}

func (e *env) create(t *testing.T, gid, originURL string) string {
	t.Helper()
	res, err := e.linkSvc.CreateLink(context.Background(), testUserID, domain.CreateLinkParams{
		OriginURL: originURL,
		Gid:       gid,
	})
	require.NoError(t, err)
	return res.FullShortURL[len("http://"+testDomain+"/"):]
}

// sequence returns the given candidates in order.
func sequence(codes ...string) func(string) string {
	var i int
	return func(string) string {
		c := codes[i%len(codes)]
		i++
		return c
	}
}

type stubFilter struct {
	present map[string]bool
	err     error
}

func (f *stubFilter) Add(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	if f.present == nil {
		f.present = map[string]bool{}
	}
	f.present[key] = true
	return nil
}

func (f *stubFilter) MightContain(_ context.Context, key string) (bool, error) {
	return f.present[key], f.err
}

var errBackendDown = errors.New("backend down")

// flakyFilter fails the first failAdds calls to Add and delegates the rest.
type flakyFilter struct {
	ports.ExistenceFilter
	failAdds int
}

func (f *flakyFilter) Add(ctx context.Context, key string) error {
	if f.failAdds > 0 {
		f.failAdds--
		return errBackendDown
	}
	return f.ExistenceFilter.Add(ctx, key)
}
