package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/metrics"
)

func gotoKey(code string) string   { return "short_link:goto:" + testDomain + "/" + code }
func isNullKey(code string) string { return "short_link:is_null:" + testDomain + "/" + code }

func TestCreateLinkResult(t *testing.T) {
	e := newEnv(t)
	gid := e.group(t, testUserID)

	res, err := e.linkSvc.CreateLink(context.Background(), testUserID, domain.CreateLinkParams{
		OriginURL: "https://example.com/a",
		Gid:       gid,
		Describe:  "docs",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(res.FullShortURL, "http://nurl.ink/"))
	assert.Equal(t, "https://example.com/a", res.OriginURL)
	assert.Equal(t, gid, res.Gid)

	code := strings.TrimPrefix(res.FullShortURL, "http://nurl.ink/")
	present, err := e.linkFilter.MightContain(context.Background(), domain.LinkKey(testDomain, code))
	require.NoError(t, err)
	assert.True(t, present)
}

func TestCreateLinkValidation(t *testing.T) {
	e := newEnv(t)
	gid := e.group(t, testUserID)
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  int64
		params  domain.CreateLinkParams
		wantErr error
	}{
		{"not a url", testUserID, domain.CreateLinkParams{OriginURL: "example", Gid: gid}, domain.ErrInvalidURL},
		{"ftp scheme", testUserID, domain.CreateLinkParams{OriginURL: "ftp://example.com", Gid: gid}, domain.ErrInvalidURL},
		{"custom validity without date", testUserID, domain.CreateLinkParams{OriginURL: "https://example.com", Gid: gid, ValidDateType: domain.ValidDateCustom}, domain.ErrInvalidRequest},
		{"unknown group", testUserID, domain.CreateLinkParams{OriginURL: "https://example.com", Gid: "nope"}, domain.ErrGroupNotFound},
		{"someone else's group", testUserID + 1, domain.CreateLinkParams{OriginURL: "https://example.com", Gid: gid}, domain.ErrGroupNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.linkSvc.CreateLink(ctx, tt.userID, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domain.IsClientError(err))
		})
	}
}

func TestCreateLinkDuplicateCode(t *testing.T) {
	e := newEnv(t)
	gid := e.group(t, testUserID)
	e.linkSvc.gen = NewCodeGenerator(&stubFilter{}, testDomain)
	e.linkSvc.gen.candidate = sequence("abc")

	e.create(t, gid, "https://example.com/1")
	_, err := e.linkSvc.CreateLink(context.Background(), testUserID, domain.CreateLinkParams{
		OriginURL: "https://example.com/2",
		Gid:       gid,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
	assert.False(t, domain.IsClientError(err))
}

func TestCreateLinkGenerationExhausted(t *testing.T) {
	e := newEnv(t)
	gid := e.group(t, testUserID)
	e.linkSvc.gen.candidate = sequence("abc")

	e.create(t, gid, "https://example.com/1")
	_, err := e.linkSvc.CreateLink(context.Background(), testUserID, domain.CreateLinkParams{
		OriginURL: "https://example.com/2",
		Gid:       gid,
	})
	assert.ErrorIs(t, err, domain.ErrCodeGenerationExhausted)
}

func TestCreateLinkFailsWhenFilterRejectsKey(t *testing.T) {
	e := newEnv(t)
	gid := e.group(t, testUserID)
	e.linkSvc.filter = &flakyFilter{ExistenceFilter: e.linkFilter, failAdds: 1}
	ctx := context.Background()

	_, err := e.linkSvc.CreateLink(ctx, testUserID, domain.CreateLinkParams{OriginURL: "https://example.com/flaky", Gid: gid})
	assert.ErrorIs(t, err, domain.ErrFilterUnavailable)
	assert.False(t, domain.IsClientError(err))

	stored, err := e.repo.Links().Dump(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	// the retry lands, and the link survives losing its cache entry
	code := e.create(t, gid, "https://example.com/flaky")
	e.mr.Del(gotoKey(code))

	url, err := e.linkSvc.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/flaky", url)
}

func TestResolveAfterCreateIsServedFromCache(t *testing.T) {
	e := newEnv(t)
	code := e.create(t, e.group(t, testUserID), "https://example.com/cached")

	assert.True(t, e.mr.Exists(gotoKey(code)))
	assert.Equal(t, 24*time.Hour, e.mr.TTL(gotoKey(code)))

	hits := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(metrics.ResultPositiveHit))
	for i := 0; i < 3; i++ {
		url, err := e.linkSvc.Resolve(context.Background(), code)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/cached", url)
	}

	assert.Zero(t, e.links.finds.Load())
	assert.Equal(t, hits+3, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues(metrics.ResultPositiveHit)))
}

func TestResolveReloadsAfterCacheLoss(t *testing.T) {
	e := newEnv(t)
	code := e.create(t, e.group(t, testUserID), "https://example.com/reload")
	e.mr.Del(gotoKey(code))

	url, err := e.linkSvc.Resolve(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/reload", url)
	assert.Equal(t, int32(1), e.links.finds.Load())
	assert.True(t, e.mr.Exists(gotoKey(code)))

	_, err = e.linkSvc.Resolve(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, int32(1), e.links.finds.Load())
}

func TestResolveUnknownCodeWithFilterGuard(t *testing.T) {
	e := newEnv(t)

	_, err := e.linkSvc.Resolve(context.Background(), "Zz9")
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
	assert.Zero(t, e.links.finds.Load())
	assert.True(t, e.mr.Exists(isNullKey("Zz9")))
	assert.Equal(t, 5*time.Minute, e.mr.TTL(isNullKey("Zz9")))
}

func TestResolveUnknownCodeWritesNegativeEntry(t *testing.T) {
	e := newEnv(t, withoutFilterGuard())
	ctx := context.Background()

	_, err := e.linkSvc.Resolve(ctx, "Zz9")
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
	assert.Equal(t, int32(1), e.links.finds.Load())
	assert.True(t, e.mr.Exists(isNullKey("Zz9")))
	assert.False(t, e.mr.Exists(gotoKey("Zz9")))

	// the negative entry now answers without the store
	_, err = e.linkSvc.Resolve(ctx, "Zz9")
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
	assert.Equal(t, int32(1), e.links.finds.Load())
}

func TestResolveRejectsMalformedCodes(t *testing.T) {
	e := newEnv(t, withoutFilterGuard())

	for _, code := range []string{"", "abc-d", "toolong1"} {
		_, err := e.linkSvc.Resolve(context.Background(), code)
		assert.ErrorIs(t, err, domain.ErrLinkNotFound, code)
	}
	assert.Zero(t, e.links.finds.Load())
}

func TestResolveExpiredLink(t *testing.T) {
	e := newEnv(t)
	gid := e.group(t, testUserID)
	ctx := context.Background()

	validDate := time.Now().Add(time.Hour)
	res, err := e.linkSvc.CreateLink(ctx, testUserID, domain.CreateLinkParams{
		OriginURL:     "https://example.com/soon",
		Gid:           gid,
		ValidDateType: domain.ValidDateCustom,
		ValidDate:     &validDate,
	})
	require.NoError(t, err)
	code := strings.TrimPrefix(res.FullShortURL, "http://nurl.ink/")

	ttl := e.mr.TTL(gotoKey(code))
	assert.LessOrEqual(t, ttl, time.Hour)
	assert.Greater(t, ttl, 59*time.Minute)

	// the positive entry lapses with the link
	e.mr.FastForward(ttl + time.Second)
	e.linkSvc.now = func() time.Time { return validDate.Add(time.Second) }

	_, err = e.linkSvc.Resolve(ctx, code)
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)
	assert.True(t, e.mr.Exists(isNullKey(code)))
}

func TestUpdateLinkInvalidatesCache(t *testing.T) {
	e := newEnv(t)
	gid := e.group(t, testUserID)
	ctx := context.Background()
	code := e.create(t, gid, "https://example.com/old")

	_, err := e.linkSvc.Resolve(ctx, code)
	require.NoError(t, err)

	err = e.linkSvc.UpdateLink(ctx, testUserID, domain.UpdateLinkParams{
		ShortURI:  code,
		OriginGid: gid,
		OriginURL: "https://example.com/new",
		Describe:  "moved",
	})
	require.NoError(t, err)
	assert.False(t, e.mr.Exists(gotoKey(code)))

	url, err := e.linkSvc.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", url)
}

func TestUpdateLinkMovesGroup(t *testing.T) {
	e := newEnv(t)
	from := e.group(t, testUserID)
	to := e.group(t, testUserID)
	ctx := context.Background()
	code := e.create(t, from, "https://example.com/x")

	err := e.linkSvc.UpdateLink(ctx, testUserID, domain.UpdateLinkParams{
		ShortURI: code, OriginGid: from, Gid: to, OriginURL: "https://example.com/x",
	})
	require.NoError(t, err)

	page, err := e.linkSvc.PageLinks(ctx, testUserID, to, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, code, page.Records[0].ShortURI)

	err = e.linkSvc.UpdateLink(ctx, testUserID, domain.UpdateLinkParams{
		ShortURI: code, OriginGid: to, Gid: "missing", OriginURL: "https://example.com/x",
	})
	assert.ErrorIs(t, err, domain.ErrGroupNotFound)
}

func TestUpdateLinkRequiresOwnership(t *testing.T) {
	e := newEnv(t)
	gid := e.group(t, testUserID)
	ctx := context.Background()
	code := e.create(t, gid, "https://example.com/mine")

	err := e.linkSvc.UpdateLink(ctx, testUserID+1, domain.UpdateLinkParams{
		ShortURI: code, OriginGid: gid, OriginURL: "https://evil.example.com",
	})
	assert.ErrorIs(t, err, domain.ErrLinkNotFound)

	// untouched: still served from cache with the original target
	assert.True(t, e.mr.Exists(gotoKey(code)))
	url, err := e.linkSvc.Resolve(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/mine", url)
}

func TestPageLinksAndGroupCounts(t *testing.T) {
	e := newEnv(t)
	g1 := e.group(t, testUserID)
	g2 := e.group(t, testUserID)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e.create(t, g1, fmt.Sprintf("https://example.com/%d", i))
	}

	page, err := e.linkSvc.PageLinks(ctx, testUserID, g1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Records, 2)

	page, err = e.linkSvc.PageLinks(ctx, testUserID, g1, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)

	counts, err := e.linkSvc.GroupLinkCount(ctx, testUserID, []string{g1, g2})
	require.NoError(t, err)
	assert.Equal(t, []domain.GroupLinkCount{{Gid: g1, Count: 3}, {Gid: g2, Count: 0}}, counts)
}

func TestResolveFailsOpenWhenRedisIsDown(t *testing.T) {
	e := newEnv(t)
	code := e.create(t, e.group(t, testUserID), "https://example.com/degraded")
	e.mr.Close()

	before := testutil.ToFloat64(metrics.DegradedOps.WithLabelValues("cache", "is_negative"))
	url, err := e.linkSvc.Resolve(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/degraded", url)
	assert.Greater(t, testutil.ToFloat64(metrics.DegradedOps.WithLabelValues("cache", "is_negative")), before)
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	e := newEnv(t)
	code := e.create(t, e.group(t, testUserID), "https://example.com/hot")
	e.mr.Del(gotoKey(code))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, err := e.linkSvc.Resolve(context.Background(), code)
			assert.NoError(t, err)
			assert.Equal(t, "https://example.com/hot", url)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), e.links.finds.Load())
}
