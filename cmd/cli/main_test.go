package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/filter"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

func newRepo(t *testing.T) *sqlite.SQLiteRepository {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newRepo(t)
	now := time.Now().UTC().Truncate(time.Second)

	live := &domain.Link{Domain: "s.io", ShortURI: "abc", FullShortURL: "s.io/abc", OriginURL: "https://example.com/a",
		Gid: "g1", UserID: 3, CreatedAt: now, UpdatedAt: now}
	removed := &domain.Link{Domain: "s.io", ShortURI: "old", FullShortURL: "s.io/old", OriginURL: "https://example.com/o",
		Gid: "g1", UserID: 3, EnableStatus: domain.EnableDisabled, DelFlag: 1, DelTime: 1700000000000, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, src.Links().Create(ctx, live))
	require.NoError(t, src.Links().Create(ctx, removed))
	require.NoError(t, src.Links().IncrementStats(ctx, "s.io", "abc", domain.VisitDelta{PV: 5, UV: 2, UIP: 1}))

	var buf bytes.Buffer
	require.NoError(t, doExport(ctx, src.Links(), &buf))
	assert.Contains(t, buf.String(), `"user_id": 3`)

	dst := newRepo(t)
	bf := filter.NewMemoryBloom(1000, 0.001)
	imported, skipped, err := doImport(ctx, dst.Links(), bf, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Zero(t, skipped)

	got, err := dst.Links().FindActive(ctx, "s.io", "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), got.UserID)
	assert.Equal(t, int64(5), got.TotalPV)
	assert.Equal(t, int64(2), got.TotalUV)

	all, err := dst.Links().Dump(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[1].DelFlag)

	ok, err := bf.MightContain(ctx, "s.io/abc")
	require.NoError(t, err)
	assert.True(t, ok)

	// a second import finds the live code already present
	imported, skipped, err = doImport(ctx, dst.Links(), bf, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Equal(t, 1, skipped)
}
