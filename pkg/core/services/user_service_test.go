package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

func TestRegister(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.userSvc.Register(ctx, domain.RegisterParams{Username: "alice", Password: "s3cret!", Mail: "a@example.com"})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret!")))

	groups, err := e.groupSvc.ListGroups(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, domain.DefaultGroupName, groups[0].Name)

	available, err := e.userSvc.UsernameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = e.userSvc.UsernameAvailable(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, available)

	got, err := e.userSvc.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = e.userSvc.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRegisterRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.userSvc.Register(ctx, domain.RegisterParams{Username: "alice", Password: "s3cret!"})
	require.NoError(t, err)

	t.Run("username in filter", func(t *testing.T) {
		_, err := e.userSvc.Register(ctx, domain.RegisterParams{Username: "alice", Password: "another"})
		assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	})

	t.Run("registration in progress", func(t *testing.T) {
		held, ok, err := e.locker.TryAcquire(ctx, "short_link:user_register_lock:carol")
		require.NoError(t, err)
		require.True(t, ok)
		defer held.Release(ctx)

		_, err = e.userSvc.Register(ctx, domain.RegisterParams{Username: "carol", Password: "s3cret!"})
		assert.ErrorIs(t, err, domain.ErrUsernameTaken)
	})

	t.Run("row exists but filter missed it", func(t *testing.T) {
		now := time.Now()
		require.NoError(t, e.repo.Users().Create(ctx, &domain.User{Username: "dave", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}))

		_, err := e.userSvc.Register(ctx, domain.RegisterParams{Username: "dave", Password: "s3cret!"})
		assert.ErrorIs(t, err, domain.ErrUserExists)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := e.userSvc.Register(ctx, domain.RegisterParams{Username: "erin", Password: "123"})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestUsernameAvailableFallsBackToStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.userSvc.Register(ctx, domain.RegisterParams{Username: "alice", Password: "s3cret!"})
	require.NoError(t, err)

	e.userSvc.filter = &stubFilter{err: errBackendDown}

	available, err := e.userSvc.UsernameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, available)

	available, err = e.userSvc.UsernameAvailable(ctx, "zed")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestRegisterRollsBackWithoutDefaultGroup(t *testing.T) {
	e := newEnv(t, withMaxGroups(0))
	ctx := context.Background()

	_, err := e.userSvc.Register(ctx, domain.RegisterParams{Username: "frank", Password: "s3cret!"})
	assert.ErrorIs(t, err, domain.ErrGroupQuotaExceeded)

	_, err = e.userSvc.GetUser(ctx, "frank")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	available, err := e.userSvc.UsernameAvailable(ctx, "frank")
	require.NoError(t, err)
	assert.True(t, available)

	e.groupSvc.maxGroups = 20
	u, err := e.userSvc.Register(ctx, domain.RegisterParams{Username: "frank", Password: "s3cret!"})
	require.NoError(t, err)

	groups, err := e.groupSvc.ListGroups(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, domain.DefaultGroupName, groups[0].Name)
}
