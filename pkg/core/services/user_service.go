package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const minPasswordLength = 6

type UserService struct {
	users  ports.UserRepository
	groups ports.GroupService
	filter ports.ExistenceFilter
	locker ports.Locker
}

func NewUserService(users ports.UserRepository, groups ports.GroupService, filter ports.ExistenceFilter, locker ports.Locker) *UserService {
	return &UserService{users: users, groups: groups, filter: filter, locker: locker}
}

// Register creates the account and its default group. Concurrent attempts
// for the same username are rejected rather than queued.
func (s *UserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" || len(params.Password) < minPasswordLength {
		return nil, domain.ErrInvalidRequest.Wrap(errors.New("username and a password of at least 6 characters are required"))
	}

	taken, err := s.filter.MightContain(ctx, username)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("username filter unavailable")
		metrics.Degraded("filter", "might_contain")
	} else if taken {
		return nil, domain.ErrUsernameTaken
	}

	key := userRegisterLockPrefix + username
	lk, ok, err := tryAcquire(ctx, s.locker, key)
	if err != nil {
		return nil, fmt.Errorf("register lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrUsernameTaken
	}
	defer release(lk, key)

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		RealName:     params.RealName,
		Phone:        params.Phone,
		Mail:         params.Mail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			return nil, domain.ErrUserExists.Wrap(err)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if _, err := s.groups.CreateGroup(ctx, user.ID, domain.DefaultGroupName); err != nil {
		// An account without its default group is unusable, so the row goes.
		if delErr := s.users.Delete(context.WithoutCancel(ctx), user.ID); delErr != nil {
			log.Error().Err(delErr).Int64("user_id", user.ID).Msg("remove user after default group failure")
		}
		return nil, fmt.Errorf("create default group: %w", err)
	}

	// Only finished accounts enter the filter. A name that misses it is still
	// guarded by the unique index on insert.
	if err := s.filter.Add(ctx, username); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("add username to filter")
		metrics.Degraded("filter", "add")
	}

	log.Info().Int64("user_id", user.ID).Str("username", username).Msg("user registered")
	return user, nil
}

// UsernameAvailable answers from the filter and falls back to the store when
// the filter is unreachable.
func (s *UserService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := s.filter.MightContain(ctx, username)
	if err == nil {
		return !taken, nil
	}
	log.Warn().Err(err).Str("username", username).Msg("username filter unavailable")
	metrics.Degraded("filter", "might_contain")

	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return u == nil, nil
}

func (s *UserService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

var _ ports.UserService = (*UserService)(nil)
