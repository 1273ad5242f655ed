package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	gidLength          = 6
	maxGidAttempts     = 10
	maxGroupNameLength = 64
)

type GroupService struct {
	groups    ports.GroupRepository
	links     *LinkService
	locker    ports.Locker
	maxGroups int
}

func NewGroupService(groups ports.GroupRepository, links *LinkService, locker ports.Locker, maxGroups int) *GroupService {
	return &GroupService{groups: groups, links: links, locker: locker, maxGroups: maxGroups}
}

func validGroupName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxGroupNameLength {
		return "", domain.ErrInvalidRequest.Wrap(errors.New("group name must be 1-64 characters"))
	}
	return name, nil
}

// CreateGroup counts and inserts under a per-user lock so concurrent requests
// cannot both pass the quota check.
func (s *GroupService) CreateGroup(ctx context.Context, userID int64, name string) (*domain.Group, error) {
	name, err := validGroupName(name)
	if err != nil {
		return nil, err
	}

	key := groupCreateLockPrefix + strconv.FormatInt(userID, 10)
	lk, err := acquire(ctx, s.locker, key)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	defer release(lk, key)

	count, err := s.groups.CountActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count groups: %w", err)
	}
	if count >= int64(s.maxGroups) {
		return nil, domain.ErrGroupQuotaExceeded.Wrap(fmt.Errorf("limit is %d", s.maxGroups))
	}

	now := time.Now()
	group := &domain.Group{UserID: userID, Name: name, SortOrder: 0, CreatedAt: now, UpdatedAt: now}
	for attempt := 0; attempt < maxGidAttempts; attempt++ {
		group.Gid, err = generateShortCode(gidLength)
		if err != nil {
			return nil, err
		}
		err = s.groups.Create(ctx, group)
		if err == nil {
			return group, nil
		}
		if !errors.Is(err, ports.ErrDuplicateKey) {
			return nil, fmt.Errorf("insert group: %w", err)
		}
		log.Warn().Str("gid", group.Gid).Msg("gid collision, retrying")
	}
	return nil, fmt.Errorf("insert group: %w", err)
}

func (s *GroupService) ListGroups(ctx context.Context, userID int64) ([]domain.Group, error) {
	groups, err := s.groups.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return []domain.Group{}, nil
	}

	gids := make([]string, len(groups))
	for i, g := range groups {
		gids[i] = g.Gid
	}
	counts, err := s.links.GroupLinkCount(ctx, userID, gids)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].LinkCount = counts[i].Count
	}
	return groups, nil
}

func (s *GroupService) UpdateGroup(ctx context.Context, userID int64, gid, name string) error {
	name, err := validGroupName(name)
	if err != nil {
		return err
	}
	n, err := s.groups.Rename(ctx, userID, gid, name)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (s *GroupService) DeleteGroup(ctx context.Context, userID int64, gid string) error {
	n, err := s.groups.Delete(ctx, userID, gid)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (s *GroupService) SortGroups(ctx context.Context, userID int64, sorts []domain.GroupSort) error {
	for _, gs := range sorts {
		if _, err := s.groups.UpdateSortOrder(ctx, userID, gs.Gid, gs.SortOrder); err != nil {
			return err
		}
	}
	return nil
}

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateShortCode(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}

var _ ports.GroupService = (*GroupService)(nil)
