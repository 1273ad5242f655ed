package services

import (
	"context"
	"fmt"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// RecycleBinService moves links between the active set and the recycle bin.
// Every transition is a conditional update on the owner, the group and the
// current state, followed by cache invalidation.
type RecycleBinService struct {
	links *LinkService
}

func NewRecycleBinService(links *LinkService) *RecycleBinService {
	return &RecycleBinService{links: links}
}

func (s *RecycleBinService) transition(ctx context.Context, userID int64, gid, code string, from int, patch domain.LinkPatch) error {
	if gid == "" || code == "" {
		return domain.ErrInvalidRequest
	}

	n, err := s.links.links.UpdateWhere(ctx, domain.LinkFilter{
		Domain:       s.links.opts.Domain,
		ShortURI:     code,
		UserID:       userID,
		Gids:         []string{gid},
		EnableStatus: domain.IntPtr(from),
		DelFlag:      domain.IntPtr(0),
	}, patch)
	if err != nil {
		return fmt.Errorf("recycle bin update: %w", err)
	}
	if n == 0 {
		return domain.ErrLinkNotFound
	}

	s.links.invalidate(ctx, code)
	return nil
}

// Save disables an active link.
func (s *RecycleBinService) Save(ctx context.Context, userID int64, gid, code string) error {
	return s.transition(ctx, userID, gid, code, domain.EnableActive,
		domain.LinkPatch{EnableStatus: domain.IntPtr(domain.EnableDisabled)})
}

// Recover re-enables a link from the recycle bin.
func (s *RecycleBinService) Recover(ctx context.Context, userID int64, gid, code string) error {
	return s.transition(ctx, userID, gid, code, domain.EnableDisabled,
		domain.LinkPatch{EnableStatus: domain.IntPtr(domain.EnableActive)})
}

// Remove permanently deletes a link that is in the recycle bin.
func (s *RecycleBinService) Remove(ctx context.Context, userID int64, gid, code string) error {
	delTime := s.links.now().UnixMilli()
	return s.transition(ctx, userID, gid, code, domain.EnableDisabled,
		domain.LinkPatch{DelFlag: domain.IntPtr(1), DelTime: &delTime})
}

func (s *RecycleBinService) Page(ctx context.Context, userID int64, gids []string, page, size int) (*domain.Page[domain.Link], error) {
	if len(gids) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	return pageLinks(ctx, s.links.links, domain.LinkFilter{
		UserID:       userID,
		Gids:         gids,
		EnableStatus: domain.IntPtr(domain.EnableDisabled),
		DelFlag:      domain.IntPtr(0),
	}, page, size)
}

var _ ports.RecycleBinService = (*RecycleBinService)(nil)
