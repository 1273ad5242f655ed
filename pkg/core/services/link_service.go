package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/base62"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const maxCodeLength = 6 // base62 of a 32-bit hash

type LinkOptions struct {
	Domain     string
	DefaultTTL time.Duration
	NullTTL    time.Duration
	// FilterGuard lets Resolve answer "not found" from the existence filter
	// before touching the store.
	FilterGuard bool
}

type LinkService struct {
	links  ports.LinkRepository
	groups ports.GroupRepository
	cache  ports.CacheStore
	filter ports.ExistenceFilter
	locker ports.Locker
	gen    *CodeGenerator
	opts   LinkOptions
	now    func() time.Time
}

func NewLinkService(
	links ports.LinkRepository,
	groups ports.GroupRepository,
	cache ports.CacheStore,
	filter ports.ExistenceFilter,
	locker ports.Locker,
	opts LinkOptions,
) *LinkService {
	return &LinkService{
		links:  links,
		groups: groups,
		cache:  cache,
		filter: filter,
		locker: locker,
		gen:    NewCodeGenerator(filter, opts.Domain),
		opts:   opts,
		now:    time.Now,
	}
}

func validateOriginURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ErrInvalidURL
	}
	return nil
}

func validateValidity(validDateType int, validDate *time.Time) error {
	switch validDateType {
	case domain.ValidDatePermanent:
		return nil
	case domain.ValidDateCustom:
		if validDate == nil {
			return domain.ErrInvalidRequest.Wrap(errors.New("custom validity requires valid_date"))
		}
		return nil
	default:
		return domain.ErrInvalidRequest.Wrap(fmt.Errorf("unknown valid_date_type %d", validDateType))
	}
}

func (s *LinkService) requireGroup(ctx context.Context, userID int64, gid string) error {
	g, err := s.groups.FindByGid(ctx, userID, gid)
	if err != nil {
		return err
	}
	if g == nil {
		return domain.ErrGroupNotFound
	}
	return nil
}

func (s *LinkService) CreateLink(ctx context.Context, userID int64, params domain.CreateLinkParams) (*domain.CreateLinkResult, error) {
	if err := validateOriginURL(params.OriginURL); err != nil {
		return nil, err
	}
	if err := validateValidity(params.ValidDateType, params.ValidDate); err != nil {
		return nil, err
	}
	if err := s.requireGroup(ctx, userID, params.Gid); err != nil {
		return nil, err
	}

	code, err := s.gen.Generate(ctx, params.OriginURL)
	if err != nil {
		return nil, err
	}

	now := s.now()
	link := &domain.Link{
		Domain:        s.opts.Domain,
		ShortURI:      code,
		FullShortURL:  domain.LinkKey(s.opts.Domain, code),
		OriginURL:     params.OriginURL,
		Gid:           params.Gid,
		UserID:        userID,
		ValidDateType: params.ValidDateType,
		Describe:      params.Describe,
		EnableStatus:  domain.EnableActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if params.ValidDateType == domain.ValidDateCustom {
		link.ValidDate = params.ValidDate
	}

	// The filter must hold the key before the row exists, otherwise the
	// resolve guard could reject a live link. A key left behind by a failed
	// insert is only a false positive.
	key := link.FullShortURL
	if err := s.filter.Add(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("add short link to existence filter")
		return nil, domain.ErrFilterUnavailable.Wrap(err)
	}

	if err := s.links.Create(ctx, link); err != nil {
		if errors.Is(err, ports.ErrDuplicateKey) {
			log.Warn().Str("full_short_url", link.FullShortURL).Msg("duplicate short link generated")
			return nil, domain.ErrDuplicateCode.Wrap(err)
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	s.cachePositive(ctx, key, link.OriginURL, link.ValidDate)

	return &domain.CreateLinkResult{
		FullShortURL: "http://" + link.FullShortURL,
		OriginURL:    link.OriginURL,
		Gid:          link.Gid,
	}, nil
}

// Resolve maps a short code to its origin URL. Cache and filter failures are
// logged and the lookup falls through to the store.
func (s *LinkService) Resolve(ctx context.Context, code string) (string, error) {
	if len(code) > maxCodeLength || !base62.IsValid(code) {
		return "", domain.ErrLinkNotFound
	}
	key := domain.LinkKey(s.opts.Domain, code)

	if originURL, found, done := s.lookupCache(ctx, key); done {
		if !found {
			return "", domain.ErrLinkNotFound
		}
		return originURL, nil
	}
	metrics.CacheLookups.WithLabelValues(metrics.ResultMiss).Inc()

	if s.opts.FilterGuard {
		present, err := s.filter.MightContain(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("existence filter unavailable")
			metrics.Degraded("filter", "might_contain")
		} else if !present {
			metrics.FilterRejections.Inc()
			s.cacheNegative(ctx, key)
			return "", domain.ErrLinkNotFound
		}
	}

	// One loader per key; the rest wait and re-read the cache.
	lk, err := acquire(ctx, s.locker, gotoLockPrefix+key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("goto lock unavailable, loading without it")
		metrics.Degraded("lock", "acquire")
	} else {
		defer release(lk, gotoLockPrefix+key)
		if originURL, found, done := s.lookupCache(ctx, key); done {
			if !found {
				return "", domain.ErrLinkNotFound
			}
			return originURL, nil
		}
	}

	link, err := s.links.FindActive(ctx, s.opts.Domain, code)
	if err != nil {
		return "", fmt.Errorf("find link: %w", err)
	}
	if link == nil || link.Expired(s.now()) {
		s.cacheNegative(ctx, key)
		return "", domain.ErrLinkNotFound
	}

	s.cachePositive(ctx, key, link.OriginURL, link.ValidDate)
	return link.OriginURL, nil
}

// lookupCache returns done == true when the cache alone answers the lookup.
func (s *LinkService) lookupCache(ctx context.Context, key string) (originURL string, found, done bool) {
	negative, err := s.cache.IsNegative(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("read negative cache entry")
		metrics.Degraded("cache", "is_negative")
	} else if negative {
		metrics.CacheLookups.WithLabelValues(metrics.ResultNegativeHit).Inc()
		return "", false, true
	}

	originURL, ok, err := s.cache.GetPositive(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("read positive cache entry")
		metrics.Degraded("cache", "get_positive")
		return "", false, false
	}
	if ok {
		metrics.CacheLookups.WithLabelValues(metrics.ResultPositiveHit).Inc()
		return originURL, true, true
	}
	return "", false, false
}

func (s *LinkService) cachePositive(ctx context.Context, key, originURL string, validDate *time.Time) {
	ttl := linkCacheTTL(validDate, s.now(), s.opts.DefaultTTL)
	if ttl <= 0 {
		return
	}
	if err := s.cache.SetPositive(ctx, key, originURL, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("write positive cache entry")
		metrics.Degraded("cache", "set_positive")
	}
}

func (s *LinkService) cacheNegative(ctx context.Context, key string) {
	if err := s.cache.SetNegative(ctx, key, s.opts.NullTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("write negative cache entry")
		metrics.Degraded("cache", "set_negative")
	}
}

// invalidate drops both cache entries after a committed mutation. A failure
// leaves stale data for at most one TTL.
func (s *LinkService) invalidate(ctx context.Context, code string) {
	key := domain.LinkKey(s.opts.Domain, code)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("invalidate cache after update")
		metrics.Degraded("cache", "invalidate")
	}
}

func (s *LinkService) UpdateLink(ctx context.Context, userID int64, params domain.UpdateLinkParams) error {
	if params.ShortURI == "" || params.OriginGid == "" {
		return domain.ErrInvalidRequest
	}
	if err := validateOriginURL(params.OriginURL); err != nil {
		return err
	}
	if err := validateValidity(params.ValidDateType, params.ValidDate); err != nil {
		return err
	}
	gid := params.Gid
	if gid == "" {
		gid = params.OriginGid
	}
	if gid != params.OriginGid {
		if err := s.requireGroup(ctx, userID, gid); err != nil {
			return err
		}
	}

	patch := domain.LinkPatch{
		OriginURL:     &params.OriginURL,
		Gid:           &gid,
		ValidDateType: &params.ValidDateType,
		Describe:      &params.Describe,
	}
	if params.ValidDateType == domain.ValidDatePermanent {
		patch.ClearValid = true
	} else {
		patch.ValidDate = params.ValidDate
	}

	n, err := s.links.UpdateWhere(ctx, domain.LinkFilter{
		Domain:       s.opts.Domain,
		ShortURI:     params.ShortURI,
		UserID:       userID,
		Gids:         []string{params.OriginGid},
		EnableStatus: domain.IntPtr(domain.EnableActive),
		DelFlag:      domain.IntPtr(0),
	}, patch)
	if err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	if n == 0 {
		return domain.ErrLinkNotFound
	}

	s.invalidate(ctx, params.ShortURI)
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return page, size
}

func (s *LinkService) PageLinks(ctx context.Context, userID int64, gid string, page, size int) (*domain.Page[domain.Link], error) {
	if gid == "" {
		return nil, domain.ErrInvalidRequest
	}
	return pageLinks(ctx, s.links, domain.LinkFilter{
		UserID:       userID,
		Gids:         []string{gid},
		EnableStatus: domain.IntPtr(domain.EnableActive),
		DelFlag:      domain.IntPtr(0),
	}, page, size)
}

func pageLinks(ctx context.Context, repo ports.LinkRepository, filter domain.LinkFilter, page, size int) (*domain.Page[domain.Link], error) {
	page, size = normalizePage(page, size)

	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	links, err := repo.List(ctx, filter, size, (page-1)*size)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.Link{}
	}
	return &domain.Page[domain.Link]{Records: links, Total: total, Page: page, Size: size}, nil
}

func (s *LinkService) GroupLinkCount(ctx context.Context, userID int64, gids []string) ([]domain.GroupLinkCount, error) {
	counts, err := s.links.CountByGroup(ctx, userID, gids)
	if err != nil {
		return nil, err
	}
	byGid := make(map[string]int64, len(counts))
	for _, c := range counts {
		byGid[c.Gid] = c.Count
	}

	out := make([]domain.GroupLinkCount, 0, len(gids))
	for _, gid := range gids {
		out = append(out, domain.GroupLinkCount{Gid: gid, Count: byGid[gid]})
	}
	return out, nil
}

var _ ports.LinkService = (*LinkService)(nil)
