package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const (
	uvSetPrefix  = "short_link:stats:uv:"
	uipSetPrefix = "short_link:stats:uip:"
)

// StatsService keeps the pv/uv/uip totals of each link.
type StatsService struct {
	links      ports.LinkRepository
	tracker    ports.VisitorTracker
	domainName string
}

func NewStatsService(links ports.LinkRepository, tracker ports.VisitorTracker, domainName string) *StatsService {
	return &StatsService{links: links, tracker: tracker, domainName: domainName}
}

func (s *StatsService) RecordVisit(ctx context.Context, visit domain.Visit) error {
	if visit.ShortURI == "" {
		return domain.ErrInvalidRequest
	}
	if visit.Domain == "" {
		visit.Domain = s.domainName
	}
	key := domain.LinkKey(visit.Domain, visit.ShortURI)

	delta := domain.VisitDelta{PV: 1}
	if visit.Visitor != "" && s.firstSeen(ctx, uvSetPrefix+key, visit.Visitor) {
		delta.UV = 1
	}
	if visit.IP != "" && s.firstSeen(ctx, uipSetPrefix+key, visit.IP) {
		delta.UIP = 1
	}

	if err := s.links.IncrementStats(ctx, visit.Domain, visit.ShortURI, delta); err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

func (s *StatsService) firstSeen(ctx context.Context, set, member string) bool {
	seen, err := s.tracker.Seen(ctx, set, member)
	if err != nil {
		log.Warn().Err(err).Str("set", set).Msg("visitor tracker unavailable")
		metrics.Degraded("tracker", "seen")
		return false
	}
	return seen
}

var _ ports.StatsService = (*StatsService)(nil)
