package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spaolacci/murmur3"

	"github.com/wadjakorntonsri/go-shortlink/pkg/base62"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/metrics"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

const maxGenerateAttempts = 3

// CodeGenerator derives short codes from the origin URL salted with a random
// UUID and uses the existence filter to skip codes already issued.
type CodeGenerator struct {
	filter     ports.ExistenceFilter
	domainName string
	candidate  func(originURL string) string
}

func NewCodeGenerator(filter ports.ExistenceFilter, domainName string) *CodeGenerator {
	return &CodeGenerator{filter: filter, domainName: domainName, candidate: hashCandidate}
}

func hashCandidate(originURL string) string {
	return base62.Encode(uint64(murmur3.Sum32([]byte(originURL + uuid.NewString()))))
}

func (g *CodeGenerator) Generate(ctx context.Context, originURL string) (string, error) {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code := g.candidate(originURL)

		taken, err := g.filter.MightContain(ctx, domain.LinkKey(g.domainName, code))
		if err != nil {
			// The unique index still rejects a real duplicate.
			log.Warn().Err(err).Str("code", code).Msg("existence filter unavailable, accepting candidate")
			metrics.Degraded("filter", "might_contain")
			return code, nil
		}
		if !taken {
			return code, nil
		}

		metrics.CodeCollisions.Inc()
		log.Warn().
			Str("code", code).
			Int("attempt", attempt+1).
			Msg("Collision detected, retrying")
	}

	return "", domain.ErrCodeGenerationExhausted
}
