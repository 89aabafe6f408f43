package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
)

// CacheWarmingService keeps the university read caches populated. The
// repository must be the cached decorator so reads fill the cache.
type CacheWarmingService struct {
	universityRepo repositories.UniversityRepository
	cache          providers.CacheProvider
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	universityRepo repositories.UniversityRepository,
	cache providers.CacheProvider,
) *CacheWarmingService {
	return &CacheWarmingService{
		universityRepo: universityRepo,
		cache:          cache,
	}
}

// WarmCache reads the active university list and each listed university
// through the cache. It returns how many universities were warmed.
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	universities, err := s.universityRepo.List(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch universities: %w", err)
	}

	warmed := 0
	for _, u := range universities {
		if _, err := s.universityRepo.GetByID(ctx, u.ID); err != nil {
			log.Warn().Err(err).Str("university_id", u.ID).Msg("failed to warm university")
			continue
		}
		warmed++
	}

	log.Debug().Int("universities", warmed).Msg("cache warming completed")
	return warmed, nil
}

// StartPeriodicWarming warms once, then again every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if _, err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started periodic cache warming")
}

// InvalidateCache drops every cached university entry
func (s *CacheWarmingService) InvalidateCache(ctx context.Context) error {
	for _, pattern := range []string{"university:*", "universities:*"} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate cache pattern %s: %w", pattern, err)
		}
	}
	return nil
}
