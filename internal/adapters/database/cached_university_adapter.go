package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
)

// CachedUniversityAdapter wraps a UniversityRepository with read-through caching
type CachedUniversityAdapter struct {
	adapter repositories.UniversityRepository
	cache   providers.CacheProvider
}

// NewCachedUniversityAdapter creates a new cached university adapter
func NewCachedUniversityAdapter(adapter repositories.UniversityRepository, cache providers.CacheProvider) repositories.UniversityRepository {
	return &CachedUniversityAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

// Cache TTLs (in seconds)
const (
	universityByIDTTL    = 600
	universitiesListTTL  = 300
	universityListPrefix = "universities:list:"
)

func universityCacheKey(id string) string {
	return fmt.Sprintf("university:%s", id)
}

func universitiesListCacheKey(activeOnly bool) string {
	if activeOnly {
		return universityListPrefix + "active"
	}
	return universityListPrefix + "all"
}

// GetByID retrieves a university with caching
func (a *CachedUniversityAdapter) GetByID(ctx context.Context, id string) (*entities.University, error) {
	cacheKey := universityCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var university entities.University
		if err := json.Unmarshal(cached, &university); err == nil {
			return &university, nil
		}
		log.Warn().Err(err).Str("key", cacheKey).Msg("failed to unmarshal cached university")
	}

	university, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.setAsync(cacheKey, university, universityByIDTTL)
	return university, nil
}

// List retrieves universities with caching
func (a *CachedUniversityAdapter) List(ctx context.Context, activeOnly bool) ([]*entities.University, error) {
	cacheKey := universitiesListCacheKey(activeOnly)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var universities []*entities.University
		if err := json.Unmarshal(cached, &universities); err == nil {
			return universities, nil
		}
		log.Warn().Err(err).Str("key", cacheKey).Msg("failed to unmarshal cached university list")
	}

	universities, err := a.adapter.List(ctx, activeOnly)
	if err != nil {
		return nil, err
	}

	a.setAsync(cacheKey, universities, universitiesListTTL)
	return universities, nil
}

// GetByName is not cached; it guards writes
func (a *CachedUniversityAdapter) GetByName(ctx context.Context, name string) (*entities.University, error) {
	return a.adapter.GetByName(ctx, name)
}

// QueryNear is not cached
func (a *CachedUniversityAdapter) QueryNear(ctx context.Context, point entities.GeoPoint, radiusMeters float64) ([]*entities.University, error) {
	return a.adapter.QueryNear(ctx, point, radiusMeters)
}

// QueryText is not cached
func (a *CachedUniversityAdapter) QueryText(ctx context.Context, substring string) ([]*entities.University, error) {
	return a.adapter.QueryText(ctx, substring)
}

// Create creates a university and drops cached lists
func (a *CachedUniversityAdapter) Create(ctx context.Context, university *entities.University) error {
	if err := a.adapter.Create(ctx, university); err != nil {
		return err
	}
	a.invalidate(ctx, university.ID)
	return nil
}

// Update updates a university and drops its cached entries
func (a *CachedUniversityAdapter) Update(ctx context.Context, university *entities.University) error {
	if err := a.adapter.Update(ctx, university); err != nil {
		return err
	}
	a.invalidate(ctx, university.ID)
	return nil
}

func (a *CachedUniversityAdapter) invalidate(ctx context.Context, id string) {
	if err := a.cache.Delete(ctx, universityCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("university_id", id).Msg("failed to invalidate cached university")
	}
	if err := a.cache.DeletePattern(ctx, universityListPrefix+"*"); err != nil {
		log.Warn().Err(err).Msg("failed to invalidate cached university lists")
	}
}

// setAsync updates the cache without blocking the response
func (a *CachedUniversityAdapter) setAsync(key string, value interface{}, ttl int) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to marshal value for cache")
		return
	}
	go func() {
		if err := a.cache.Set(context.Background(), key, data, ttl); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache value")
		}
	}()
}
