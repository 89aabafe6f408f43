package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
)

// utilityCachePattern matches every cached public utility response. Any
// moderation, edit or review can change listings, search hits and the
// detail view at once.
const utilityCachePattern = providers.HTTPCacheKeyPrefix + "/api/utilities*"

// CacheInvalidationService drops cached utility responses when directory
// events arrive
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelUtilities)
	if err != nil {
		return fmt.Errorf("failed to subscribe to utility events: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Str("channel", providers.EventChannelUtilities).Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	<-s.done
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.DirectoryEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.DirectoryEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.InvalidateUtilityCaches(ctx); err != nil {
		log.Warn().Err(err).Str("utility_id", event.UtilityID).Str("event_type", string(event.Type)).
			Msg("failed to invalidate utility caches")
		return
	}
	log.Debug().Str("utility_id", event.UtilityID).Str("event_type", string(event.Type)).
		Msg("invalidated utility caches")
}

// InvalidateUtilityCaches removes every cached utility response
func (s *CacheInvalidationService) InvalidateUtilityCaches(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, utilityCachePattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", utilityCachePattern, err)
	}
	return nil
}
