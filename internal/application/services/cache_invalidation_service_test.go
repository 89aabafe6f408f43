package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/campuslink/backend/internal/adapters/events"
	"github.com/zatekoja/campuslink/backend/internal/application/services"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
)

// MockCacheProvider matches patterns with a single trailing wildcard
type MockCacheProvider struct {
	mu       sync.RWMutex
	data     map[string][]byte
	patterns []string
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{data: make(map[string][]byte)}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, errors.New("cache miss")
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func (m *MockCacheProvider) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

func TestCacheInvalidationService_EventDropsUtilityResponses(t *testing.T) {
	cache := NewMockCacheProvider()
	bus := events.NewMemoryEventBus()
	defer bus.Close()

	service := services.NewCacheInvalidationService(cache, bus)
	require.NoError(t, service.Start())
	defer service.Stop()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "http:cache:/api/utilities:abc", []byte("list"), 300))
	require.NoError(t, cache.Set(ctx, "http:cache:/api/utilities/u1:def", []byte("detail"), 300))
	require.NoError(t, cache.Set(ctx, "http:cache:/api/universities:xyz", []byte("unis"), 300))

	u := &entities.Utility{ID: "u1"}
	event := entities.NewDirectoryEvent(u, entities.DirectoryEventVerified, "admin", nil)

	require.NoError(t, bus.Publish(ctx, providers.EventChannelUtilities, event))

	assert.Eventually(t, func() bool {
		keys := cache.Keys()
		return len(keys) == 1 && keys[0] == "http:cache:/api/universities:xyz"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCacheInvalidationService_StartFailsOnClosedBus(t *testing.T) {
	bus := events.NewMemoryEventBus()
	require.NoError(t, bus.Close())

	service := services.NewCacheInvalidationService(NewMockCacheProvider(), bus)
	assert.Error(t, service.Start())
}

func TestCacheInvalidationService_InvalidateUtilityCaches(t *testing.T) {
	cache := NewMockCacheProvider()
	service := services.NewCacheInvalidationService(cache, events.NewMemoryEventBus())

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "http:cache:/api/utilities/search/cafe:1", []byte("x"), 300))
	require.NoError(t, service.InvalidateUtilityCaches(ctx))

	assert.Empty(t, cache.Keys())
	assert.Equal(t, []string{"http:cache:/api/utilities*"}, cache.patterns)
}
