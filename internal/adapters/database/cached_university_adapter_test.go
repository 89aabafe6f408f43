package database

import (
	"context"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/campuslink/backend/internal/adapters/memory"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *fakeCache) has(key string) bool {
	ok, _ := c.Exists(context.Background(), key)
	return ok
}

func testUniversity(id, name string) *entities.University {
	return &entities.University{
		ID:       id,
		Name:     name,
		Location: entities.GeoPoint{Longitude: 77.5, Latitude: 12.9},
		CampusBounds: entities.CampusBounds{
			NorthEast: entities.LatLng{Latitude: 13, Longitude: 77.6},
			SouthWest: entities.LatLng{Latitude: 12.8, Longitude: 77.4},
		},
		City:     "Bengaluru",
		IsActive: true,
	}
}

func TestCachedUniversityAdapter_ReadThroughAndInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	store := memory.NewUniversityStore()
	adapter := NewCachedUniversityAdapter(store, cache)

	require.NoError(t, adapter.Create(ctx, testUniversity("u1", "Alpha")))

	got, err := adapter.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", got.Name)
	assert.Eventually(t, func() bool { return cache.has("university:u1") }, time.Second, 5*time.Millisecond)

	list, err := adapter.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Eventually(t, func() bool { return cache.has("universities:list:active") }, time.Second, 5*time.Millisecond)

	// a write behind the decorator's back is masked by the cache
	renamed := testUniversity("u1", "Alpha Renamed")
	require.NoError(t, store.Update(ctx, renamed))
	cached, err := adapter.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", cached.Name)
	assert.Equal(t, 77.5, cached.Location.Longitude)

	// writes through the decorator invalidate
	require.NoError(t, adapter.Update(ctx, testUniversity("u1", "Alpha Prime")))
	assert.False(t, cache.has("university:u1"))
	assert.False(t, cache.has("universities:list:active"))

	fresh, err := adapter.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Prime", fresh.Name)
}

func TestCachedUniversityAdapter_PassesErrorsThrough(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	adapter := NewCachedUniversityAdapter(memory.NewUniversityStore(), cache)

	_, err := adapter.GetByID(ctx, "missing")
	assert.Error(t, err)
	assert.False(t, cache.has("university:missing"))

	require.NoError(t, adapter.Create(ctx, testUniversity("u1", "Alpha")))
	assert.Error(t, adapter.Create(ctx, testUniversity("u2", "Alpha")))
}
