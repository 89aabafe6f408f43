package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
)

func testEvent(id string) *entities.DirectoryEvent {
	return &entities.DirectoryEvent{ID: id, UtilityID: "u1", Type: entities.DirectoryEventVerified}
}

func receive(t *testing.T, ch <-chan *entities.DirectoryEvent) *entities.DirectoryEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestMemoryEventBus_FanOut(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, err := bus.Subscribe(ctx, providers.EventChannelUtilities)
	require.NoError(t, err)
	second, err := bus.Subscribe(ctx, providers.EventChannelUtilities)
	require.NoError(t, err)
	other, err := bus.Subscribe(ctx, providers.GetSubmitterChannel("someone"))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, providers.EventChannelUtilities, testEvent("e1")))

	assert.Equal(t, "e1", receive(t, first).ID)
	assert.Equal(t, "e1", receive(t, second).ID)
	select {
	case ev := <-other:
		t.Fatalf("unexpected event %v on another channel", ev)
	default:
	}
}

func TestMemoryEventBus_CancelClosesSubscription(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, "c")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	assert.NoError(t, bus.Publish(context.Background(), "c", testEvent("e2")))
}

func TestMemoryEventBus_Close(t *testing.T) {
	bus := NewMemoryEventBus()
	ch, err := bus.Subscribe(context.Background(), "c")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.Error(t, bus.Publish(context.Background(), "c", testEvent("e3")))
	_, err = bus.Subscribe(context.Background(), "c")
	assert.Error(t, err)
	assert.NoError(t, bus.Close())
}
