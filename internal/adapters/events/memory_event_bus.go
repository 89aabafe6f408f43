package events

import (
	"context"
	"fmt"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
)

// MemoryEventBus fans events out to in-process subscribers. It serves
// single-instance deployments without Redis.
type MemoryEventBus struct {
	fan *fanout
}

// NewMemoryEventBus creates an in-process event bus
func NewMemoryEventBus() providers.EventBus {
	return &MemoryEventBus{fan: newFanout()}
}

// Publish delivers event to every current subscriber of channel. Slow
// subscribers with a full buffer miss the event.
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.DirectoryEvent) error {
	if b.fan.isClosed() {
		return fmt.Errorf("event bus is closed")
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	b.fan.deliver(channel, event)
	return nil
}

// Subscribe returns a channel of events that is closed when ctx is done or
// the bus is closed
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DirectoryEvent, error) {
	eventChan, ok := b.fan.add(channel)
	if !ok {
		return nil, fmt.Errorf("event bus is closed")
	}

	go func() {
		<-ctx.Done()
		b.fan.remove(channel, eventChan)
	}()
	return eventChan, nil
}

// Close closes every subscriber channel
func (b *MemoryEventBus) Close() error {
	b.fan.close()
	return nil
}
