package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
	redisclient "github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/redis"
)

// RedisEventBus carries directory events between instances over Redis
// Pub/Sub. One pattern subscription covers the directory channel and every
// submitter channel; messages are routed to local subscribers by channel
// name.
type RedisEventBus struct {
	client *redisclient.Client
	fan    *fanout

	mu     sync.Mutex
	pubsub *redis.PubSub

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a Redis-backed event bus. Nothing is subscribed
// until the first local subscriber arrives.
func NewRedisEventBus(client *redisclient.Client) providers.EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client: client,
		fan:    newFanout(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Publish validates event and publishes it on a directory channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.DirectoryEvent) error {
	if b.fan.isClosed() {
		return fmt.Errorf("event bus is closed")
	}
	if !providers.IsDirectoryChannel(channel) {
		return fmt.Errorf("not a directory channel: %q", channel)
	}
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if b.client == nil {
		return fmt.Errorf("redis client is not configured")
	}
	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", channel).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("published directory event")
	return nil
}

// Subscribe returns a channel of events published on channel by any
// instance. It is closed when ctx is done or the bus is closed.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DirectoryEvent, error) {
	if !providers.IsDirectoryChannel(channel) {
		return nil, fmt.Errorf("not a directory channel: %q", channel)
	}
	if b.fan.isClosed() {
		return nil, fmt.Errorf("event bus is closed")
	}
	if err := b.listen(); err != nil {
		return nil, err
	}

	eventChan, ok := b.fan.add(channel)
	if !ok {
		return nil, fmt.Errorf("event bus is closed")
	}
	log.Info().Str("channel", channel).Int("subscribers", b.fan.count(channel)).Msg("subscribed to channel")

	go func() {
		<-ctx.Done()
		b.fan.remove(channel, eventChan)
	}()
	return eventChan, nil
}

// listen opens the pattern subscription once and waits for Redis to confirm it
func (b *RedisEventBus) listen() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub != nil {
		return nil
	}
	if b.client == nil {
		return fmt.Errorf("redis client is not configured")
	}

	pubsub := b.client.Client().PSubscribe(b.ctx, providers.EventChannelPattern)
	if _, err := pubsub.Receive(b.ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", providers.EventChannelPattern, err)
	}
	b.pubsub = pubsub
	go b.receive(pubsub)

	log.Info().Str("pattern", providers.EventChannelPattern).Msg("listening for directory events")
	return nil
}

func (b *RedisEventBus) receive(pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		b.dispatch(msg.Channel, msg.Payload)
	}
}

// dispatch decodes payload and hands it to the local subscribers of channel
func (b *RedisEventBus) dispatch(channel, payload string) int {
	event, err := decodeEvent(payload)
	if err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("dropping malformed event")
		return 0
	}
	return b.fan.deliver(channel, event)
}

func decodeEvent(payload string) (*entities.DirectoryEvent, error) {
	var event entities.DirectoryEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, err
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}

// Close ends the pattern subscription and closes every subscriber channel
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.mu.Unlock()

	b.fan.close()

	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			return fmt.Errorf("failed to close subscription: %w", err)
		}
	}

	log.Info().Msg("event bus closed")
	return nil
}
