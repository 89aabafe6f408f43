package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid event", `{"id":"e1","utility_id":"u1","type":"reviewed","public":true,"location":{"type":"Point","coordinates":[77.5,12.9]}}`, false},
		{"missing id", `{"utility_id":"u1","type":"reviewed"}`, true},
		{"missing utility id", `{"id":"e1","type":"reviewed"}`, true},
		{"unknown type", `{"id":"e1","utility_id":"u1","type":"renamed"}`, true},
		{"not json", `not json`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeEvent(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, entities.DirectoryEventReviewed, ev.Type)
			assert.Equal(t, 77.5, ev.Location.Longitude)
			assert.True(t, ev.Public)
		})
	}
}

func TestFanout_RemoveBookkeeping(t *testing.T) {
	f := newFanout()
	channel := providers.EventChannelUtilities

	first, ok := f.add(channel)
	require.True(t, ok)
	second, ok := f.add(channel)
	require.True(t, ok)
	assert.Equal(t, 2, f.count(channel))

	f.remove(channel, first)
	_, open := <-first
	assert.False(t, open)
	assert.Equal(t, 1, f.count(channel))

	// second removal must not close the channel again
	assert.NotPanics(t, func() { f.remove(channel, first) })
	assert.Equal(t, 1, f.count(channel))

	f.remove(channel, second)
	assert.Equal(t, 0, f.count(channel))
	assert.NotContains(t, f.subscribers, channel)
	assert.Equal(t, 0, f.deliver(channel, testEvent("e1")))
}

func TestFanout_DeliverSkipsFullSubscriber(t *testing.T) {
	f := newFanout()
	slow, _ := f.add("c")
	fast, _ := f.add("c")

	for i := 0; i < subscriberBuffer; i++ {
		slow <- testEvent("filler")
	}

	assert.Equal(t, 1, f.deliver("c", testEvent("e1")))
	assert.Equal(t, "e1", receive(t, fast).ID)
}

func TestFanout_CloseRejectsAdds(t *testing.T) {
	f := newFanout()
	ch, _ := f.add("c")

	f.close()
	_, open := <-ch
	assert.False(t, open)
	_, ok := f.add("c")
	assert.False(t, ok)
	assert.NotPanics(t, func() { f.remove("c", ch) })
	assert.NotPanics(t, f.close)
}

func TestRedisEventBus_DispatchRoutesByChannel(t *testing.T) {
	bus := NewRedisEventBus(nil).(*RedisEventBus)
	defer bus.Close()

	mine := providers.GetSubmitterChannel("user-1")
	ch, ok := bus.fan.add(mine)
	require.True(t, ok)

	payload, err := json.Marshal(testEvent("e1"))
	require.NoError(t, err)

	assert.Equal(t, 1, bus.dispatch(mine, string(payload)))
	assert.Equal(t, "e1", receive(t, ch).ID)
	assert.Equal(t, 0, bus.dispatch(providers.GetSubmitterChannel("user-2"), string(payload)))
	assert.Equal(t, 0, bus.dispatch(mine, `{"id":"e2"}`))
}

func TestRedisEventBus_RejectsBeforeReachingRedis(t *testing.T) {
	bus := NewRedisEventBus(nil)
	defer bus.Close()
	ctx := context.Background()

	_, err := bus.Subscribe(ctx, "sessions:expired")
	assert.ErrorContains(t, err, "not a directory channel")

	err = bus.Publish(ctx, providers.EventChannelUtilities, &entities.DirectoryEvent{ID: "e1", Type: entities.DirectoryEventVerified})
	assert.ErrorContains(t, err, "invalid event")

	err = bus.Publish(ctx, "sessions:expired", testEvent("e1"))
	assert.ErrorContains(t, err, "not a directory channel")

	_, err = bus.Subscribe(ctx, providers.EventChannelUtilities)
	assert.ErrorContains(t, err, "not configured")
}

func TestRedisEventBus_CloseWithoutListener(t *testing.T) {
	bus := NewRedisEventBus(nil)

	require.NoError(t, bus.Close())
	assert.Error(t, bus.Publish(context.Background(), providers.EventChannelUtilities, testEvent("e1")))
	_, err := bus.Subscribe(context.Background(), providers.EventChannelUtilities)
	assert.ErrorContains(t, err, "closed")
}

func TestIsDirectoryChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    bool
	}{
		{providers.EventChannelUtilities, true},
		{providers.GetSubmitterChannel("user-1"), true},
		{"directory:submitter:", false},
		{"directory:other", false},
		{"sessions:expired", false},
	}

	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			assert.Equal(t, tt.want, providers.IsDirectoryChannel(tt.channel))
		})
	}
}
