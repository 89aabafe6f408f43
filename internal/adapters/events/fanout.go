package events

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

const subscriberBuffer = 100

// fanout tracks local subscribers per channel. Both buses deliver through it.
type fanout struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *entities.DirectoryEvent]struct{}
	closed      bool
}

func newFanout() *fanout {
	return &fanout{subscribers: make(map[string]map[chan *entities.DirectoryEvent]struct{})}
}

// add registers a buffered subscriber; ok is false once the fanout is closed
func (f *fanout) add(channel string) (ch chan *entities.DirectoryEvent, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, false
	}
	if f.subscribers[channel] == nil {
		f.subscribers[channel] = make(map[chan *entities.DirectoryEvent]struct{})
	}
	ch = make(chan *entities.DirectoryEvent, subscriberBuffer)
	f.subscribers[channel][ch] = struct{}{}
	return ch, true
}

// remove closes ch and forgets it. The channel entry goes with its last
// subscriber. Removing twice is a no-op.
func (f *fanout) remove(channel string, ch chan *entities.DirectoryEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	subscribers := f.subscribers[channel]
	if _, ok := subscribers[ch]; !ok {
		return
	}
	delete(subscribers, ch)
	close(ch)
	if len(subscribers) == 0 {
		delete(f.subscribers, channel)
	}
}

// deliver hands event to every subscriber of channel without blocking and
// returns how many received it
func (f *fanout) deliver(channel string, event *entities.DirectoryEvent) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	delivered := 0
	for subscriber := range f.subscribers[channel] {
		select {
		case subscriber <- event:
			delivered++
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber buffer full, skipping event")
		}
	}
	return delivered
}

func (f *fanout) count(channel string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers[channel])
}

func (f *fanout) isClosed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

// close closes every subscriber and rejects later adds
func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for channel, subscribers := range f.subscribers {
		for subscriber := range subscribers {
			close(subscriber)
		}
		delete(f.subscribers, channel)
	}
}
