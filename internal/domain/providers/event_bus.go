package providers

import (
	"context"
	"strings"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.DirectoryEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.DirectoryEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelUtilities is the channel for utility moderation and review events
const EventChannelUtilities = "directory:utilities"

// EventChannelPattern matches every directory channel
const EventChannelPattern = "directory:*"

const submitterChannelPrefix = "directory:submitter:"

// IsDirectoryChannel reports whether channel is the directory channel or a
// submitter channel
func IsDirectoryChannel(channel string) bool {
	if channel == EventChannelUtilities {
		return true
	}
	return strings.HasPrefix(channel, submitterChannelPrefix) && len(channel) > len(submitterChannelPrefix)
}

// GetSubmitterChannel returns the channel on which a submitter hears about
// their own utilities
func GetSubmitterChannel(userID string) string {
	return submitterChannelPrefix + userID
}
