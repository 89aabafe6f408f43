package entities

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// DirectoryEventType represents the type of directory event
type DirectoryEventType string

const (
	DirectoryEventSubmitted DirectoryEventType = "submitted"
	DirectoryEventVerified  DirectoryEventType = "verified"
	DirectoryEventRejected  DirectoryEventType = "rejected"
	DirectoryEventReviewed  DirectoryEventType = "reviewed"
	DirectoryEventUpdated   DirectoryEventType = "updated"
	DirectoryEventDeleted   DirectoryEventType = "deleted"
)

// DirectoryEvent is published when a utility is submitted, edited, removed,
// moderated or reviewed. Public records whether the utility was visible to
// non-admin callers when the event was raised.
type DirectoryEvent struct {
	ID        string                 `json:"id"`
	UtilityID string                 `json:"utility_id"`
	Type      DirectoryEventType     `json:"type"`
	ActorID   string                 `json:"actor_id"`
	Timestamp time.Time              `json:"timestamp"`
	Location  GeoPoint               `json:"location"`
	Public    bool                   `json:"public"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

var directoryEventTypes = map[DirectoryEventType]struct{}{
	DirectoryEventSubmitted: {},
	DirectoryEventVerified:  {},
	DirectoryEventRejected:  {},
	DirectoryEventReviewed:  {},
	DirectoryEventUpdated:   {},
	DirectoryEventDeleted:   {},
}

// Validate checks that the event names itself, its utility and a known type
func (e *DirectoryEvent) Validate() error {
	switch {
	case e == nil:
		return fmt.Errorf("event is nil")
	case e.ID == "" || e.UtilityID == "":
		return fmt.Errorf("event is missing id or utility id")
	}
	if _, ok := directoryEventTypes[e.Type]; !ok {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// NewDirectoryEvent creates a new directory event from the utility's current
// state; for deletions pass the state read before removal
func NewDirectoryEvent(u *Utility, eventType DirectoryEventType, actorID string, payload map[string]interface{}) *DirectoryEvent {
	return &DirectoryEvent{
		ID:        generateEventID(),
		UtilityID: u.ID,
		Type:      eventType,
		ActorID:   actorID,
		Timestamp: time.Now(),
		Location:  u.Location,
		Public:    u.Visible(),
		Payload:   payload,
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
