package repositories

import (
	"context"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

// RoommateProfileRepository defines the interface for roommate profile storage
type RoommateProfileRepository interface {
	// GetByUserID retrieves the profile owned by a user
	GetByUserID(ctx context.Context, userID string) (*entities.RoommateProfile, error)

	// ListComplete retrieves complete profiles in storage order, skipping excludeUserID
	ListComplete(ctx context.Context, excludeUserID string) ([]*entities.RoommateProfile, error)

	// Upsert atomically creates or overwrites the profile keyed by user.
	// build receives the current profile (nil when absent) and returns the
	// replacement.
	Upsert(ctx context.Context, userID string, build func(existing *entities.RoommateProfile) (*entities.RoommateProfile, error)) (*entities.RoommateProfile, error)

	// Delete deletes a user's profile
	Delete(ctx context.Context, userID string) error
}
