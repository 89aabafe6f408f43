package repositories

import (
	"context"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

// UtilityRepository defines the interface for utility data operations
type UtilityRepository interface {
	// Create creates a new utility
	Create(ctx context.Context, utility *entities.Utility) error

	// GetByID retrieves a utility by ID regardless of visibility
	GetByID(ctx context.Context, id string) (*entities.Utility, error)

	// Update replaces the mutable fields of a utility
	Update(ctx context.Context, utility *entities.Utility) error

	// Delete removes a utility
	Delete(ctx context.Context, id string) error

	// List retrieves utilities matching filter, newest first
	List(ctx context.Context, filter entities.UtilityFilter) ([]*entities.Utility, error)

	// QueryNear retrieves utilities within radiusMeters of point
	QueryNear(ctx context.Context, point entities.GeoPoint, radiusMeters float64, filter entities.UtilityFilter) ([]*entities.Utility, error)

	// QueryText retrieves utilities whose name, tags or description contain substring
	QueryText(ctx context.Context, substring string, filter entities.UtilityFilter) ([]*entities.Utility, error)

	// AppendReview atomically appends a review and recomputes the rating
	AppendReview(ctx context.Context, id string, review entities.Review) (*entities.Utility, error)

	// SetVerification atomically replaces the verification state
	SetVerification(ctx context.Context, id string, verification entities.Verification) (*entities.Utility, error)
}

// UtilitySearchRepository defines the interface for utility text search (e.g. Typesense)
type UtilitySearchRepository interface {
	// Search returns IDs of utilities matching query, best match first
	Search(ctx context.Context, query string, filter entities.UtilityFilter) ([]string, error)

	// Index indexes a utility
	Index(ctx context.Context, utility *entities.Utility) error

	// Delete removes a utility from index
	Delete(ctx context.Context, id string) error
}
