package repositories

import (
	"context"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

// UniversityRepository defines the interface for university data operations
type UniversityRepository interface {
	// Create creates a new university; duplicate names are a conflict
	Create(ctx context.Context, university *entities.University) error

	// GetByID retrieves a university by ID
	GetByID(ctx context.Context, id string) (*entities.University, error)

	// GetByName retrieves a university by its unique name
	GetByName(ctx context.Context, name string) (*entities.University, error)

	// Update updates a university
	Update(ctx context.Context, university *entities.University) error

	// List retrieves universities sorted by name
	List(ctx context.Context, activeOnly bool) ([]*entities.University, error)

	// QueryNear retrieves active universities within radiusMeters of point
	QueryNear(ctx context.Context, point entities.GeoPoint, radiusMeters float64) ([]*entities.University, error)

	// QueryText retrieves active universities whose name, city or state contain substring
	QueryText(ctx context.Context, substring string) ([]*entities.University, error)
}
