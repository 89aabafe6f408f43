package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

// DefaultUniversityRadiusKm is used when a nearby query has no positive radius
const DefaultUniversityRadiusKm = 50.0

// UniversityService handles campus lookup and admin maintenance
type UniversityService struct {
	repo repositories.UniversityRepository
	now  func() time.Time
}

// NewUniversityService creates a new university service
func NewUniversityService(repo repositories.UniversityRepository) *UniversityService {
	return &UniversityService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// List returns active universities sorted by name
func (s *UniversityService) List(ctx context.Context) ([]*entities.University, error) {
	return s.repo.List(ctx, true)
}

// Get returns a university by ID
func (s *UniversityService) Get(ctx context.Context, id string) (*entities.University, error) {
	return s.repo.GetByID(ctx, id)
}

// Search matches query against name, city and state
func (s *UniversityService) Search(ctx context.Context, query string) ([]*entities.University, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.NewValidationError("search query is required")
	}
	return s.repo.QueryText(ctx, query)
}

// Nearby returns active universities within radiusKm of point, nearest first
func (s *UniversityService) Nearby(ctx context.Context, point entities.GeoPoint, radiusKm float64) ([]*entities.University, error) {
	if err := point.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if radiusKm <= 0 {
		radiusKm = DefaultUniversityRadiusKm
	}
	return s.repo.QueryNear(ctx, point, radiusKm*1000)
}

// Create adds a university; names are unique
func (s *UniversityService) Create(ctx context.Context, input entities.UniversityInput, principal *entities.Principal) (*entities.University, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	u, err := entities.NewUniversity(uuid.New().String(), input, s.now())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	if _, err := s.repo.GetByName(ctx, u.Name); err == nil {
		return nil, apperrors.NewConflictError("university with this name already exists")
	} else if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, err
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().Str("university_id", u.ID).Str("name", u.Name).Msg("university created")
	return u, nil
}

// Update applies a patch to a university
func (s *UniversityService) Update(ctx context.Context, id string, patch entities.UniversityInput, principal *entities.Principal) (*entities.University, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.ApplyPatch(patch, s.now()); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete deactivates a university; it stays retrievable by ID
func (s *UniversityService) Delete(ctx context.Context, id string, principal *entities.Principal) (*entities.University, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}

	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.IsActive = false
	u.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
