package services

import (
	"context"
	"time"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

// RoommateService manages roommate profiles and computes matches
type RoommateService struct {
	repo   repositories.RoommateProfileRepository
	engine *CompatibilityEngine
	now    func() time.Time
}

// NewRoommateService creates a new roommate service
func NewRoommateService(repo repositories.RoommateProfileRepository, engine *CompatibilityEngine) *RoommateService {
	if engine == nil {
		engine = NewCompatibilityEngine()
	}
	return &RoommateService{
		repo:   repo,
		engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpsertProfile creates or overwrites the caller's profile. Fields omitted
// from input keep their stored values.
func (s *RoommateService) UpsertProfile(ctx context.Context, userID string, input entities.RoommateProfileInput) (*entities.RoommateProfile, error) {
	if userID == "" {
		return nil, apperrors.NewUnauthorizedError("authentication required")
	}

	profile, err := s.repo.Upsert(ctx, userID, func(existing *entities.RoommateProfile) (*entities.RoommateProfile, error) {
		p, err := entities.NewRoommateProfile(userID, input, existing, s.now())
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("user_id", userID).
		Bool("profile_complete", profile.ProfileComplete).
		Msg("roommate profile saved")
	return profile, nil
}

// GetProfile returns the profile owned by userID
func (s *RoommateService) GetProfile(ctx context.Context, userID string) (*entities.RoommateProfile, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// ListProfiles returns every complete profile
func (s *RoommateService) ListProfiles(ctx context.Context) ([]*entities.RoommateProfile, error) {
	return s.repo.ListComplete(ctx, "")
}

// DeleteProfile removes the caller's profile
func (s *RoommateService) DeleteProfile(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.NewUnauthorizedError("authentication required")
	}
	return s.repo.Delete(ctx, userID)
}

// Matches ranks every other complete profile against the caller's
func (s *RoommateService) Matches(ctx context.Context, userID string) ([]Match, error) {
	requester, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewNotFoundError("create your roommate profile first")
		}
		return nil, err
	}

	candidates, err := s.repo.ListComplete(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.engine.Rank(requester, candidates), nil
}
