// Package memory holds in-process implementations of the repository
// interfaces. They back STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sync"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

// RoommateProfileStore keeps profiles in insertion order
type RoommateProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*entities.RoommateProfile
	order    []string
}

// NewRoommateProfileStore creates an empty profile store
func NewRoommateProfileStore() repositories.RoommateProfileRepository {
	return &RoommateProfileStore{profiles: make(map[string]*entities.RoommateProfile)}
}

// GetByUserID retrieves the profile owned by userID
func (s *RoommateProfileStore) GetByUserID(ctx context.Context, userID string) (*entities.RoommateProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, apperrors.NewNotFoundError("roommate profile not found")
	}
	return cloneProfile(p), nil
}

// ListComplete returns complete profiles in insertion order
func (s *RoommateProfileStore) ListComplete(ctx context.Context, excludeUserID string) ([]*entities.RoommateProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.RoommateProfile, 0, len(s.order))
	for _, id := range s.order {
		if id == excludeUserID {
			continue
		}
		if p := s.profiles[id]; p.ProfileComplete {
			out = append(out, cloneProfile(p))
		}
	}
	return out, nil
}

// Upsert runs build under the write lock so concurrent upserts for the same
// user serialize.
func (s *RoommateProfileStore) Upsert(ctx context.Context, userID string, build func(existing *entities.RoommateProfile) (*entities.RoommateProfile, error)) (*entities.RoommateProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewInternalError("upsert cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *entities.RoommateProfile
	if p, ok := s.profiles[userID]; ok {
		existing = cloneProfile(p)
	}

	next, err := build(existing)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		s.order = append(s.order, userID)
	}
	s.profiles[userID] = cloneProfile(next)
	return next, nil
}

// Delete removes a user's profile
func (s *RoommateProfileStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; !ok {
		return apperrors.NewNotFoundError("roommate profile not found")
	}
	delete(s.profiles, userID)
	for i, id := range s.order {
		if id == userID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func cloneProfile(p *entities.RoommateProfile) *entities.RoommateProfile {
	c := *p
	c.Interests = append([]string{}, p.Interests...)
	c.Preferences.Location = append([]string{}, p.Preferences.Location...)
	c.Preferences.Lifestyle = append([]entities.Lifestyle{}, p.Preferences.Lifestyle...)
	return &c
}
