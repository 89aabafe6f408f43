package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/geo"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
	"github.com/zatekoja/campuslink/backend/pkg/retry"
)

var errStaleVersion = errors.New("utility version changed")

// UtilityStore is an in-memory utility repository with a geohash index for
// radius queries.
type UtilityStore struct {
	mu        sync.RWMutex
	utilities map[string]*entities.Utility
	index     *geo.Index
	retryCfg  retry.Config

	// beforeCommit runs between reading a utility and swapping in the new
	// version. Tests use it to inject competing writers.
	beforeCommit func(id string)
}

// NewUtilityStore creates an empty store; maxRetries bounds compare-and-swap
// attempts for reviews and moderation.
func NewUtilityStore(maxRetries int) *UtilityStore {
	return &UtilityStore{
		utilities: make(map[string]*entities.Utility),
		index:     geo.NewIndex(),
		retryCfg:  retry.OptimisticConfig(maxRetries),
	}
}

var _ repositories.UtilityRepository = (*UtilityStore)(nil)

// Create stores a new utility at version 1
func (s *UtilityStore) Create(ctx context.Context, utility *entities.Utility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.utilities[utility.ID]; exists {
		return apperrors.NewConflictError("utility already exists")
	}
	utility.Version = 1
	s.utilities[utility.ID] = utility.Clone()
	s.index.Put(utility.ID, utility.Location)
	return nil
}

// GetByID retrieves a utility regardless of visibility
func (s *UtilityStore) GetByID(ctx context.Context, id string) (*entities.Utility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.utilities[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("utility not found")
	}
	return u.Clone(), nil
}

// Update replaces the editable fields. Reviews and verification are owned by
// AppendReview and SetVerification and are left untouched.
func (s *UtilityStore) Update(ctx context.Context, utility *entities.Utility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.utilities[utility.ID]
	if !ok {
		return apperrors.NewNotFoundError("utility not found")
	}

	next := cur.Clone()
	next.Name = utility.Name
	next.Category = utility.Category
	next.Location = utility.Location
	next.Address = utility.Address
	next.Contact = utility.Contact
	next.Description = utility.Description
	next.Image = utility.Image
	next.Tags = append([]string{}, utility.Tags...)
	next.OperatingHours = utility.Clone().OperatingHours
	next.IsActive = utility.IsActive
	next.UpdatedAt = utility.UpdatedAt
	next.Version = cur.Version + 1

	s.utilities[utility.ID] = next
	s.index.Put(utility.ID, next.Location)
	utility.Version = next.Version
	return nil
}

// Delete removes a utility
func (s *UtilityStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.utilities[id]; !ok {
		return apperrors.NewNotFoundError("utility not found")
	}
	delete(s.utilities, id)
	s.index.Remove(id)
	return nil
}

// List returns utilities matching filter, newest first
func (s *UtilityStore) List(ctx context.Context, filter entities.UtilityFilter) ([]*entities.Utility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Utility, 0)
	for _, u := range s.utilities {
		if filter.Matches(u) {
			out = append(out, u.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// QueryNear returns utilities within radiusMeters of point, nearest first
func (s *UtilityStore) QueryNear(ctx context.Context, point entities.GeoPoint, radiusMeters float64, filter entities.UtilityFilter) ([]*entities.Utility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := s.index.Within(point, radiusMeters)
	out := make([]*entities.Utility, 0, len(hits))
	for _, h := range hits {
		u, ok := s.utilities[h.ID]
		if !ok || !filter.Matches(u) {
			continue
		}
		out = append(out, u.Clone())
	}
	return out, nil
}

// QueryText returns utilities whose name, tags or description contain
// substring, newest first
func (s *UtilityStore) QueryText(ctx context.Context, substring string, filter entities.UtilityFilter) ([]*entities.Utility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Utility, 0)
	for _, u := range s.utilities {
		if filter.Matches(u) && u.MatchesText(substring) {
			out = append(out, u.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// AppendReview appends a review and recomputes the rating as one
// compare-and-swap on the utility version.
func (s *UtilityStore) AppendReview(ctx context.Context, id string, review entities.Review) (*entities.Utility, error) {
	return s.swap(ctx, id, func(u *entities.Utility) {
		u.AppendReview(review)
		u.UpdatedAt = review.CreatedAt
	})
}

// SetVerification replaces the moderation state as one compare-and-swap
func (s *UtilityStore) SetVerification(ctx context.Context, id string, verification entities.Verification) (*entities.Utility, error) {
	return s.swap(ctx, id, func(u *entities.Utility) {
		u.Verification = verification
	})
}

func (s *UtilityStore) swap(ctx context.Context, id string, mutate func(u *entities.Utility)) (*entities.Utility, error) {
	var result *entities.Utility
	err := retry.Do(ctx, s.retryCfg, func() error {
		s.mu.RLock()
		cur, ok := s.utilities[id]
		var snapshot *entities.Utility
		if ok {
			snapshot = cur.Clone()
		}
		s.mu.RUnlock()
		if !ok {
			return retry.Permanent(apperrors.NewNotFoundError("utility not found"))
		}

		next := snapshot.Clone()
		mutate(next)
		next.Version = snapshot.Version + 1

		if s.beforeCommit != nil {
			s.beforeCommit(id)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		stored, ok := s.utilities[id]
		if !ok {
			return retry.Permanent(apperrors.NewNotFoundError("utility not found"))
		}
		if stored.Version != snapshot.Version {
			return errStaleVersion
		}
		s.utilities[id] = next
		result = next.Clone()
		return nil
	})
	if err != nil {
		if errors.Is(err, errStaleVersion) {
			return nil, apperrors.NewConflictError("utility was modified concurrently, please retry")
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewInternalError("failed to update utility", err)
	}
	return result, nil
}

func sortNewestFirst(us []*entities.Utility) {
	sort.SliceStable(us, func(i, j int) bool {
		if !us[i].CreatedAt.Equal(us[j].CreatedAt) {
			return us[i].CreatedAt.After(us[j].CreatedAt)
		}
		return us[i].ID < us[j].ID
	})
}
