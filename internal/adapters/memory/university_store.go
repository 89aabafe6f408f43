package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/geo"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

// UniversityStore is an in-memory university repository
type UniversityStore struct {
	mu           sync.RWMutex
	universities map[string]*entities.University
	byName       map[string]string
	index        *geo.Index
}

// NewUniversityStore creates an empty store
func NewUniversityStore() repositories.UniversityRepository {
	return &UniversityStore{
		universities: make(map[string]*entities.University),
		byName:       make(map[string]string),
		index:        geo.NewIndex(),
	}
}

// Create stores u; names are unique
func (s *UniversityStore) Create(ctx context.Context, u *entities.University) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[u.Name]; taken {
		return apperrors.NewConflictError("university with this name already exists")
	}
	if _, exists := s.universities[u.ID]; exists {
		return apperrors.NewConflictError("university already exists")
	}
	c := *u
	s.universities[u.ID] = &c
	s.byName[u.Name] = u.ID
	s.index.Put(u.ID, u.Location)
	return nil
}

// GetByID retrieves a university by ID
func (s *UniversityStore) GetByID(ctx context.Context, id string) (*entities.University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.universities[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("university not found")
	}
	c := *u
	return &c, nil
}

// GetByName retrieves a university by name
func (s *UniversityStore) GetByName(ctx context.Context, name string) (*entities.University, error) {
	s.mu.RLock()
	id, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("university not found")
	}
	return s.GetByID(ctx, id)
}

// Update replaces a stored university; renaming onto another name conflicts
func (s *UniversityStore) Update(ctx context.Context, u *entities.University) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.universities[u.ID]
	if !ok {
		return apperrors.NewNotFoundError("university not found")
	}
	if owner, taken := s.byName[u.Name]; taken && owner != u.ID {
		return apperrors.NewConflictError("university with this name already exists")
	}

	delete(s.byName, cur.Name)
	c := *u
	s.universities[u.ID] = &c
	s.byName[u.Name] = u.ID
	s.index.Put(u.ID, u.Location)
	return nil
}

// List returns universities sorted by name
func (s *UniversityStore) List(ctx context.Context, activeOnly bool) ([]*entities.University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.University, 0, len(s.universities))
	for _, u := range s.universities {
		if activeOnly && !u.IsActive {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	sortByName(out)
	return out, nil
}

// QueryNear returns active universities within radiusMeters, nearest first
func (s *UniversityStore) QueryNear(ctx context.Context, point entities.GeoPoint, radiusMeters float64) ([]*entities.University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := s.index.Within(point, radiusMeters)
	out := make([]*entities.University, 0, len(hits))
	for _, h := range hits {
		u, ok := s.universities[h.ID]
		if !ok || !u.IsActive {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

// QueryText returns active universities matching on name, city or state
func (s *UniversityStore) QueryText(ctx context.Context, substring string) ([]*entities.University, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.University, 0)
	for _, u := range s.universities {
		if u.IsActive && u.MatchesText(substring) {
			c := *u
			out = append(out, &c)
		}
	}
	sortByName(out)
	return out, nil
}

func sortByName(us []*entities.University) {
	sort.Slice(us, func(i, j int) bool { return us[i].Name < us[j].Name })
}
