package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/campuslink/backend/internal/adapters/events"
	"github.com/zatekoja/campuslink/backend/internal/adapters/memory"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

var (
	owner    = &entities.Principal{ID: "owner", Role: entities.RoleUser}
	stranger = &entities.Principal{ID: "stranger", Role: entities.RoleUser}
	admin    = &entities.Principal{ID: "admin", Role: entities.RoleAdmin}
)

type stubUtilitySearch struct {
	mu      sync.Mutex
	ids     []string
	err     error
	indexed map[string]int
	deleted []string
}

func (s *stubUtilitySearch) Search(ctx context.Context, query string, filter entities.UtilityFilter) ([]string, error) {
	return s.ids, s.err
}

func (s *stubUtilitySearch) Index(ctx context.Context, u *entities.Utility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexed == nil {
		s.indexed = map[string]int{}
	}
	s.indexed[u.ID]++
	return nil
}

func (s *stubUtilitySearch) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func utilityInput(name, category string, lon, lat float64) entities.UtilityInput {
	return entities.UtilityInput{Name: &name, Category: &category, Longitude: &lon, Latitude: &lat}
}

func submitVerified(t *testing.T, svc *DirectoryService, in entities.UtilityInput) *entities.Utility {
	t.Helper()
	u, err := svc.Submit(context.Background(), in, owner)
	require.NoError(t, err)
	u, err = svc.Moderate(context.Background(), u.ID, entities.ModerationDecision{Verify: true}, admin)
	require.NoError(t, err)
	return u
}

func names(us []*entities.Utility) []string {
	out := make([]string, 0, len(us))
	for _, u := range us {
		out = append(out, u.Name)
	}
	return out
}

func TestDirectoryService_SubmitIsPendingAndAttributed(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)

	u, err := svc.Submit(ctx, utilityInput("Copy Corner", "xerox", 77.59, 12.97), owner)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, entities.VerificationPending, u.Verification.State())
	assert.True(t, u.IsActive)
	assert.Equal(t, "owner", u.AddedBy)

	_, err = svc.Submit(ctx, utilityInput("Copy Corner", "xerox", 77.59, 12.97), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	_, err = svc.Submit(ctx, utilityInput("Bad", "spaceport", 77.59, 12.97), owner)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.Submit(ctx, utilityInput("Bad", "cafe", 200, 12.97), owner)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestDirectoryService_NearbyVisibilityAndRadius(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)
	center := entities.GeoPoint{Longitude: 77.5946, Latitude: 12.9716}

	// ~1.1 km and ~2.2 km east of center
	submitVerified(t, svc, utilityInput("Far Cafe", "cafe", 77.6150, 12.9716))
	submitVerified(t, svc, utilityInput("Near Cafe", "cafe", 77.6048, 12.9716))
	submitVerified(t, svc, utilityInput("Pharmacy", "pharmacy", 77.5950, 12.9716))
	_, err := svc.Submit(ctx, utilityInput("Pending Cafe", "cafe", 77.5947, 12.9716), owner)
	require.NoError(t, err)

	got, err := svc.Nearby(ctx, center, 5, "", stranger)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pharmacy", "Near Cafe", "Far Cafe"}, names(got))

	got, err = svc.Nearby(ctx, center, 1.5, "cafe", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Near Cafe"}, names(got))

	got, err = svc.Nearby(ctx, center, 5, "cafe", admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"Pending Cafe", "Near Cafe", "Far Cafe"}, names(got))

	got, err = svc.Nearby(ctx, center, 0, "", stranger)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.Nearby(ctx, entities.GeoPoint{Longitude: 0, Latitude: 95}, 5, "", stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	_, err = svc.Nearby(ctx, center, 5, "spaceport", stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestDirectoryService_NearbyBoundaryIsInclusive(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)
	center := entities.GeoPoint{Longitude: 10, Latitude: 0}

	edge := submitVerified(t, svc, utilityInput("Edge", "atm", 10.01, 0))
	radiusKm := center.DistanceMeters(edge.Location) / 1000

	got, err := svc.Nearby(ctx, center, radiusKm, "", stranger)
	require.NoError(t, err)
	assert.Equal(t, []string{"Edge"}, names(got))

	got, err = svc.Nearby(ctx, center, radiusKm*0.999, "", stranger)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDirectoryService_SearchAndCategory(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)

	in := utilityInput("Sharma Stores", "grocery", 77.59, 12.97)
	in.Tags = []string{"Vegetables"}
	submitVerified(t, svc, in)
	desc := "fresh VEGETABLE juice"
	juice := utilityInput("Juice Bar", "cafe", 77.59, 12.97)
	juice.Description = &desc
	submitVerified(t, svc, juice)
	_, err := svc.Submit(ctx, utilityInput("Vegetable Cart", "grocery", 77.59, 12.97), owner)
	require.NoError(t, err)

	got, err := svc.Search(ctx, "vegetable", stranger)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Sharma Stores", "Juice Bar"}, names(got))

	_, err = svc.Search(ctx, "   ", stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	got, err = svc.ByCategory(ctx, "grocery", stranger)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sharma Stores"}, names(got))

	_, err = svc.ByCategory(ctx, "spaceport", stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestDirectoryService_SearchUsesIndexThenFallsBack(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUtilityStore(3)
	search := &stubUtilitySearch{}
	svc := NewDirectoryService(store, search)

	a := submitVerified(t, svc, utilityInput("Campus Cafe", "cafe", 77.59, 12.97))
	b := submitVerified(t, svc, utilityInput("Cafe Coffee", "cafe", 77.59, 12.97))
	assert.Equal(t, 2, search.indexed[a.ID])

	search.ids = []string{b.ID, "stale-id", a.ID}
	got, err := svc.Search(ctx, "cafe", stranger)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cafe Coffee", "Campus Cafe"}, names(got))

	search.err = errors.New("typesense down")
	got, err = svc.Search(ctx, "cafe", stranger)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Cafe Coffee", "Campus Cafe"}, names(got))
}

func TestDirectoryService_SearchKeepsStoreMatchesTheIndexMisses(t *testing.T) {
	ctx := context.Background()
	search := &stubUtilitySearch{}
	svc := NewDirectoryService(memory.NewUtilityStore(3), search)

	pharmacy := submitVerified(t, svc, utilityInput("Apollo Pharmacy", "pharmacy", 77.59, 12.97))
	medplus := submitVerified(t, svc, utilityInput("MedPlus Pharmacy", "pharmacy", 77.59, 12.97))
	submitVerified(t, svc, utilityInput("Campus Cafe", "cafe", 77.59, 12.97))

	search.ids = []string{}
	got, err := svc.Search(ctx, "MACY", stranger)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Apollo Pharmacy", "MedPlus Pharmacy"}, names(got))

	search.ids = []string{medplus.ID}
	got, err = svc.Search(ctx, "macy", stranger)
	require.NoError(t, err)
	assert.Equal(t, []string{"MedPlus Pharmacy", "Apollo Pharmacy"}, names(got))

	search.ids = []string{pharmacy.ID, medplus.ID}
	got, err = svc.Search(ctx, "medplus", stranger)
	require.NoError(t, err)
	assert.Equal(t, []string{"MedPlus Pharmacy"}, names(got))
}

func TestRankByIndex(t *testing.T) {
	a, b, c := &entities.Utility{ID: "a"}, &entities.Utility{ID: "b"}, &entities.Utility{ID: "c"}
	tests := []struct {
		name string
		ids  []string
		want []string
	}{
		{"no hits keeps store order", nil, []string{"a", "b", "c"}},
		{"hits first", []string{"c"}, []string{"c", "a", "b"}},
		{"unknown and duplicate ids ignored", []string{"x", "b", "b", "a"}, []string{"b", "a", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rankByIndex([]*entities.Utility{a, b, c}, tt.ids)
			ids := make([]string, 0, len(got))
			for _, u := range got {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestDirectoryService_ModerationStateMachine(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)
	u, err := svc.Submit(ctx, utilityInput("Laundromat", "laundry", 77.59, 12.97), owner)
	require.NoError(t, err)

	_, err = svc.Moderate(ctx, u.ID, entities.ModerationDecision{Verify: true}, owner)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

	_, err = svc.Moderate(ctx, u.ID, entities.ModerationDecision{Reason: "  "}, admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	unchanged, _ := svc.Get(ctx, u.ID, admin)
	assert.Equal(t, entities.VerificationPending, unchanged.Verification.State())

	steps := []struct {
		decision entities.ModerationDecision
		state    entities.VerificationState
		reason   string
	}{
		{entities.ModerationDecision{Verify: true}, entities.VerificationVerified, ""},
		{entities.ModerationDecision{Verify: true}, entities.VerificationVerified, ""},
		{entities.ModerationDecision{Reason: "closed down"}, entities.VerificationRejected, "closed down"},
		{entities.ModerationDecision{Reason: "duplicate"}, entities.VerificationRejected, "duplicate"},
		{entities.ModerationDecision{Verify: true}, entities.VerificationVerified, ""},
	}
	for i, step := range steps {
		got, err := svc.Moderate(ctx, u.ID, step.decision, admin)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, step.state, got.Verification.State(), "step %d", i)
		assert.Equal(t, step.reason, got.Verification.RejectionReason(), "step %d", i)
	}

	_, err = svc.Moderate(ctx, "missing", entities.ModerationDecision{Verify: true}, admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestDirectoryService_GetHidesUnverifiedFromStrangers(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)
	u, err := svc.Submit(ctx, utilityInput("Salon", "salon", 77.59, 12.97), owner)
	require.NoError(t, err)

	_, err = svc.Get(ctx, u.ID, stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	_, err = svc.Get(ctx, u.ID, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	_, err = svc.Get(ctx, u.ID, owner)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, u.ID, admin)
	assert.NoError(t, err)

	mine, err := svc.MySubmissions(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := svc.MySubmissions(ctx, stranger)
	require.NoError(t, err)
	assert.Empty(t, theirs)
}

func TestDirectoryService_ReviewAveragesRating(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)
	u := submitVerified(t, svc, utilityInput("Canteen", "restaurant", 77.59, 12.97))
	assert.Equal(t, 0.0, u.Rating)

	for _, rating := range []int{5, 3, 4} {
		u, _ = svc.Review(ctx, u.ID, rating, "", stranger)
	}
	assert.Equal(t, 4.0, u.Rating)
	assert.Len(t, u.Reviews, 3)

	u, err := svc.Review(ctx, u.ID, 4, "again", stranger)
	require.NoError(t, err)
	assert.Len(t, u.Reviews, 4)
	assert.Equal(t, 4.0, u.Rating)

	_, err = svc.Review(ctx, u.ID, 6, "", stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	_, err = svc.Review(ctx, u.ID, 0, "", stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	_, err = svc.Review(ctx, u.ID, 3, "", nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	_, err = svc.Review(ctx, "missing", 3, "", stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	after, _ := svc.Get(ctx, u.ID, stranger)
	assert.Len(t, after.Reviews, 4)
}

func TestDirectoryService_ConcurrentReviewsBothLand(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(10), nil)
	u := submitVerified(t, svc, utilityInput("Bank", "bank", 77.59, 12.97))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reviewer := &entities.Principal{ID: fmt.Sprintf("reviewer-%d", i), Role: entities.RoleUser}
			_, errs[i] = svc.Review(ctx, u.ID, 2+2*i, "", reviewer)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	got, err := svc.Get(ctx, u.ID, stranger)
	require.NoError(t, err)
	assert.Len(t, got.Reviews, 2)
	assert.Equal(t, 3.0, got.Rating)
}

func TestDirectoryService_AuthorizeMutation(t *testing.T) {
	ctx := context.Background()
	search := &stubUtilitySearch{}
	svc := NewDirectoryService(memory.NewUtilityStore(3), search)
	u, err := svc.Submit(ctx, utilityInput("ATM", "atm", 77.59, 12.97), owner)
	require.NoError(t, err)

	assert.NoError(t, svc.AuthorizeMutation(u, owner))
	assert.NoError(t, svc.AuthorizeMutation(u, admin))
	assert.True(t, apperrors.IsType(svc.AuthorizeMutation(u, stranger), apperrors.ErrorTypeUnauthorized))
	assert.True(t, apperrors.IsType(svc.AuthorizeMutation(u, nil), apperrors.ErrorTypeUnauthorized))

	rename := "Renamed ATM"
	_, err = svc.Update(ctx, u.ID, entities.UtilityInput{Name: &rename}, stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	updated, err := svc.Update(ctx, u.ID, entities.UtilityInput{Name: &rename}, owner)
	require.NoError(t, err)
	assert.Equal(t, "Renamed ATM", updated.Name)

	assert.True(t, apperrors.IsType(svc.Delete(ctx, u.ID, stranger), apperrors.ErrorTypeUnauthorized))
	require.NoError(t, svc.Delete(ctx, u.ID, admin))
	assert.Equal(t, []string{u.ID}, search.deleted)
	_, err = svc.Get(ctx, u.ID, admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestDirectoryService_AdminListings(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)
	submitVerified(t, svc, utilityInput("Verified", "cafe", 77.59, 12.97))
	_, err := svc.Submit(ctx, utilityInput("Waiting", "cafe", 77.59, 12.97), owner)
	require.NoError(t, err)

	pending, err := svc.Pending(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"Waiting"}, names(pending))

	all, err := svc.AdminAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.Pending(ctx, stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	_, err = svc.AdminAll(ctx, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}

func TestDirectoryService_ListByVerification(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)
	submitVerified(t, svc, utilityInput("Verified", "cafe", 77.59, 12.97))
	_, err := svc.Submit(ctx, utilityInput("Waiting", "cafe", 77.59, 12.97), owner)
	require.NoError(t, err)
	turnedDown, err := svc.Submit(ctx, utilityInput("Turned Down", "bank", 77.59, 12.97), owner)
	require.NoError(t, err)
	_, err = svc.Moderate(ctx, turnedDown.ID, entities.ModerationDecision{Reason: "closed"}, admin)
	require.NoError(t, err)

	yes, no := true, false
	tests := []struct {
		name     string
		category string
		verified *bool
		want     []string
	}{
		{"no filter", "", nil, []string{"Verified", "Waiting", "Turned Down"}},
		{"verified only", "", &yes, []string{"Verified"}},
		{"unverified only", "", &no, []string{"Waiting", "Turned Down"}},
		{"unverified in category", "cafe", &no, []string{"Waiting"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(ctx, tt.category, tt.verified, admin)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, names(got))
		})
	}

	t.Run("non-admins cannot filter", func(t *testing.T) {
		_, err := svc.List(ctx, "", &yes, stranger)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

		public, err := svc.List(ctx, "", nil, stranger)
		require.NoError(t, err)
		assert.Equal(t, []string{"Verified"}, names(public))
	})
}

func TestDirectoryService_PublishesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := events.NewMemoryEventBus()
	defer bus.Close()

	svc := NewDirectoryService(memory.NewUtilityStore(3), nil)
	svc.SetEventBus(bus)

	all, err := bus.Subscribe(ctx, providers.EventChannelUtilities)
	require.NoError(t, err)
	mine, err := bus.Subscribe(ctx, providers.GetSubmitterChannel(owner.ID))
	require.NoError(t, err)

	u, err := svc.Submit(ctx, utilityInput("Stationers", "stationary", 77.59, 12.97), owner)
	require.NoError(t, err)
	_, err = svc.Moderate(ctx, u.ID, entities.ModerationDecision{Reason: "wrong address"}, admin)
	require.NoError(t, err)

	want := []entities.DirectoryEventType{entities.DirectoryEventSubmitted, entities.DirectoryEventRejected}
	for _, ch := range []<-chan *entities.DirectoryEvent{all, mine} {
		for _, eventType := range want {
			select {
			case ev := <-ch:
				assert.Equal(t, eventType, ev.Type)
				assert.Equal(t, u.ID, ev.UtilityID)
			case <-time.After(time.Second):
				t.Fatalf("missing %s event", eventType)
			}
		}
	}
}
