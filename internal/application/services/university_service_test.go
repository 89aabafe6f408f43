package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/campuslink/backend/internal/adapters/memory"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

func universityInput(name, city string, lon, lat float64) entities.UniversityInput {
	addr, state := "Main Road", "Karnataka"
	return entities.UniversityInput{
		Name:      &name,
		Latitude:  &lat,
		Longitude: &lon,
		CampusBounds: &entities.CampusBounds{
			NorthEast: entities.LatLng{Latitude: lat + 0.005, Longitude: lon + 0.005},
			SouthWest: entities.LatLng{Latitude: lat - 0.005, Longitude: lon - 0.005},
		},
		Address: &addr,
		City:    &city,
		State:   &state,
	}
}

func TestUniversityService_CreateRequiresAdminAndUniqueName(t *testing.T) {
	ctx := context.Background()
	svc := NewUniversityService(memory.NewUniversityStore())

	_, err := svc.Create(ctx, universityInput("IISc", "Bengaluru", 77.5667, 13.0219), stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	_, err = svc.Create(ctx, universityInput("IISc", "Bengaluru", 77.5667, 13.0219), nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	u, err := svc.Create(ctx, universityInput("IISc", "Bengaluru", 77.5667, 13.0219), admin)
	require.NoError(t, err)
	assert.True(t, u.IsActive)

	_, err = svc.Create(ctx, universityInput("IISc", "Mysuru", 76.6, 12.3), admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	missing := universityInput("X", "Y", 0, 0)
	missing.CampusBounds = nil
	_, err = svc.Create(ctx, missing, admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	inverted := universityInput("Z", "Y", 0, 0)
	inverted.CampusBounds.NorthEast.Latitude = -1
	_, err = svc.Create(ctx, inverted, admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestUniversityService_NearbySearchAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewUniversityService(memory.NewUniversityStore())

	iisc, err := svc.Create(ctx, universityInput("IISc", "Bengaluru", 77.5667, 13.0219), admin)
	require.NoError(t, err)
	christ, err := svc.Create(ctx, universityInput("Christ University", "Bengaluru", 77.6061, 12.9343), admin)
	require.NoError(t, err)
	_, err = svc.Create(ctx, universityInput("University of Mysore", "Mysuru", 76.6394, 12.3081), admin)
	require.NoError(t, err)

	center := entities.GeoPoint{Longitude: 77.5946, Latitude: 12.9716}
	near, err := svc.Nearby(ctx, center, 0)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, christ.ID, near[0].ID)
	assert.Equal(t, iisc.ID, near[1].ID)

	found, err := svc.Search(ctx, "bengaluru")
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "Christ University", found[0].Name)
	_, err = svc.Search(ctx, "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	deleted, err := svc.Delete(ctx, iisc.ID, admin)
	require.NoError(t, err)
	assert.False(t, deleted.IsActive)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	near, _ = svc.Nearby(ctx, center, 50)
	assert.Len(t, near, 1)

	still, err := svc.Get(ctx, iisc.ID)
	require.NoError(t, err)
	assert.False(t, still.IsActive)

	_, err = svc.Delete(ctx, "missing", admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestUniversityService_Update(t *testing.T) {
	ctx := context.Background()
	svc := NewUniversityService(memory.NewUniversityStore())
	a, err := svc.Create(ctx, universityInput("Alpha", "Pune", 73.8, 18.5), admin)
	require.NoError(t, err)
	_, err = svc.Create(ctx, universityInput("Beta", "Pune", 73.9, 18.6), admin)
	require.NoError(t, err)

	desc := "Founded 1949"
	got, err := svc.Update(ctx, a.ID, entities.UniversityInput{Description: &desc}, admin)
	require.NoError(t, err)
	assert.Equal(t, "Founded 1949", got.Description)
	assert.Equal(t, "Alpha", got.Name)

	taken := "Beta"
	_, err = svc.Update(ctx, a.ID, entities.UniversityInput{Name: &taken}, admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	lat := 91.0
	lon := 0.0
	_, err = svc.Update(ctx, a.ID, entities.UniversityInput{Latitude: &lat, Longitude: &lon}, admin)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.Update(ctx, a.ID, entities.UniversityInput{Description: &desc}, stranger)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
}
