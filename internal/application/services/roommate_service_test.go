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

func strPtr(s string) *string { return &s }

func completeInput(bio string, lifestyle []string, interests []string) entities.RoommateProfileInput {
	return entities.RoommateProfileInput{
		Bio:       strPtr(bio),
		Interests: interests,
		Preferences: &entities.RoommatePreferencesInput{
			Budget:    &entities.Budget{Min: 10000, Max: 20000},
			Location:  []string{"koramangala"},
			Lifestyle: lifestyle,
		},
	}
}

func TestRoommateService_UpsertProfileValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewRoommateService(memory.NewRoommateProfileStore(), nil)

	tests := []struct {
		name  string
		input entities.RoommateProfileInput
	}{
		{"missing bio on create", entities.RoommateProfileInput{}},
		{"bio too long", entities.RoommateProfileInput{Bio: strPtr(string(make([]rune, 501)))}},
		{"inverted budget", entities.RoommateProfileInput{
			Bio:         strPtr("hi"),
			Preferences: &entities.RoommatePreferencesInput{Budget: &entities.Budget{Min: 9000, Max: 1000}},
		}},
		{"negative budget", entities.RoommateProfileInput{
			Bio:         strPtr("hi"),
			Preferences: &entities.RoommatePreferencesInput{Budget: &entities.Budget{Min: -1, Max: 1000}},
		}},
		{"unknown lifestyle", completeInput("hi", []string{"party_animal"}, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpsertProfile(ctx, "u1", tt.input)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), err.Error())
		})
	}

	_, err := svc.GetProfile(ctx, "u1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestRoommateService_UpsertDefaultsAndMerge(t *testing.T) {
	ctx := context.Background()
	svc := NewRoommateService(memory.NewRoommateProfileStore(), nil)

	p, err := svc.UpsertProfile(ctx, "u1", entities.RoommateProfileInput{
		Bio:         strPtr("  looking for a flat  "),
		Preferences: &entities.RoommatePreferencesInput{Lifestyle: []string{"quiet", "quiet", "clean"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "looking for a flat", p.Bio)
	assert.Equal(t, entities.Budget{Min: entities.DefaultBudgetMin, Max: entities.DefaultBudgetMax}, p.Preferences.Budget)
	assert.Equal(t, []entities.Lifestyle{entities.LifestyleQuiet, entities.LifestyleClean}, p.Preferences.Lifestyle)
	assert.True(t, p.ProfileComplete)

	updated, err := svc.UpsertProfile(ctx, "u1", entities.RoommateProfileInput{Interests: []string{"chess"}})
	require.NoError(t, err)
	assert.Equal(t, "looking for a flat", updated.Bio)
	assert.Equal(t, []string{"chess"}, updated.Interests)
	assert.Equal(t, p.Preferences, updated.Preferences)

	_, err = svc.UpsertProfile(ctx, "", entities.RoommateProfileInput{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}

func TestRoommateService_Matches(t *testing.T) {
	ctx := context.Background()
	svc := NewRoommateService(memory.NewRoommateProfileStore(), nil)

	_, err := svc.Matches(ctx, "me")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	_, err = svc.UpsertProfile(ctx, "me", completeInput("me", []string{"quiet"}, []string{"chess"}))
	require.NoError(t, err)
	_, err = svc.UpsertProfile(ctx, "partial", completeInput("p", []string{"quiet"}, []string{"chess"}))
	require.NoError(t, err)
	_, err = svc.UpsertProfile(ctx, "bio-only", entities.RoommateProfileInput{Bio: strPtr("no prefs yet")})
	require.NoError(t, err)
	_, err = svc.UpsertProfile(ctx, "social", completeInput("s", []string{"social"}, []string{"films"}))
	require.NoError(t, err)

	matches, err := svc.Matches(ctx, "me")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "partial", matches[0].Profile.UserID)
	assert.Equal(t, 100, matches[0].Score)
	assert.Equal(t, "social", matches[1].Profile.UserID)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	all, err := svc.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRoommateService_DeleteProfile(t *testing.T) {
	ctx := context.Background()
	svc := NewRoommateService(memory.NewRoommateProfileStore(), nil)

	assert.True(t, apperrors.IsType(svc.DeleteProfile(ctx, "u1"), apperrors.ErrorTypeNotFound))

	_, err := svc.UpsertProfile(ctx, "u1", completeInput("hi", nil, nil))
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProfile(ctx, "u1"))

	_, err = svc.GetProfile(ctx, "u1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}
