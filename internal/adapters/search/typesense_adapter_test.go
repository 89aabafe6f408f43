package search

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

func TestBuildSearchTerms(t *testing.T) {
	u := &entities.Utility{
		Name:     " Campus Xerox ",
		Category: entities.CategoryXerox,
		Tags:     []string{"Print", "xerox", "print", "Binding"},
	}

	assert.Equal(t, []string{"campus xerox", "xerox", "print", "binding"}, buildSearchTerms(u))
}

func TestBuildSearchTermsNil(t *testing.T) {
	assert.Nil(t, buildSearchTerms(nil))
}

func TestUtilityDocument(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &entities.Utility{
		ID:           "u1",
		Name:         "Cafe",
		Category:     entities.CategoryCafe,
		Location:     entities.GeoPoint{Longitude: 77.59, Latitude: 12.97},
		Tags:         []string{"coffee"},
		Verification: entities.Rejected("closed"),
		IsActive:     true,
		AddedBy:      "owner",
		CreatedAt:    created,
	}

	doc := utilityDocument(u)
	assert.Equal(t, []float64{12.97, 77.59}, doc["location"])
	assert.Equal(t, "rejected", doc["verification_status"])
	assert.Equal(t, created.Unix(), doc["created_at"])
	assert.Equal(t, "cafe", doc["category"])
}

func TestFilterBy(t *testing.T) {
	cafe := entities.CategoryCafe
	pending := entities.VerificationPending
	verified, unverified := true, false

	tests := []struct {
		name   string
		filter entities.UtilityFilter
		want   string
	}{
		{name: "empty", filter: entities.UtilityFilter{}, want: ""},
		{
			name:   "public category",
			filter: entities.UtilityFilter{OnlyVisible: true, Category: &cafe},
			want:   "is_active:=true && verification_status:=verified && category:=cafe",
		},
		{
			name:   "owner pending",
			filter: entities.UtilityFilter{AddedBy: "u-1", State: &pending},
			want:   "added_by:=`u-1` && verification_status:=pending",
		},
		{
			name:   "admin unverified",
			filter: entities.UtilityFilter{Verified: &unverified},
			want:   "verification_status:!=verified",
		},
		{
			name:   "admin verified",
			filter: entities.UtilityFilter{Verified: &verified},
			want:   "verification_status:=verified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterBy(tt.filter))
		})
	}
}

func TestQueryInfixCoversEveryField(t *testing.T) {
	fields := strings.Split(queryBy, ",")
	modes := strings.Split(queryInfix, ",")
	require.Len(t, modes, len(fields))
	for _, mode := range modes {
		assert.Equal(t, "always", mode)
	}
}
