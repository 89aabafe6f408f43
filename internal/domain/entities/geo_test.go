package entities

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoPointValidate(t *testing.T) {
	tests := []struct {
		name    string
		point   GeoPoint
		wantErr bool
	}{
		{"origin", GeoPoint{}, false},
		{"corners of the globe", GeoPoint{Longitude: -180, Latitude: 90}, false},
		{"longitude too far east", GeoPoint{Longitude: 180.1}, true},
		{"latitude too far south", GeoPoint{Latitude: -90.1}, true},
		{"nan longitude", GeoPoint{Longitude: math.NaN()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGeoPointJSON(t *testing.T) {
	data, err := json.Marshal(GeoPoint{Longitude: 77.5946, Latitude: 12.9716})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[77.5946,12.9716]}`, string(data))

	var p GeoPoint
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, 77.5946, p.Longitude)
	assert.Equal(t, 12.9716, p.Latitude)

	assert.Error(t, json.Unmarshal([]byte(`{"type":"LineString","coordinates":[1,2]}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"Point","coordinates":[1]}`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"Point","coordinates":[12.97,95]}`), &p))
}

func TestGeoPointWithinRadius(t *testing.T) {
	center := GeoPoint{Longitude: 77.5946, Latitude: 12.9716}
	other := GeoPoint{Longitude: 77.5946, Latitude: 12.9816}
	d := center.DistanceMeters(other)

	assert.InDelta(t, 1112, d, 2)
	assert.True(t, center.WithinRadius(other, d))
	assert.False(t, center.WithinRadius(other, d-1))
	assert.Equal(t, 0.0, center.DistanceMeters(center))
}
