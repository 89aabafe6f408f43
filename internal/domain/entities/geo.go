package entities

import (
	"encoding/json"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for great-circle distances
const EarthRadiusMeters = 6371008.8

// GeoPoint is a WGS84 coordinate. It serializes as a GeoJSON point with
// longitude first.
type GeoPoint struct {
	Longitude float64
	Latitude  float64
}

// NewGeoPoint validates coordinate ranges
func NewGeoPoint(longitude, latitude float64) (GeoPoint, error) {
	p := GeoPoint{Longitude: longitude, Latitude: latitude}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// Validate checks that the point lies on the globe
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180")
	}
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90")
	}
	return nil
}

// DistanceMeters returns the haversine distance between two points
func (p GeoPoint) DistanceMeters(q GeoPoint) float64 {
	lat1 := degreesToRadians(p.Latitude)
	lat2 := degreesToRadians(q.Latitude)
	dLat := lat2 - lat1
	dLon := degreesToRadians(q.Longitude - p.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if a > 1 {
		a = 1
	}

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// WithinRadius reports whether q is at most radiusMeters from p. Points on the
// boundary are inside; the sub-micrometre slack absorbs km-to-m conversion.
func (p GeoPoint) WithinRadius(q GeoPoint, radiusMeters float64) bool {
	return p.DistanceMeters(q) <= radiusMeters+1e-6
}

type geoJSONPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// MarshalJSON encodes the point as {"type":"Point","coordinates":[lon,lat]}
func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPoint{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}})
}

// UnmarshalJSON decodes a GeoJSON point
func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var raw geoJSONPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != "" && raw.Type != "Point" {
		return fmt.Errorf("unsupported geometry type %q", raw.Type)
	}
	if len(raw.Coordinates) != 2 {
		return fmt.Errorf("coordinates must be [longitude, latitude]")
	}
	p.Longitude, p.Latitude = raw.Coordinates[0], raw.Coordinates[1]
	return p.Validate()
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
