package entities

import (
	"fmt"
	"strings"
	"time"
)

// LatLng is a corner of a campus bounding box
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CampusBounds is the rectangle enclosing a campus
type CampusBounds struct {
	NorthEast LatLng `json:"north_east"`
	SouthWest LatLng `json:"south_west"`
}

// Validate checks corner ranges and ordering
func (b CampusBounds) Validate() error {
	for _, c := range []LatLng{b.NorthEast, b.SouthWest} {
		if err := (GeoPoint{Longitude: c.Longitude, Latitude: c.Latitude}).Validate(); err != nil {
			return fmt.Errorf("campus bounds: %w", err)
		}
	}
	if b.NorthEast.Latitude < b.SouthWest.Latitude {
		return fmt.Errorf("campus bounds: north-east latitude must not be south of south-west")
	}
	return nil
}

// Contains reports whether p lies inside the bounds. Boxes whose east edge is
// west of the south-west corner wrap the antimeridian.
func (b CampusBounds) Contains(p GeoPoint) bool {
	if p.Latitude < b.SouthWest.Latitude || p.Latitude > b.NorthEast.Latitude {
		return false
	}
	if b.SouthWest.Longitude <= b.NorthEast.Longitude {
		return p.Longitude >= b.SouthWest.Longitude && p.Longitude <= b.NorthEast.Longitude
	}
	return p.Longitude >= b.SouthWest.Longitude || p.Longitude <= b.NorthEast.Longitude
}

// University represents a campus
type University struct {
	ID           string       `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	Location     GeoPoint     `json:"location" db:"-"`
	CampusBounds CampusBounds `json:"campus_bounds" db:"-"`
	Address      string       `json:"address" db:"address"`
	Description  string       `json:"description" db:"description"`
	City         string       `json:"city" db:"city"`
	State        string       `json:"state" db:"state"`
	ZipCode      string       `json:"zip_code,omitempty" db:"zip_code"`
	ImageURL     string       `json:"image_url,omitempty" db:"image_url"`
	IsActive     bool         `json:"is_active" db:"is_active"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// MatchesText reports a case-insensitive substring hit on name, city or state
func (u *University) MatchesText(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(u.Name), q) ||
		strings.Contains(strings.ToLower(u.City), q) ||
		strings.Contains(strings.ToLower(u.State), q)
}

// UniversityInput is an unvalidated create or update request
type UniversityInput struct {
	Name         *string       `json:"name"`
	Latitude     *float64      `json:"latitude"`
	Longitude    *float64      `json:"longitude"`
	CampusBounds *CampusBounds `json:"campus_bounds"`
	Address      *string       `json:"address"`
	Description  *string       `json:"description"`
	City         *string       `json:"city"`
	State        *string       `json:"state"`
	ZipCode      *string       `json:"zip_code"`
	ImageURL     *string       `json:"image_url"`
}

// NewUniversity validates a create request
func NewUniversity(id string, in UniversityInput, now time.Time) (*University, error) {
	switch {
	case in.Name == nil || strings.TrimSpace(*in.Name) == "",
		in.Latitude == nil, in.Longitude == nil, in.CampusBounds == nil,
		in.Address == nil || strings.TrimSpace(*in.Address) == "",
		in.City == nil || strings.TrimSpace(*in.City) == "",
		in.State == nil || strings.TrimSpace(*in.State) == "":
		return nil, fmt.Errorf("missing required fields (name, latitude, longitude, campus_bounds, address, city, state)")
	}

	u := &University{ID: id, IsActive: true, CreatedAt: now}
	if err := u.ApplyPatch(in, now); err != nil {
		return nil, err
	}
	return u, nil
}

// ApplyPatch validates and applies the non-nil fields of in
func (u *University) ApplyPatch(in UniversityInput, now time.Time) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return fmt.Errorf("name must not be empty")
		}
		u.Name = name
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return fmt.Errorf("latitude and longitude must be supplied together")
	}
	if in.Latitude != nil {
		p, err := NewGeoPoint(*in.Longitude, *in.Latitude)
		if err != nil {
			return err
		}
		u.Location = p
	}
	if in.CampusBounds != nil {
		if err := in.CampusBounds.Validate(); err != nil {
			return err
		}
		u.CampusBounds = *in.CampusBounds
	}
	if in.Address != nil {
		u.Address = strings.TrimSpace(*in.Address)
	}
	if in.Description != nil {
		u.Description = *in.Description
	}
	if in.City != nil {
		u.City = strings.TrimSpace(*in.City)
	}
	if in.State != nil {
		u.State = strings.TrimSpace(*in.State)
	}
	if in.ZipCode != nil {
		u.ZipCode = *in.ZipCode
	}
	if in.ImageURL != nil {
		u.ImageURL = *in.ImageURL
	}
	u.UpdatedAt = now
	return nil
}
