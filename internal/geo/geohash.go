// Package geo provides geohash cell coverage and an in-memory point index for
// radius queries.
package geo

import (
	"math"
	"sort"

	"github.com/mmcloughlin/geohash"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

const (
	// MaxPrecision is the number of characters stored per point
	MaxPrecision = 12

	// DefaultMaxCells bounds the number of prefix cells used to cover a circle
	DefaultMaxCells = 32

	metersPerDegreeLat = math.Pi * entities.EarthRadiusMeters / 180
	edgeEpsilon        = 1e-9
)

// Hash returns the full-precision geohash of p
func Hash(p entities.GeoPoint) string {
	lat, lon := clamp(p.Latitude, p.Longitude)
	return geohash.EncodeWithPrecision(lat, lon, MaxPrecision)
}

type box struct {
	minLat, maxLat, minLon, maxLon float64
}

// boundingBoxes returns the lat/lon boxes enclosing the circle, split in two
// when it crosses the antimeridian.
func boundingBoxes(center entities.GeoPoint, radiusMeters float64) []box {
	// 1% slack keeps cells conservative; results are filtered exactly later
	dLat := radiusMeters * 1.01 / metersPerDegreeLat
	minLat := center.Latitude - dLat
	maxLat := center.Latitude + dLat

	if minLat <= -90 || maxLat >= 90 {
		return []box{{math.Max(minLat, -90), math.Min(maxLat, 90), -180, 180}}
	}

	// widest longitude span is at the latitude furthest from the equator
	widest := math.Max(math.Abs(minLat), math.Abs(maxLat))
	dLon := dLat / math.Cos(widest*math.Pi/180)
	if dLon >= 180 {
		return []box{{minLat, maxLat, -180, 180}}
	}

	minLon := center.Longitude - dLon
	maxLon := center.Longitude + dLon
	switch {
	case minLon < -180:
		return []box{{minLat, maxLat, minLon + 360, 180}, {minLat, maxLat, -180, maxLon}}
	case maxLon > 180:
		return []box{{minLat, maxLat, minLon, 180}, {minLat, maxLat, -180, maxLon - 360}}
	}
	return []box{{minLat, maxLat, minLon, maxLon}}
}

// cellSize returns the height and width in degrees of a cell at precision
func cellSize(precision uint) (latDeg, lonDeg float64) {
	bits := 5 * precision
	lonBits := (bits + 1) / 2
	latBits := bits / 2
	return 180 / math.Pow(2, float64(latBits)), 360 / math.Pow(2, float64(lonBits))
}

func estimate(boxes []box, precision uint) int {
	h, w := cellSize(precision)
	total := 0
	for _, b := range boxes {
		rows := int(math.Ceil((b.maxLat-b.minLat)/h)) + 1
		cols := int(math.Ceil((b.maxLon-b.minLon)/w)) + 1
		total += rows * cols
	}
	return total
}

// Cover returns geohash prefixes whose cells together contain every point
// within radiusMeters of center. It chooses the finest precision that needs
// at most maxCells prefixes.
func Cover(center entities.GeoPoint, radiusMeters float64, maxCells int) []string {
	if radiusMeters < 0 {
		radiusMeters = 0
	}
	if maxCells < 1 {
		maxCells = DefaultMaxCells
	}
	boxes := boundingBoxes(center, radiusMeters)

	precision := uint(MaxPrecision)
	for precision > 1 && estimate(boxes, precision) > maxCells {
		precision--
	}

	h, w := cellSize(precision)
	seen := make(map[string]struct{})
	for _, b := range boxes {
		rows := int(math.Ceil((b.maxLat-b.minLat)/h)) + 1
		cols := int(math.Ceil((b.maxLon-b.minLon)/w)) + 1
		for i := 0; i < rows; i++ {
			lat := math.Min(b.minLat+float64(i)*h, b.maxLat)
			for j := 0; j < cols; j++ {
				lon := math.Min(b.minLon+float64(j)*w, b.maxLon)
				la, lo := clamp(lat, lon)
				seen[geohash.EncodeWithPrecision(la, lo, precision)] = struct{}{}
			}
		}
	}

	cells := make([]string, 0, len(seen))
	for c := range seen {
		cells = append(cells, c)
	}
	sort.Strings(cells)
	return cells
}

func clamp(lat, lon float64) (float64, float64) {
	lat = math.Max(-90, math.Min(90-edgeEpsilon, lat))
	lon = math.Max(-180, math.Min(180-edgeEpsilon, lon))
	return lat, lon
}
