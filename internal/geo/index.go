package geo

import (
	"sort"
	"strings"
	"sync"

	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
)

// Hit is an indexed point within a query radius
type Hit struct {
	ID       string
	Point    entities.GeoPoint
	Distance float64 // meters
}

type entry struct {
	hash  string
	id    string
	point entities.GeoPoint
}

// Index is a geohash-ordered point index. Radius queries binary-search the
// prefix ranges returned by Cover instead of scanning every point.
type Index struct {
	mu       sync.RWMutex
	entries  []entry // sorted by hash, then id
	byID     map[string]entry
	maxCells int
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{byID: make(map[string]entry), maxCells: DefaultMaxCells}
}

// Len returns the number of indexed points
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Put inserts or moves the point for id
func (ix *Index) Put(id string, p entities.GeoPoint) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(id)
	e := entry{hash: Hash(p), id: id, point: p}
	i := ix.position(e.hash, e.id)
	ix.entries = append(ix.entries, entry{})
	copy(ix.entries[i+1:], ix.entries[i:])
	ix.entries[i] = e
	ix.byID[id] = e
}

// Remove deletes id from the index
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *Index) removeLocked(id string) {
	old, ok := ix.byID[id]
	if !ok {
		return
	}
	i := ix.position(old.hash, old.id)
	if i < len(ix.entries) && ix.entries[i].id == id {
		ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
	}
	delete(ix.byID, id)
}

func (ix *Index) position(hash, id string) int {
	return sort.Search(len(ix.entries), func(i int) bool {
		e := ix.entries[i]
		if e.hash != hash {
			return e.hash > hash
		}
		return e.id >= id
	})
}

// Within returns every indexed point at most radiusMeters from center,
// nearest first. Equal distances are ordered by id.
func (ix *Index) Within(center entities.GeoPoint, radiusMeters float64) []Hit {
	cells := Cover(center, radiusMeters, ix.maxCells)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var hits []Hit
	for _, cell := range cells {
		start := sort.Search(len(ix.entries), func(i int) bool { return ix.entries[i].hash >= cell })
		for i := start; i < len(ix.entries) && strings.HasPrefix(ix.entries[i].hash, cell); i++ {
			e := ix.entries[i]
			if center.WithinRadius(e.point, radiusMeters) {
				hits = append(hits, Hit{ID: e.id, Point: e.point, Distance: center.DistanceMeters(e.point)})
			}
		}
	}

	SortHits(hits)
	return hits
}

// SortHits orders hits nearest first, breaking ties by id
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
}
