package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/geo"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

const universitiesTable = "universities"

var universityColumns = []interface{}{
	"id", "name", "longitude", "latitude", "ne_latitude", "ne_longitude",
	"sw_latitude", "sw_longitude", "address", "description", "city", "state",
	"zip_code", "image_url", "is_active", "created_at", "updated_at",
}

type universityRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Longitude   float64   `db:"longitude"`
	Latitude    float64   `db:"latitude"`
	NELatitude  float64   `db:"ne_latitude"`
	NELongitude float64   `db:"ne_longitude"`
	SWLatitude  float64   `db:"sw_latitude"`
	SWLongitude float64   `db:"sw_longitude"`
	Address     string    `db:"address"`
	Description string    `db:"description"`
	City        string    `db:"city"`
	State       string    `db:"state"`
	ZipCode     string    `db:"zip_code"`
	ImageURL    string    `db:"image_url"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r universityRow) toEntity() *entities.University {
	return &entities.University{
		ID:       r.ID,
		Name:     r.Name,
		Location: entities.GeoPoint{Longitude: r.Longitude, Latitude: r.Latitude},
		CampusBounds: entities.CampusBounds{
			NorthEast: entities.LatLng{Latitude: r.NELatitude, Longitude: r.NELongitude},
			SouthWest: entities.LatLng{Latitude: r.SWLatitude, Longitude: r.SWLongitude},
		},
		Address:     r.Address,
		Description: r.Description,
		City:        r.City,
		State:       r.State,
		ZipCode:     r.ZipCode,
		ImageURL:    r.ImageURL,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func universityRecord(u *entities.University) goqu.Record {
	return goqu.Record{
		"name":         u.Name,
		"longitude":    u.Location.Longitude,
		"latitude":     u.Location.Latitude,
		"geohash":      geo.Hash(u.Location),
		"ne_latitude":  u.CampusBounds.NorthEast.Latitude,
		"ne_longitude": u.CampusBounds.NorthEast.Longitude,
		"sw_latitude":  u.CampusBounds.SouthWest.Latitude,
		"sw_longitude": u.CampusBounds.SouthWest.Longitude,
		"address":      u.Address,
		"description":  u.Description,
		"city":         u.City,
		"state":        u.State,
		"zip_code":     u.ZipCode,
		"image_url":    u.ImageURL,
		"is_active":    u.IsActive,
		"updated_at":   u.UpdatedAt,
	}
}

// UniversityAdapter implements university persistence in Postgres
type UniversityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUniversityAdapter creates a new university adapter
func NewUniversityAdapter(client *postgres.Client) repositories.UniversityRepository {
	return &UniversityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new university
func (a *UniversityAdapter) Create(ctx context.Context, university *entities.University) error {
	record := universityRecord(university)
	record["id"] = university.ID
	record["created_at"] = university.CreatedAt

	query, args, err := a.db.Insert(universitiesTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build university insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("university with this name already exists")
		}
		return apperrors.NewInternalError("failed to create university", err)
	}
	return nil
}

// GetByID retrieves a university by ID
func (a *UniversityAdapter) GetByID(ctx context.Context, id string) (*entities.University, error) {
	return a.getOne(ctx, goqu.Ex{"id": id})
}

// GetByName retrieves a university by its unique name
func (a *UniversityAdapter) GetByName(ctx context.Context, name string) (*entities.University, error) {
	return a.getOne(ctx, goqu.Ex{"name": name})
}

func (a *UniversityAdapter) getOne(ctx context.Context, where goqu.Ex) (*entities.University, error) {
	query, args, err := a.db.From(universitiesTable).
		Select(universityColumns...).
		Where(where).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row universityRow
	err = a.client.DBx().GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("university not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get university", err)
	}
	return row.toEntity(), nil
}

// Update updates a university
func (a *UniversityAdapter) Update(ctx context.Context, university *entities.University) error {
	query, args, err := a.db.Update(universitiesTable).
		Set(universityRecord(university)).
		Where(goqu.Ex{"id": university.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("university with this name already exists")
		}
		return apperrors.NewInternalError("failed to update university", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("university not found")
	}
	return nil
}

// List retrieves universities sorted by name
func (a *UniversityAdapter) List(ctx context.Context, activeOnly bool) ([]*entities.University, error) {
	ds := a.db.From(universitiesTable).Select(universityColumns...)
	if activeOnly {
		ds = ds.Where(goqu.Ex{"is_active": true})
	}
	return a.query(ctx, ds.Order(goqu.I("name").Asc()))
}

// QueryNear retrieves active universities within radiusMeters of point,
// nearest first
func (a *UniversityAdapter) QueryNear(ctx context.Context, point entities.GeoPoint, radiusMeters float64) ([]*entities.University, error) {
	cells := geo.Cover(point, radiusMeters, geo.DefaultMaxCells)
	prefixes := make([]exp.Expression, 0, len(cells))
	for _, cell := range cells {
		prefixes = append(prefixes, goqu.C("geohash").Like(cell+"%"))
	}

	candidates, err := a.query(ctx, a.db.From(universitiesTable).
		Select(universityColumns...).
		Where(goqu.Ex{"is_active": true}, goqu.Or(prefixes...)))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.University, len(candidates))
	hits := make([]geo.Hit, 0, len(candidates))
	for _, u := range candidates {
		if !point.WithinRadius(u.Location, radiusMeters) {
			continue
		}
		byID[u.ID] = u
		hits = append(hits, geo.Hit{ID: u.ID, Point: u.Location, Distance: point.DistanceMeters(u.Location)})
	}
	geo.SortHits(hits)

	out := make([]*entities.University, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	return out, nil
}

// QueryText retrieves active universities whose name, city or state contain
// substring
func (a *UniversityAdapter) QueryText(ctx context.Context, substring string) ([]*entities.University, error) {
	pattern := likePattern(substring)
	return a.query(ctx, a.db.From(universitiesTable).
		Select(universityColumns...).
		Where(goqu.Ex{"is_active": true}, goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("city").ILike(pattern),
			goqu.C("state").ILike(pattern),
		)).
		Order(goqu.I("name").Asc()))
}

func (a *UniversityAdapter) query(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.University, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []universityRow
	if err := a.client.DBx().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to query universities", err)
	}

	out := make([]*entities.University, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}
