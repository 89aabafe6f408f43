package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/geo"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
	"github.com/zatekoja/campuslink/backend/pkg/retry"
)

const utilitiesTable = "utilities"

var errStaleVersion = errors.New("utility version changed")

var utilityColumns = []interface{}{
	"id", "name", "category", "longitude", "latitude", "address", "contact",
	"description", "image", "tags", "operating_hours", "reviews", "rating",
	"verification_status", "rejection_reason", "is_active", "added_by",
	"version", "created_at", "updated_at",
}

type utilityRow struct {
	ID                 string         `db:"id"`
	Name               string         `db:"name"`
	Category           string         `db:"category"`
	Longitude          float64        `db:"longitude"`
	Latitude           float64        `db:"latitude"`
	Address            string         `db:"address"`
	Contact            []byte         `db:"contact"`
	Description        string         `db:"description"`
	Image              string         `db:"image"`
	Tags               []byte         `db:"tags"`
	OperatingHours     []byte         `db:"operating_hours"`
	Reviews            []byte         `db:"reviews"`
	Rating             float64        `db:"rating"`
	VerificationStatus string         `db:"verification_status"`
	RejectionReason    sql.NullString `db:"rejection_reason"`
	IsActive           bool           `db:"is_active"`
	AddedBy            string         `db:"added_by"`
	Version            int64          `db:"version"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r utilityRow) toEntity() (*entities.Utility, error) {
	u := &entities.Utility{
		ID:          r.ID,
		Name:        r.Name,
		Category:    entities.Category(r.Category),
		Location:    entities.GeoPoint{Longitude: r.Longitude, Latitude: r.Latitude},
		Address:     r.Address,
		Description: r.Description,
		Image:       r.Image,
		Rating:      r.Rating,
		IsActive:    r.IsActive,
		AddedBy:     r.AddedBy,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}

	if err := json.Unmarshal(r.Contact, &u.Contact); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(r.Tags, &u.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(r.OperatingHours, &u.OperatingHours); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(r.Reviews, &u.Reviews); err != nil {
		return nil, err
	}
	if u.Tags == nil {
		u.Tags = []string{}
	}
	if u.Reviews == nil {
		u.Reviews = []entities.Review{}
	}

	var reason *string
	if r.RejectionReason.Valid {
		reason = &r.RejectionReason.String
	}
	verification, err := entities.RestoreVerification(r.VerificationStatus, reason)
	if err != nil {
		return nil, err
	}
	u.Verification = verification
	return u, nil
}

// editableRecord holds the columns owned by Update
func editableRecord(u *entities.Utility) (goqu.Record, error) {
	contact, err := jsonColumn(u.Contact)
	if err != nil {
		return nil, err
	}
	tags, err := jsonColumn(u.Tags)
	if err != nil {
		return nil, err
	}
	hours := u.OperatingHours
	if hours == nil {
		hours = entities.OperatingHours{}
	}
	operatingHours, err := jsonColumn(hours)
	if err != nil {
		return nil, err
	}

	return goqu.Record{
		"name":            u.Name,
		"category":        string(u.Category),
		"longitude":       u.Location.Longitude,
		"latitude":        u.Location.Latitude,
		"geohash":         geo.Hash(u.Location),
		"address":         u.Address,
		"contact":         contact,
		"description":     u.Description,
		"image":           u.Image,
		"tags":            tags,
		"operating_hours": operatingHours,
		"is_active":       u.IsActive,
		"updated_at":      u.UpdatedAt,
	}, nil
}

// moderationRecord holds the columns owned by AppendReview and SetVerification
func moderationRecord(u *entities.Utility) (goqu.Record, error) {
	reviews, err := jsonColumn(u.Reviews)
	if err != nil {
		return nil, err
	}
	reason := sql.NullString{}
	if u.Verification.State() == entities.VerificationRejected {
		reason = sql.NullString{String: u.Verification.RejectionReason(), Valid: true}
	}
	return goqu.Record{
		"reviews":             reviews,
		"rating":              u.Rating,
		"verification_status": string(u.Verification.State()),
		"rejection_reason":    reason,
		"updated_at":          u.UpdatedAt,
	}, nil
}

func filterExpressions(f entities.UtilityFilter) []exp.Expression {
	var where []exp.Expression
	if f.OnlyVisible {
		where = append(where, goqu.Ex{
			"verification_status": string(entities.VerificationVerified),
			"is_active":           true,
		})
	}
	if f.Category != nil {
		where = append(where, goqu.Ex{"category": string(*f.Category)})
	}
	if f.AddedBy != "" {
		where = append(where, goqu.Ex{"added_by": f.AddedBy})
	}
	if f.State != nil {
		where = append(where, goqu.Ex{"verification_status": string(*f.State)})
	}
	if f.Verified != nil {
		op := "eq"
		if !*f.Verified {
			op = "neq"
		}
		where = append(where, goqu.Ex{"verification_status": goqu.Op{op: string(entities.VerificationVerified)}})
	}
	return where
}

// UtilityAdapter implements utility persistence in Postgres. Radius queries
// narrow candidates with geohash prefixes, then filter by exact distance.
type UtilityAdapter struct {
	client   *postgres.Client
	db       *goqu.Database
	retryCfg retry.Config
}

// NewUtilityAdapter creates a new utility adapter; maxRetries bounds
// compare-and-swap attempts for reviews and moderation.
func NewUtilityAdapter(client *postgres.Client, maxRetries int) repositories.UtilityRepository {
	return &UtilityAdapter{
		client:   client,
		db:       goqu.New("postgres", client.DB()),
		retryCfg: retry.OptimisticConfig(maxRetries),
	}
}

// Create creates a new utility at version 1
func (a *UtilityAdapter) Create(ctx context.Context, utility *entities.Utility) error {
	record, err := editableRecord(utility)
	if err != nil {
		return apperrors.NewInternalError("failed to encode utility", err)
	}
	moderation, err := moderationRecord(utility)
	if err != nil {
		return apperrors.NewInternalError("failed to encode utility", err)
	}
	for k, v := range moderation {
		record[k] = v
	}
	record["id"] = utility.ID
	record["added_by"] = utility.AddedBy
	record["version"] = 1
	record["created_at"] = utility.CreatedAt

	query, args, err := a.db.Insert(utilitiesTable).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build utility insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("utility already exists")
		}
		return apperrors.NewInternalError("failed to create utility", err)
	}

	utility.Version = 1
	return nil
}

// GetByID retrieves a utility regardless of visibility
func (a *UtilityAdapter) GetByID(ctx context.Context, id string) (*entities.Utility, error) {
	query, args, err := a.db.From(utilitiesTable).
		Select(utilityColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row utilityRow
	err = a.client.DBx().GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("utility not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get utility", err)
	}

	u, err := row.toEntity()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to decode utility", err)
	}
	return u, nil
}

// Update replaces the editable fields and bumps the version. Reviews and
// verification are owned by AppendReview and SetVerification.
func (a *UtilityAdapter) Update(ctx context.Context, utility *entities.Utility) error {
	record, err := editableRecord(utility)
	if err != nil {
		return apperrors.NewInternalError("failed to encode utility", err)
	}
	record["version"] = goqu.L("version + 1")

	query, args, err := a.db.Update(utilitiesTable).
		Set(record).
		Where(goqu.Ex{"id": utility.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update utility", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("utility not found")
	}
	return nil
}

// Delete removes a utility
func (a *UtilityAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(utilitiesTable).Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete utility", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("utility not found")
	}
	return nil
}

// List retrieves utilities matching filter, newest first
func (a *UtilityAdapter) List(ctx context.Context, filter entities.UtilityFilter) ([]*entities.Utility, error) {
	ds := a.db.From(utilitiesTable).
		Select(utilityColumns...).
		Where(filterExpressions(filter)...).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Asc())
	return a.query(ctx, ds)
}

// QueryNear retrieves utilities within radiusMeters of point, nearest first
func (a *UtilityAdapter) QueryNear(ctx context.Context, point entities.GeoPoint, radiusMeters float64, filter entities.UtilityFilter) ([]*entities.Utility, error) {
	cells := geo.Cover(point, radiusMeters, geo.DefaultMaxCells)
	prefixes := make([]exp.Expression, 0, len(cells))
	for _, cell := range cells {
		prefixes = append(prefixes, goqu.C("geohash").Like(cell+"%"))
	}

	ds := a.db.From(utilitiesTable).
		Select(utilityColumns...).
		Where(filterExpressions(filter)...).
		Where(goqu.Or(prefixes...))
	candidates, err := a.query(ctx, ds)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.Utility, len(candidates))
	hits := make([]geo.Hit, 0, len(candidates))
	for _, u := range candidates {
		if !point.WithinRadius(u.Location, radiusMeters) {
			continue
		}
		byID[u.ID] = u
		hits = append(hits, geo.Hit{ID: u.ID, Point: u.Location, Distance: point.DistanceMeters(u.Location)})
	}
	geo.SortHits(hits)

	out := make([]*entities.Utility, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	return out, nil
}

// QueryText retrieves utilities whose name, tags or description contain
// substring, newest first
func (a *UtilityAdapter) QueryText(ctx context.Context, substring string, filter entities.UtilityFilter) ([]*entities.Utility, error) {
	pattern := likePattern(substring)
	ds := a.db.From(utilitiesTable).
		Select(utilityColumns...).
		Where(filterExpressions(filter)...).
		Where(goqu.Or(
			goqu.C("name").ILike(pattern),
			goqu.C("description").ILike(pattern),
			goqu.L("tags::text").ILike(pattern),
		)).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Asc())

	candidates, err := a.query(ctx, ds)
	if err != nil {
		return nil, err
	}

	// tags::text also matches JSON punctuation, so confirm per tag
	out := candidates[:0]
	for _, u := range candidates {
		if u.MatchesText(substring) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (a *UtilityAdapter) query(ctx context.Context, ds *goqu.SelectDataset) ([]*entities.Utility, error) {
	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []utilityRow
	if err := a.client.DBx().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to query utilities", err)
	}

	out := make([]*entities.Utility, 0, len(rows))
	for _, row := range rows {
		u, err := row.toEntity()
		if err != nil {
			return nil, apperrors.NewInternalError("failed to decode utility", err)
		}
		out = append(out, u)
	}
	return out, nil
}

// AppendReview appends a review and recomputes the rating as one
// compare-and-swap on the version column.
func (a *UtilityAdapter) AppendReview(ctx context.Context, id string, review entities.Review) (*entities.Utility, error) {
	return a.swap(ctx, id, func(u *entities.Utility) {
		u.AppendReview(review)
		u.UpdatedAt = review.CreatedAt
	})
}

// SetVerification replaces the moderation state as one compare-and-swap
func (a *UtilityAdapter) SetVerification(ctx context.Context, id string, verification entities.Verification) (*entities.Utility, error) {
	return a.swap(ctx, id, func(u *entities.Utility) {
		u.Verification = verification
		u.UpdatedAt = time.Now()
	})
}

func (a *UtilityAdapter) swap(ctx context.Context, id string, mutate func(u *entities.Utility)) (*entities.Utility, error) {
	var result *entities.Utility
	err := retry.Do(ctx, a.retryCfg, func() error {
		cur, err := a.GetByID(ctx, id)
		if err != nil {
			if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
				return retry.Permanent(err)
			}
			return err
		}

		next := cur.Clone()
		mutate(next)
		record, err := moderationRecord(next)
		if err != nil {
			return retry.Permanent(apperrors.NewInternalError("failed to encode utility", err))
		}
		record["version"] = cur.Version + 1

		query, args, err := a.db.Update(utilitiesTable).
			Set(record).
			Where(goqu.Ex{"id": id, "version": cur.Version}).
			ToSQL()
		if err != nil {
			return retry.Permanent(apperrors.NewInternalError("failed to build update query", err))
		}

		res, err := a.client.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errStaleVersion
		}

		next.Version = cur.Version + 1
		result = next
		return nil
	})
	if err != nil {
		if errors.Is(err, errStaleVersion) {
			return nil, apperrors.NewConflictError("utility was modified concurrently, please retry")
		}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewInternalError("failed to update utility", err)
	}
	return result, nil
}
