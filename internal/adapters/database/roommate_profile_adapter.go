package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/campuslink/backend/internal/domain/entities"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/campuslink/backend/pkg/errors"
)

const roommateProfilesTable = "roommate_profiles"

var roommateProfileColumns = []interface{}{
	"user_id", "bio", "interests", "preferences", "profile_complete", "created_at", "updated_at",
}

type roommateProfileRow struct {
	UserID          string    `db:"user_id"`
	Bio             string    `db:"bio"`
	Interests       []byte    `db:"interests"`
	Preferences     []byte    `db:"preferences"`
	ProfileComplete bool      `db:"profile_complete"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r roommateProfileRow) toEntity() (*entities.RoommateProfile, error) {
	p := &entities.RoommateProfile{
		UserID:          r.UserID,
		Bio:             r.Bio,
		ProfileComplete: r.ProfileComplete,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Interests, &p.Interests); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(r.Preferences, &p.Preferences); err != nil {
		return nil, err
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.Preferences.Location == nil {
		p.Preferences.Location = []string{}
	}
	if p.Preferences.Lifestyle == nil {
		p.Preferences.Lifestyle = []entities.Lifestyle{}
	}
	return p, nil
}

// RoommateProfileAdapter implements roommate profile persistence in Postgres
type RoommateProfileAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewRoommateProfileAdapter creates a new roommate profile adapter
func NewRoommateProfileAdapter(client *postgres.Client) repositories.RoommateProfileRepository {
	return &RoommateProfileAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByUserID retrieves the profile owned by a user
func (a *RoommateProfileAdapter) GetByUserID(ctx context.Context, userID string) (*entities.RoommateProfile, error) {
	query, args, err := a.db.From(roommateProfilesTable).
		Select(roommateProfileColumns...).
		Where(goqu.Ex{"user_id": userID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row roommateProfileRow
	err = a.client.DBx().GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("roommate profile not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get roommate profile", err)
	}

	profile, err := row.toEntity()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to decode roommate profile", err)
	}
	return profile, nil
}

// ListComplete retrieves complete profiles in insertion order
func (a *RoommateProfileAdapter) ListComplete(ctx context.Context, excludeUserID string) ([]*entities.RoommateProfile, error) {
	ds := a.db.From(roommateProfilesTable).
		Select(roommateProfileColumns...).
		Where(goqu.Ex{"profile_complete": true})
	if excludeUserID != "" {
		ds = ds.Where(goqu.C("user_id").Neq(excludeUserID))
	}

	query, args, err := ds.Order(goqu.I("seq").Asc()).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	var rows []roommateProfileRow
	if err := a.client.DBx().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list roommate profiles", err)
	}

	profiles := make([]*entities.RoommateProfile, 0, len(rows))
	for _, row := range rows {
		p, err := row.toEntity()
		if err != nil {
			return nil, apperrors.NewInternalError("failed to decode roommate profile", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// lockProfileQuery serializes upserts for one user, including the first one
// when there is no row for FOR UPDATE to lock. Released at commit or rollback.
const lockProfileQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

// Upsert takes the user's advisory lock, reads the current row, builds the
// replacement and writes it with INSERT ... ON CONFLICT in one transaction.
func (a *RoommateProfileAdapter) Upsert(ctx context.Context, userID string, build func(existing *entities.RoommateProfile) (*entities.RoommateProfile, error)) (*entities.RoommateProfile, error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, lockProfileQuery, userID); err != nil {
		return nil, apperrors.NewInternalError("failed to lock roommate profile", err)
	}

	query, args, err := a.db.From(roommateProfilesTable).
		Select(roommateProfileColumns...).
		Where(goqu.Ex{"user_id": userID}).
		ForUpdate(exp.Wait).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var existing *entities.RoommateProfile
	var row roommateProfileRow
	switch err := tx.GetContext(ctx, &row, query, args...); {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, apperrors.NewInternalError("failed to lock roommate profile", err)
	default:
		existing, err = row.toEntity()
		if err != nil {
			return nil, apperrors.NewInternalError("failed to decode roommate profile", err)
		}
	}

	next, err := build(existing)
	if err != nil {
		return nil, err
	}

	interests, err := jsonColumn(next.Interests)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode interests", err)
	}
	preferences, err := jsonColumn(next.Preferences)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode preferences", err)
	}

	record := goqu.Record{
		"user_id":          next.UserID,
		"bio":              next.Bio,
		"interests":        interests,
		"preferences":      preferences,
		"profile_complete": next.ProfileComplete,
		"created_at":       next.CreatedAt,
		"updated_at":       next.UpdatedAt,
	}
	query, args, err = a.db.Insert(roommateProfilesTable).
		Rows(record).
		OnConflict(goqu.DoUpdate("user_id", goqu.Record{
			"bio":              goqu.L("EXCLUDED.bio"),
			"interests":        goqu.L("EXCLUDED.interests"),
			"preferences":      goqu.L("EXCLUDED.preferences"),
			"profile_complete": goqu.L("EXCLUDED.profile_complete"),
			"updated_at":       goqu.L("EXCLUDED.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to save roommate profile", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit roommate profile", err)
	}
	return next, nil
}

// Delete deletes a user's profile
func (a *RoommateProfileAdapter) Delete(ctx context.Context, userID string) error {
	query, args, err := a.db.Delete(roommateProfilesTable).
		Where(goqu.Ex{"user_id": userID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete roommate profile", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError("roommate profile not found")
	}
	return nil
}
