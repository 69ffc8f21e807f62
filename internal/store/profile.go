package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/types"
)

// ProfileRepository handles persistence for profiles.
type ProfileRepository struct {
	db db.DBTX
}

func NewProfileRepository(conn db.DBTX) *ProfileRepository {
	return &ProfileRepository{db: conn}
}

const profileColumns = `user_id, name, location, image_key, role, status, default_category_id, created_at, updated_at`

func scanProfile(row rowScanner) (types.Profile, error) {
	var profile types.Profile
	var defaultCategory sql.NullInt64
	err := row.Scan(
		&profile.UserID,
		&profile.Name,
		&profile.Location,
		&profile.ImageKey,
		&profile.Role,
		&profile.Status,
		&defaultCategory,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	profile.DefaultCategoryID = intPtr(defaultCategory)
	return profile, err
}

func (r *ProfileRepository) Get(ctx context.Context, userID int) (types.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`
	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, translate("get profile", err)
	}
	return profile, nil
}

// Ensure returns the profile of userID, creating a blank one when missing.
// Concurrent callers converge on the same row.
func (r *ProfileRepository) Ensure(ctx context.Context, userID int) (types.Profile, error) {
	const insert = `
		INSERT INTO profiles (user_id, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, userID, types.RoleUser, types.StatusApproved, time.Now()); err != nil {
		return types.Profile{}, translate("ensure profile", err)
	}
	return r.Get(ctx, userID)
}

func (r *ProfileRepository) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	const query = `
		INSERT INTO profiles (user_id, name, location, image_key, role, status, default_category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		profile.UserID,
		profile.Name,
		profile.Location,
		profile.ImageKey,
		profile.Role,
		profile.Status,
		nullInt(profile.DefaultCategoryID),
		profile.CreatedAt,
		profile.UpdatedAt,
	); err != nil {
		return types.Profile{}, translate("create profile", err)
	}
	return profile, nil
}

// Update writes the user-editable fields of a profile.
func (r *ProfileRepository) Update(ctx context.Context, profile types.Profile) (types.Profile, error) {
	profile.UpdatedAt = time.Now()

	const query = `
		UPDATE profiles
		SET name = $1,
			location = $2,
			image_key = $3,
			default_category_id = $4,
			updated_at = $5
		WHERE user_id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		profile.Name,
		profile.Location,
		profile.ImageKey,
		nullInt(profile.DefaultCategoryID),
		profile.UpdatedAt,
		profile.UserID,
	)
	if err != nil {
		return types.Profile{}, translate("update profile", err)
	}
	if err := affectedOrNotFound(result); err != nil {
		return types.Profile{}, err
	}
	return profile, nil
}

// AssignDefaultCategory sets the default only when the profile has none, so
// a concurrent explicit choice is never overwritten. It reports whether the
// row changed.
func (r *ProfileRepository) AssignDefaultCategory(ctx context.Context, userID, categoryID int) (bool, error) {
	const query = `
		UPDATE profiles
		SET default_category_id = $1, updated_at = $2
		WHERE user_id = $3 AND default_category_id IS NULL`
	result, err := r.db.ExecContext(ctx, query, categoryID, time.Now(), userID)
	if err != nil {
		return false, translate("assign default category", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ProfileRepository) SetRole(ctx context.Context, userID int, role types.Role) error {
	const query = `UPDATE profiles SET role = $1, updated_at = $2 WHERE user_id = $3`
	result, err := r.db.ExecContext(ctx, query, role, time.Now(), userID)
	if err != nil {
		return translate("set role", err)
	}
	return affectedOrNotFound(result)
}

// ReferencesCategory reports whether any profile uses categoryID as its default.
func (r *ProfileRepository) ReferencesCategory(ctx context.Context, categoryID int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM profiles WHERE default_category_id = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, categoryID).Scan(&exists); err != nil {
		return false, translate("check default category references", err)
	}
	return exists, nil
}
