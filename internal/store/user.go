package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db db.DBTX
}

func NewUserRepository(conn db.DBTX) *UserRepository {
	return &UserRepository{db: conn}
}

const userColumns = `id, email, password_hash, is_active, created_at, updated_at`

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, translate("get user", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, translate("get user by email", err)
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (email, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.PasswordHash,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, translate("create user", err)
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now(), id)
	if err != nil {
		return translate("update password", err)
	}
	return affectedOrNotFound(result)
}

func (r *UserRepository) SetActive(ctx context.Context, id int, active bool) error {
	const query = `UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		return translate("set user active", err)
	}
	return affectedOrNotFound(result)
}

func (r *UserRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate("delete user", err)
	}
	return affectedOrNotFound(result)
}

// List returns every account joined with its profile. Accounts without a
// profile yet are reported with the default role.
func (r *UserRepository) List(ctx context.Context) ([]types.UserSummary, error) {
	const query = `
		SELECT u.id, u.email, u.is_active, COALESCE(p.name, ''),
			COALESCE(p.role, 'user'), COALESCE(p.status, 'approved'), u.created_at
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		ORDER BY u.id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translate("list users", err)
	}
	defer rows.Close()

	users := make([]types.UserSummary, 0)
	for rows.Next() {
		var summary types.UserSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.Email,
			&summary.IsActive,
			&summary.Name,
			&summary.Role,
			&summary.Status,
			&summary.CreatedAt,
		); err != nil {
			return nil, translate("scan user", err)
		}
		users = append(users, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list users", err)
	}
	return users, nil
}
