package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/types"
)

// RegistrationRepository handles persistence for signups awaiting approval.
type RegistrationRepository struct {
	db db.DBTX
}

func NewRegistrationRepository(conn db.DBTX) *RegistrationRepository {
	return &RegistrationRepository{db: conn}
}

const registrationColumns = `id, email, name, password_hash, location, image_key, status, created_at`

func scanRegistration(row rowScanner) (types.PendingRegistration, error) {
	var reg types.PendingRegistration
	err := row.Scan(
		&reg.ID,
		&reg.Email,
		&reg.Name,
		&reg.PasswordHash,
		&reg.Location,
		&reg.ImageKey,
		&reg.Status,
		&reg.CreatedAt,
	)
	return reg, err
}

func (r *RegistrationRepository) Create(ctx context.Context, reg types.PendingRegistration) (types.PendingRegistration, error) {
	reg.CreatedAt = time.Now()
	if reg.Status == "" {
		reg.Status = types.StatusPending
	}

	const query = `
		INSERT INTO pending_registrations (email, name, password_hash, location, image_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		reg.Email,
		reg.Name,
		reg.PasswordHash,
		reg.Location,
		reg.ImageKey,
		reg.Status,
		reg.CreatedAt,
	).Scan(&reg.ID); err != nil {
		return types.PendingRegistration{}, translate("create registration", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) Get(ctx context.Context, id int) (types.PendingRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM pending_registrations WHERE id = $1`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PendingRegistration{}, ErrNotFound
		}
		return types.PendingRegistration{}, translate("get registration", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) GetByEmail(ctx context.Context, email string) (types.PendingRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM pending_registrations WHERE lower(email) = lower($1)`
	reg, err := scanRegistration(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.PendingRegistration{}, ErrNotFound
		}
		return types.PendingRegistration{}, translate("get registration by email", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) ListPending(ctx context.Context) ([]types.PendingRegistration, error) {
	query := `SELECT ` + registrationColumns + ` FROM pending_registrations
		WHERE status = 'pending'
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, translate("list registrations", err)
	}
	defer rows.Close()

	regs := make([]types.PendingRegistration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, translate("scan registration", err)
		}
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, translate("list registrations", err)
	}
	return regs, nil
}

func (r *RegistrationRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM pending_registrations WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate("delete registration", err)
	}
	return affectedOrNotFound(result)
}
