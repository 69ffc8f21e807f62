package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/taskhub/apiserver/internal/db"
	"github.com/taskhub/apiserver/types"
)

// OTPRepository handles persistence for password-reset codes.
type OTPRepository struct {
	db db.DBTX
}

func NewOTPRepository(conn db.DBTX) *OTPRepository {
	return &OTPRepository{db: conn}
}

func (r *OTPRepository) Create(ctx context.Context, otp types.OTP) (types.OTP, error) {
	const query = `
		INSERT INTO otps (user_id, code, created_at, expires_at, is_used)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		otp.UserID,
		otp.Code,
		otp.CreatedAt,
		otp.ExpiresAt,
	).Scan(&otp.ID); err != nil {
		return types.OTP{}, translate("create otp", err)
	}
	otp.IsUsed = false
	return otp, nil
}

// InvalidateActive marks every unused code of userID as used.
func (r *OTPRepository) InvalidateActive(ctx context.Context, userID int) (int64, error) {
	const query = `UPDATE otps SET is_used = TRUE WHERE user_id = $1 AND is_used = FALSE`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, translate("invalidate otps", err)
	}
	return result.RowsAffected()
}

// FindUnused returns the newest unused code of userID equal to code.
func (r *OTPRepository) FindUnused(ctx context.Context, userID int, code string) (types.OTP, error) {
	const query = `
		SELECT id, user_id, code, created_at, expires_at, is_used
		FROM otps
		WHERE user_id = $1 AND code = $2 AND is_used = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	var otp types.OTP
	err := r.db.QueryRowContext(ctx, query, userID, code).Scan(
		&otp.ID,
		&otp.UserID,
		&otp.Code,
		&otp.CreatedAt,
		&otp.ExpiresAt,
		&otp.IsUsed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.OTP{}, ErrNotFound
		}
		return types.OTP{}, translate("find otp", err)
	}
	return otp, nil
}

// MarkUsed consumes a code. It returns ErrNotFound when the code was already
// used, so only one of two concurrent redemptions succeeds.
func (r *OTPRepository) MarkUsed(ctx context.Context, id int64) error {
	const query = `UPDATE otps SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate("mark otp used", err)
	}
	return affectedOrNotFound(result)
}
