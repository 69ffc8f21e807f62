package types

import "time"

// OTP is a one-time password-reset code. Rows are never deleted; a used
// code stays as history.
type OTP struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Code      string    `json:"-" db:"code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	IsUsed    bool      `json:"is_used" db:"is_used"`
}

// Expired reports whether the code is past its expiry at now.
func (o OTP) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
