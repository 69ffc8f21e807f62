package types

import "time"

// User represents an account in the system.
// It holds the login identity and the credential, nothing else; display
// data and authorization live on the Profile.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Email is the user's address and login handle. Unique.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsActive reports whether the account may authenticate.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UserSummary is the admin listing view of an account.
type UserSummary struct {
	ID        int           `json:"id"`
	Email     string        `json:"email"`
	IsActive  bool          `json:"is_active"`
	Name      string        `json:"name"`
	Role      Role          `json:"role"`
	Status    ProfileStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
