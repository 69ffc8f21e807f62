package types

import "time"

// PendingRegistration is a signup waiting for an administrator decision.
// The row is removed once the decision is made.
type PendingRegistration struct {
	ID           int           `json:"id" db:"id"`
	Email        string        `json:"email" db:"email"`
	Name         string        `json:"name" db:"name"`
	PasswordHash string        `json:"-" db:"password_hash"`
	Location     string        `json:"location" db:"location"`
	ImageKey     string        `json:"image_key,omitempty" db:"image_key"`
	Status       ProfileStatus `json:"status" db:"status"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}
