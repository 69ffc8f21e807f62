package types

import "time"

// ProfileStatus tracks where an account is in the signup lifecycle.
type ProfileStatus string

const (
	StatusApproved ProfileStatus = "approved"
	StatusPending  ProfileStatus = "pending"
	StatusRejected ProfileStatus = "rejected"
)

// Profile holds the per-user display and authorization data.
// Every user has exactly one profile; it is created on first access
// when missing.
type Profile struct {
	// UserID is the owning user and the primary key of the profile.
	UserID int `json:"user_id" db:"user_id"`

	// Name is the display name.
	Name string `json:"name" db:"name"`

	// Location is free text.
	Location string `json:"location" db:"location"`

	// ImageKey is the object storage key of the profile image, empty when unset.
	ImageKey string `json:"image_key,omitempty" db:"image_key"`

	// Role is the authorization level of the user.
	Role Role `json:"role" db:"role"`

	// Status is the signup status of the account.
	Status ProfileStatus `json:"status" db:"status"`

	// DefaultCategoryID is the category assigned to tasks created without one.
	// A category referenced here cannot be deleted.
	DefaultCategoryID *int `json:"default_category_id" db:"default_category_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
