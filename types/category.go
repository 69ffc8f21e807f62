package types

import "time"

// DefaultCategoryName is the reserved name of the shared fallback category.
const DefaultCategoryName = "Default Category"

// Category kinds as exposed to clients.
const (
	CategoryTypeGeneral  = "general"
	CategoryTypePersonal = "personal"
)

// Category groups tasks. General categories are shared by everyone and have
// no creator; personal categories belong to exactly one user.
type Category struct {
	// ID is the unique identifier of the category.
	ID int `json:"id" db:"id"`

	// Name is the human-readable label.
	Name string `json:"name" db:"name"`

	// CreatorID is the owning user, nil exactly when IsGeneral is true.
	CreatorID *int `json:"creator_id" db:"creator_id"`

	// IsGeneral marks a shared category.
	IsGeneral bool `json:"is_general" db:"is_general"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Consistent reports whether the general/creator invariant holds.
func (c Category) Consistent() bool {
	return c.IsGeneral == (c.CreatorID == nil)
}

// OwnedBy reports whether userID created this category.
func (c Category) OwnedBy(userID int) bool {
	return c.CreatorID != nil && *c.CreatorID == userID
}

// Type returns CategoryTypeGeneral or CategoryTypePersonal.
func (c Category) Type() string {
	if c.IsGeneral {
		return CategoryTypeGeneral
	}
	return CategoryTypePersonal
}

// CategoryView is a category as seen by a specific caller.
type CategoryView struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	IsGeneral  bool      `json:"is_general"`
	IsEditable bool      `json:"is_editable"`
	Type       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
}
