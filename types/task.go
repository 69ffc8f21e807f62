package types

import "time"

// Task is a single to-do item owned by one user.
type Task struct {
	// ID is the unique identifier of the task.
	ID int `json:"id" db:"id"`

	// UserID is the owner of the task.
	UserID int `json:"user_id" db:"user_id"`

	// CategoryID is nil when the task is uncategorized, including after its
	// category was deleted.
	CategoryID *int `json:"category_id" db:"category_id"`

	Name        string     `json:"name" db:"name"`
	Description *string    `json:"description" db:"description"`
	DueDate     *time.Time `json:"due_date" db:"due_date"`
	IsCompleted bool       `json:"is_completed" db:"is_completed"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TaskFilter narrows a task listing. A nil OwnerID means every owner.
type TaskFilter struct {
	OwnerID *int
	DueFrom *time.Time
	DueTo   *time.Time
	Offset  int
	Limit   int
}
