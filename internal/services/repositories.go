package services

import (
	"context"

	"github.com/taskhub/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	SetActive(ctx context.Context, id int, active bool) error
	Delete(ctx context.Context, id int) error
	List(ctx context.Context) ([]types.UserSummary, error)
}

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Get(ctx context.Context, userID int) (types.Profile, error)
	Ensure(ctx context.Context, userID int) (types.Profile, error)
	Create(ctx context.Context, profile types.Profile) (types.Profile, error)
	Update(ctx context.Context, profile types.Profile) (types.Profile, error)
	AssignDefaultCategory(ctx context.Context, userID, categoryID int) (bool, error)
	SetRole(ctx context.Context, userID int, role types.Role) error
	ReferencesCategory(ctx context.Context, categoryID int) (bool, error)
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	GetOrCreateDefault(ctx context.Context) (types.Category, error)
	MarkGeneral(ctx context.Context, id int, setGeneral, clearCreator bool) error
	Get(ctx context.Context, id int) (types.Category, error)
	GetVisible(ctx context.Context, id, viewerID int) (types.Category, error)
	ListVisible(ctx context.Context, viewerID int) ([]types.Category, error)
	Create(ctx context.Context, category types.Category) (types.Category, error)
	Rename(ctx context.Context, id int, name string) error
	Delete(ctx context.Context, id int) error
}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	Get(ctx context.Context, id int) (types.Task, error)
	List(ctx context.Context, filter types.TaskFilter) ([]types.Task, int, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id int) error
}

// OTPRepository defines persistence operations for password-reset codes.
type OTPRepository interface {
	Create(ctx context.Context, otp types.OTP) (types.OTP, error)
	InvalidateActive(ctx context.Context, userID int) (int64, error)
	FindUnused(ctx context.Context, userID int, code string) (types.OTP, error)
	MarkUsed(ctx context.Context, id int64) error
}

// RegistrationRepository defines persistence operations for pending signups.
type RegistrationRepository interface {
	Create(ctx context.Context, reg types.PendingRegistration) (types.PendingRegistration, error)
	Get(ctx context.Context, id int) (types.PendingRegistration, error)
	GetByEmail(ctx context.Context, email string) (types.PendingRegistration, error)
	ListPending(ctx context.Context) ([]types.PendingRegistration, error)
	Delete(ctx context.Context, id int) error
}

// Repositories is one consistent view of the datastore, either the shared
// connection or a single transaction.
type Repositories struct {
	Users         UserRepository
	Profiles      ProfileRepository
	Categories    CategoryRepository
	Tasks         TaskRepository
	OTPs          OTPRepository
	Registrations RegistrationRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
