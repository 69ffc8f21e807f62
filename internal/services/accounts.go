package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/internal/logger"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

// AccountService holds the administrative account operations.
type AccountService struct {
	store Store
	log   *zap.Logger
}

func NewAccountService(store Store, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{store: store, log: log}
}

func (s *AccountService) ListUsers(ctx context.Context, actor authz.Actor) ([]types.UserSummary, error) {
	if !authz.RequireAtLeast(actor, types.RoleAdmin) {
		return nil, Forbidden("admin role required")
	}
	return s.store.Repositories().Users.List(ctx)
}

func (s *AccountService) SetRole(ctx context.Context, actor authz.Actor, userID int, role types.Role) error {
	if !authz.RequireAtLeast(actor, types.RoleSuperAdmin) {
		return Forbidden("superadmin role required")
	}
	if !role.Valid() {
		return FieldError("role", "role must be user, admin or superadmin")
	}
	if err := s.setRole(ctx, userID, role); err != nil {
		return err
	}
	s.log.Info("role changed", zap.Int("user_id", userID), zap.String("role", string(role)), zap.Int("changed_by", actor.UserID))
	return nil
}

func (s *AccountService) SetActive(ctx context.Context, actor authz.Actor, userID int, active bool) error {
	if !authz.RequireAtLeast(actor, types.RoleSuperAdmin) {
		return Forbidden("superadmin role required")
	}
	if actor.UserID == userID && !active {
		return Conflict("you cannot deactivate your own account")
	}
	if err := s.store.Repositories().Users.SetActive(ctx, userID, active); err != nil {
		return notFoundAs(err, "user not found")
	}
	s.log.Info("account activation changed", zap.Int("user_id", userID), zap.Bool("active", active), zap.Int("changed_by", actor.UserID))
	return nil
}

// DeleteUser removes an account with its profile, personal categories,
// tasks and reset codes. A superadmin cannot delete their own account.
func (s *AccountService) DeleteUser(ctx context.Context, actor authz.Actor, userID int) error {
	switch authz.CanDeleteAccount(actor, userID) {
	case authz.DenyPermission:
		return Forbidden("superadmin role required")
	case authz.DenyConflict:
		return Conflict("you cannot delete your own account")
	}
	if err := s.store.Repositories().Users.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrReferenced) {
			return Conflict("user still owns categories used as defaults")
		}
		return notFoundAs(err, "user not found")
	}
	s.log.Info("account deleted", zap.Int("user_id", userID), zap.Int("deleted_by", actor.UserID))
	return nil
}

// AssignRole sets the role of the account behind email. It is an operator
// action with no actor check.
func (s *AccountService) AssignRole(ctx context.Context, email string, role types.Role) (types.User, error) {
	if !role.Valid() {
		return types.User{}, FieldError("role", "role must be user, admin or superadmin")
	}
	user, err := s.store.Repositories().Users.GetByEmail(ctx, email)
	if err != nil {
		return types.User{}, notFoundAs(err, msgEmailNotFound)
	}
	if err := s.setRole(ctx, user.ID, role); err != nil {
		return types.User{}, err
	}
	s.log.Info("role assigned", zap.String("email", logger.MaskEmail(email)), zap.String("role", string(role)))
	return user, nil
}

// CreateSuperAdmin bootstraps an active superadmin account.
func (s *AccountService) CreateSuperAdmin(ctx context.Context, email, password, name string) (types.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return types.User{}, err
	}
	if err := validatePassword("password", password); err != nil {
		return types.User{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return types.User{}, err
	}

	var user types.User
	err = s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		if err := emailAvailable(ctx, repos, email); err != nil {
			return err
		}
		var err error
		user, err = createAccount(ctx, repos, email, hash, types.Profile{
			Name: name,
			Role: types.RoleSuperAdmin,
		}, s.log)
		return err
	})
	if err != nil {
		return types.User{}, err
	}
	s.log.Info("superadmin created", zap.Int("user_id", user.ID), zap.String("email", logger.MaskEmail(email)))
	return user, nil
}

func (s *AccountService) setRole(ctx context.Context, userID int, role types.Role) error {
	return s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.Users.GetByID(ctx, userID); err != nil {
			return notFoundAs(err, "user not found")
		}
		if _, err := ensureProfile(ctx, repos, userID, s.log); err != nil {
			return err
		}
		return notFoundAs(repos.Profiles.SetRole(ctx, userID, role), "user not found")
	})
}
