package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/config"
	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/internal/logger"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/internal/tokens"
	"github.com/taskhub/apiserver/types"
)

// TokenIssuer hands out credential pairs.
type TokenIssuer interface {
	Issue(user types.User) (tokens.Pair, error)
}

// Submission is a signup request.
type Submission struct {
	Email    string
	Password string
	Name     string
	Location string
	Image    *ImageUpload
}

// RegistrationDecision is an administrator's verdict on a pending signup.
// An empty Role means types.RoleUser.
type RegistrationDecision struct {
	Status types.ProfileStatus
	Role   types.Role
}

// RegistrationResult reports what a submission or decision produced.
type RegistrationResult struct {
	Status       types.ProfileStatus        `json:"status"`
	Message      string                     `json:"message"`
	User         *types.User                `json:"user,omitempty"`
	Tokens       *tokens.Pair               `json:"tokens,omitempty"`
	Registration *types.PendingRegistration `json:"registration,omitempty"`
}

// RegistrationService runs the signup workflow in the configured mode.
type RegistrationService struct {
	store  Store
	issuer TokenIssuer
	images ImageStore
	mode   string
	log    *zap.Logger
}

// NewRegistrationService constructs a RegistrationService. mode is one of
// config.RegistrationImmediate or config.RegistrationApproval.
func NewRegistrationService(store Store, issuer TokenIssuer, images ImageStore, mode string, log *zap.Logger) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{store: store, issuer: issuer, images: images, mode: mode, log: log}
}

// Mode returns the registration mode the service runs in.
func (s *RegistrationService) Mode() string {
	return s.mode
}

// Submit registers a new account right away or queues it for approval.
func (s *RegistrationService) Submit(ctx context.Context, sub Submission) (RegistrationResult, error) {
	email, err := normalizeEmail(sub.Email)
	if err != nil {
		return RegistrationResult{}, err
	}
	name := strings.TrimSpace(sub.Name)
	if name == "" {
		return RegistrationResult{}, FieldError("name", "this field is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return RegistrationResult{}, FieldError("name", "ensure this field has no more than 100 characters")
	}
	if err := validatePassword("password", sub.Password); err != nil {
		return RegistrationResult{}, err
	}
	if _, err := validateImage(sub.Image, s.images); err != nil {
		return RegistrationResult{}, err
	}
	if err := emailAvailable(ctx, s.store.Repositories(), email); err != nil {
		return RegistrationResult{}, err
	}

	hash, err := hashPassword(sub.Password)
	if err != nil {
		return RegistrationResult{}, err
	}
	imageKey, err := saveImage(ctx, s.images, sub.Image)
	if err != nil {
		return RegistrationResult{}, err
	}

	var result RegistrationResult
	if s.mode == config.RegistrationImmediate {
		result, err = s.registerNow(ctx, email, hash, name, strings.TrimSpace(sub.Location), imageKey)
	} else {
		result, err = s.enqueue(ctx, email, hash, name, strings.TrimSpace(sub.Location), imageKey)
	}
	if err != nil {
		s.discardImage(ctx, imageKey)
		return RegistrationResult{}, err
	}
	return result, nil
}

func (s *RegistrationService) registerNow(ctx context.Context, email, hash, name, location, imageKey string) (RegistrationResult, error) {
	var user types.User
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		if err := emailAvailable(ctx, repos, email); err != nil {
			return err
		}
		var err error
		user, err = createAccount(ctx, repos, email, hash, types.Profile{
			Name:     name,
			Location: location,
			ImageKey: imageKey,
			Role:     types.RoleUser,
		}, s.log)
		return err
	})
	if err != nil {
		return RegistrationResult{}, err
	}

	s.log.Info("user registered", zap.Int("user_id", user.ID), zap.String("email", logger.MaskEmail(email)))
	pair, err := s.issuer.Issue(user)
	if err != nil {
		return RegistrationResult{}, err
	}
	return RegistrationResult{
		Status:  types.StatusApproved,
		Message: "User registered successfully",
		User:    &user,
		Tokens:  &pair,
	}, nil
}

func (s *RegistrationService) enqueue(ctx context.Context, email, hash, name, location, imageKey string) (RegistrationResult, error) {
	var reg types.PendingRegistration
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		if err := emailAvailable(ctx, repos, email); err != nil {
			return err
		}
		var err error
		reg, err = repos.Registrations.Create(ctx, types.PendingRegistration{
			Email:        email,
			Name:         name,
			PasswordHash: hash,
			Location:     location,
			ImageKey:     imageKey,
			Status:       types.StatusPending,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return Conflict("email is already pending approval")
		}
		return err
	})
	if err != nil {
		return RegistrationResult{}, err
	}

	s.log.Info("registration queued", zap.Int("registration_id", reg.ID), zap.String("email", logger.MaskEmail(email)))
	return RegistrationResult{
		Status:       types.StatusPending,
		Message:      "Registration submitted and awaiting approval",
		Registration: &reg,
	}, nil
}

// ListPending returns the signups waiting for a decision.
func (s *RegistrationService) ListPending(ctx context.Context, actor authz.Actor) ([]types.PendingRegistration, error) {
	if !authz.RequireAtLeast(actor, types.RoleAdmin) {
		return nil, Forbidden("admin role required")
	}
	return s.store.Repositories().Registrations.ListPending(ctx)
}

// Decide approves or rejects a pending signup. Approval creates the account,
// its profile and default category and removes the pending row in one
// transaction, then issues tokens for the new account.
func (s *RegistrationService) Decide(ctx context.Context, actor authz.Actor, id int, decision RegistrationDecision) (RegistrationResult, error) {
	if !authz.RequireAtLeast(actor, types.RoleAdmin) {
		return RegistrationResult{}, Forbidden("admin role required")
	}
	if decision.Status != types.StatusApproved && decision.Status != types.StatusRejected {
		return RegistrationResult{}, FieldError("status", "status must be approved or rejected")
	}
	role := decision.Role
	if role == "" {
		role = types.RoleUser
	}
	if !role.Valid() {
		return RegistrationResult{}, FieldError("role", "role must be user, admin or superadmin")
	}
	if decision.Status == types.StatusApproved && !authz.CanChooseRole(actor, role) {
		return RegistrationResult{}, Forbidden("only a superadmin can assign an elevated role")
	}

	var (
		reg  types.PendingRegistration
		user types.User
	)
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		var err error
		reg, err = repos.Registrations.Get(ctx, id)
		if err != nil {
			return notFoundAs(err, "registration not found")
		}

		if decision.Status == types.StatusApproved {
			if _, err := repos.Users.GetByEmail(ctx, reg.Email); err == nil {
				return Conflict("email is already registered")
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			user, err = createAccount(ctx, repos, reg.Email, reg.PasswordHash, types.Profile{
				Name:     reg.Name,
				Location: reg.Location,
				ImageKey: reg.ImageKey,
				Role:     role,
			}, s.log)
			if err != nil {
				return err
			}
		}
		return notFoundAs(repos.Registrations.Delete(ctx, id), "registration not found")
	})
	if err != nil {
		return RegistrationResult{}, err
	}

	reg.Status = decision.Status
	if decision.Status == types.StatusRejected {
		s.log.Info("registration rejected",
			zap.Int("registration_id", id),
			zap.Int("decided_by", actor.UserID),
			zap.String("email", logger.MaskEmail(reg.Email)),
		)
		s.discardImage(ctx, reg.ImageKey)
		return RegistrationResult{
			Status:       types.StatusRejected,
			Message:      "Registration rejected",
			Registration: &reg,
		}, nil
	}

	s.log.Info("registration approved",
		zap.Int("registration_id", id),
		zap.Int("user_id", user.ID),
		zap.Int("decided_by", actor.UserID),
		zap.String("role", string(role)),
	)
	pair, err := s.issuer.Issue(user)
	if err != nil {
		return RegistrationResult{}, err
	}
	return RegistrationResult{
		Status:       types.StatusApproved,
		Message:      "Registration approved",
		User:         &user,
		Tokens:       &pair,
		Registration: &reg,
	}, nil
}

func (s *RegistrationService) discardImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Remove(ctx, key); err != nil {
		s.log.Warn("failed to remove image", zap.String("key", key), zap.Error(err))
	}
}

// createAccount inserts an active user and its profile pointing at the
// shared Default Category.
func createAccount(ctx context.Context, repos Repositories, email, hash string, profile types.Profile, log *zap.Logger) (types.User, error) {
	user, err := repos.Users.Create(ctx, types.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, Conflict("email is already registered")
		}
		return types.User{}, err
	}

	category, err := defaultCategory(ctx, repos, log)
	if err != nil {
		return types.User{}, err
	}
	profile.UserID = user.ID
	profile.Status = types.StatusApproved
	profile.DefaultCategoryID = &category.ID
	if _, err := repos.Profiles.Create(ctx, profile); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// emailAvailable fails with a conflict when email belongs to an account or
// a pending signup.
func emailAvailable(ctx context.Context, repos Repositories, email string) error {
	if _, err := repos.Users.GetByEmail(ctx, email); err == nil {
		return Conflict("email is already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := repos.Registrations.GetByEmail(ctx, email); err == nil {
		return Conflict("email is already pending approval")
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", FieldError("email", "this field is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", FieldError("email", "enter a valid email address")
	}
	return email, nil
}
