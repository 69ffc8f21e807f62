package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/internal/tokens"
	"github.com/taskhub/apiserver/types"
)

const msgBadCredentials = "No active account found with the given credentials"

// CredentialIssuer issues token pairs and verifies refresh tokens.
type CredentialIssuer interface {
	TokenIssuer
	ParseRefresh(token string) (*tokens.Claims, error)
}

// AuthService handles logins, token refresh and caller identification.
type AuthService struct {
	store    Store
	issuer   CredentialIssuer
	denylist tokens.Denylist
	now      func() time.Time
	log      *zap.Logger
}

// NewAuthService constructs an AuthService. A nil denylist leaves refresh
// tokens reusable until they expire.
func NewAuthService(store Store, issuer CredentialIssuer, denylist tokens.Denylist, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	if denylist == nil {
		denylist = tokens.NopDenylist{}
	}
	return &AuthService{store: store, issuer: issuer, denylist: denylist, now: time.Now, log: log}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (tokens.Pair, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return tokens.Pair{}, FieldError("email", "this field is required")
	}
	if password == "" {
		return tokens.Pair{}, FieldError("password", "this field is required")
	}

	user, err := s.store.Repositories().Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return tokens.Pair{}, Unauthenticated(msgBadCredentials)
		}
		return tokens.Pair{}, err
	}
	if !user.IsActive || !checkPassword(user.PasswordHash, password) {
		return tokens.Pair{}, Unauthenticated(msgBadCredentials)
	}
	return s.issuer.Issue(user)
}

// Refresh exchanges a refresh token for a new pair. Each refresh token can
// be exchanged once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (tokens.Pair, error) {
	claims, err := s.issuer.ParseRefresh(strings.TrimSpace(refreshToken))
	if err != nil {
		return tokens.Pair{}, Unauthenticated("token is invalid or expired")
	}
	userID, err := claims.UserID()
	if err != nil {
		return tokens.Pair{}, Unauthenticated("token is invalid or expired")
	}
	user, err := s.store.Repositories().Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return tokens.Pair{}, Unauthenticated("user not found")
		}
		return tokens.Pair{}, err
	}
	if !user.IsActive {
		return tokens.Pair{}, Unauthenticated("user is inactive")
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	first, err := s.denylist.Consume(ctx, claims.ID, ttl)
	if err != nil {
		return tokens.Pair{}, err
	}
	if !first {
		s.log.Warn("refresh token reused", zap.Int("user_id", user.ID))
		return tokens.Pair{}, Unauthenticated("token is blacklisted")
	}
	return s.issuer.Issue(user)
}

// Identify resolves the caller behind a verified access token. The profile
// is created on demand so every authenticated request has one.
func (s *AuthService) Identify(ctx context.Context, userID int) (authz.Actor, error) {
	var actor authz.Actor
	err := s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		user, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Unauthenticated("user not found")
			}
			return err
		}
		if !user.IsActive {
			return Unauthenticated("user is inactive")
		}
		profile, err := ensureProfile(ctx, repos, user.ID, s.log)
		if err != nil {
			return err
		}
		actor = authz.Actor{UserID: user.ID, Email: user.Email, Role: profile.Role}
		return nil
	})
	return actor, err
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, actor authz.Actor) (types.User, error) {
	user, err := s.store.Repositories().Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return types.User{}, notFoundAs(err, "user not found")
	}
	return user, nil
}
