package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskhub/apiserver/internal/authz"
	"github.com/taskhub/apiserver/internal/logger"
	"github.com/taskhub/apiserver/internal/notify"
	"github.com/taskhub/apiserver/internal/store"
	"github.com/taskhub/apiserver/types"
)

const otpDigits = 6

const (
	msgEmailNotFound = "Email not found"
	msgInvalidOTP    = "Invalid OTP"
	msgExpiredOTP    = "OTP has expired"
)

// Notifier delivers messages to users.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// RecoveryService runs the password reset and change flows.
type RecoveryService struct {
	store    Store
	notifier Notifier
	ttl      time.Duration
	now      func() time.Time
	newCode  func() (string, error)
	log      *zap.Logger
}

func NewRecoveryService(store Store, notifier Notifier, ttl time.Duration, log *zap.Logger) *RecoveryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RecoveryService{
		store:    store,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
		newCode:  generateOTP,
		log:      log,
	}
}

// Request issues a new reset code for email and mails it. Earlier unused
// codes of the same user stop working. When delivery fails the stored code
// is kept and an upstream error is returned.
func (s *RecoveryService) Request(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return FieldError("email", "this field is required")
	}
	user, err := s.store.Repositories().Users.GetByEmail(ctx, email)
	if err != nil {
		return notFoundAs(err, msgEmailNotFound)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	now := s.now()
	err = s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		if _, err := repos.OTPs.InvalidateActive(ctx, user.ID); err != nil {
			return err
		}
		_, err := repos.OTPs.Create(ctx, types.OTP{
			UserID:    user.ID,
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		})
		return err
	})
	if err != nil {
		return err
	}

	msg := notify.Message{
		To:      user.Email,
		Subject: "Your OTP Code",
		Body:    fmt.Sprintf("Your OTP is %s. It expires in %d minutes.", code, int(s.ttl.Minutes())),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.log.Error("otp delivery failed", zap.Int("user_id", user.ID), zap.String("email", logger.MaskEmail(user.Email)), zap.Error(err))
		return Upstream("failed to send OTP", err)
	}
	s.log.Info("otp issued", zap.Int("user_id", user.ID), zap.String("email", logger.MaskEmail(user.Email)))
	return nil
}

// Verify replaces the password of email when code is a live reset code.
// A wrong code and an already used code fail the same way; an expired code
// fails distinctly and stays unused.
func (s *RecoveryService) Verify(ctx context.Context, email, code, newPassword string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" {
		return FieldError("email", "this field is required")
	}
	if code == "" {
		return FieldError("otp", "this field is required")
	}
	if err := validatePassword("new_password", newPassword); err != nil {
		return err
	}

	user, err := s.store.Repositories().Users.GetByEmail(ctx, email)
	if err != nil {
		return notFoundAs(err, msgEmailNotFound)
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, repos Repositories) error {
		otp, err := repos.OTPs.FindUnused(ctx, user.ID, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Validation(msgInvalidOTP)
			}
			return err
		}
		if otp.Expired(s.now()) {
			return Validation(msgExpiredOTP)
		}
		if err := repos.OTPs.MarkUsed(ctx, otp.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Validation(msgInvalidOTP)
			}
			return err
		}
		return repos.Users.UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		return err
	}
	s.log.Info("password reset", zap.Int("user_id", user.ID))
	return nil
}

// Change replaces the password of an authenticated user after checking the
// current one.
func (s *RecoveryService) Change(ctx context.Context, actor authz.Actor, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return FieldError("old_password", "this field is required")
	}
	if err := validatePassword("new_password", newPassword); err != nil {
		return err
	}

	repos := s.store.Repositories()
	user, err := repos.Users.GetByID(ctx, actor.UserID)
	if err != nil {
		return notFoundAs(err, "user not found")
	}
	if !checkPassword(user.PasswordHash, oldPassword) {
		return FieldError("old_password", "old password is incorrect")
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := repos.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return notFoundAs(err, "user not found")
	}
	s.log.Info("password changed", zap.Int("user_id", user.ID))
	return nil
}

// generateOTP returns a uniformly random code of otpDigits digits with
// leading zeros kept.
func generateOTP() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
