package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tendant/blog-auth/pkg/domain"
)

// Messages returned by ForgotPassword.
const (
	ForgotPasswordMessage       = "If an account with that email exists, a password reset link has been sent."
	ForgotPasswordGoogleMessage = "This account uses Google sign-in. Please continue with Google instead."
)

// ForgotPassword starts a password reset. The returned message is the same
// whether or not the email is registered, except for accounts that sign in
// with Google, which are told to use Google instead.
func (s *Service) ForgotPassword(ctx context.Context, email string, meta RequestMeta) (string, error) {
	if err := ValidateEmail(email, false, false); err != nil {
		return "", err
	}
	email = NormalizeEmail(email)

	if err := s.verifyHuman(ctx, meta, s.cfg.CaptchaMinScore, false); err != nil {
		return "", err
	}

	// Every request counts, whether or not the email exists.
	if err := s.attempt(ctx, s.trackers.PasswordReset, meta.IP); err != nil {
		return "", err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.record(ctx, domain.AuditForgotPassword, nil, false, meta, reason("unknown_email"))
			return ForgotPasswordMessage, nil
		}
		return "", err
	}

	if user.IsExternal() {
		s.record(ctx, domain.AuditForgotPassword, uuidPtr(user.ID), false, meta, reason("provider_mismatch"))
		return ForgotPasswordGoogleMessage, nil
	}

	rawToken, tokenHash, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.users.SetResetToken(ctx, user.ID, tokenHash, s.now().Add(s.cfg.ResetTokenTTL)); err != nil {
		return "", err
	}

	// The token is already stored; a delivery failure is logged and the
	// response stays generic so it cannot be used to discover accounts.
	if err := s.mailer.Send(ctx, user, rawToken, domain.NotificationPasswordReset); err != nil {
		s.logger.Error("failed to send password reset email", "user_id", user.ID, "error", err)
		s.record(ctx, domain.AuditForgotPassword, uuidPtr(user.ID), false, meta, reason("email_failed"))
		return ForgotPasswordMessage, nil
	}

	s.record(ctx, domain.AuditForgotPassword, uuidPtr(user.ID), true, meta, nil)
	return ForgotPasswordMessage, nil
}

// ResetPassword consumes a reset token and sets a new password. The token
// lookup, password write and lockout reset happen in one store update, so a
// token can be used exactly once.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError("reset token is required")
	}
	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return err
	}

	if err := s.verifyHuman(ctx, meta, s.cfg.CaptchaMinScore, false); err != nil {
		return err
	}

	passwordHash, err := HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	userID, err := s.users.ResetPasswordWithToken(ctx, HashToken(token), passwordHash, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidResetToken) {
			s.record(ctx, domain.AuditResetPassword, nil, false, meta, reason("invalid_token"))
		}
		return err
	}

	s.record(ctx, domain.AuditResetPassword, uuidPtr(userID), true, meta, nil)
	return nil
}
