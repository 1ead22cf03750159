package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tendant/blog-auth/pkg/domain"
)

// ResendVerificationMessage is returned when a verification email was sent,
// and also when the email is unknown.
const ResendVerificationMessage = "If an unverified account with that email exists, a verification email has been sent."

// VerifyEmail consumes an email verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string, meta RequestMeta) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.ErrInvalidVerificationToken
	}

	userID, err := s.users.VerifyEmailWithToken(ctx, HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidVerificationToken) {
			s.record(ctx, domain.AuditVerifyEmail, nil, false, meta, reason("invalid_token"))
		}
		return err
	}

	s.record(ctx, domain.AuditVerifyEmail, uuidPtr(userID), true, meta, nil)
	return nil
}

// ResendVerification issues a fresh verification token. It is refused for
// verified accounts and while an earlier token is still valid.
func (s *Service) ResendVerification(ctx context.Context, email string, meta RequestMeta) (string, error) {
	if err := ValidateEmail(email, false, false); err != nil {
		return "", err
	}
	email = NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return ResendVerificationMessage, nil
		}
		return "", err
	}

	if user.IsVerified {
		return "", domain.ErrAlreadyVerified
	}
	now := s.now()
	if user.HasPendingVerification(now) {
		remaining := domain.CeilMinutes(user.VerificationTokenExpiresAt.Sub(now))
		s.record(ctx, domain.AuditResendVerification, uuidPtr(user.ID), false, meta, reason("token_still_valid"))
		return "", fmt.Errorf("%w, check your inbox or try again in %d minutes", domain.ErrVerificationPending, remaining)
	}

	rawToken, tokenHash, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.users.SetVerificationToken(ctx, user.ID, tokenHash, now.Add(s.cfg.VerificationTTL)); err != nil {
		return "", err
	}

	if err := s.mailer.Send(ctx, user, rawToken, domain.NotificationVerifyEmail); err != nil {
		// Expire the undelivered token so the next resend is not refused.
		if rerr := s.users.SetVerificationToken(ctx, user.ID, tokenHash, now); rerr != nil {
			s.logger.Error("failed to expire undelivered verification token", "user_id", user.ID, "error", rerr)
		}
		s.record(ctx, domain.AuditResendVerification, uuidPtr(user.ID), false, meta, reason("email_failed"))
		return "", &domain.UpstreamError{Service: "email", Err: err}
	}

	s.record(ctx, domain.AuditResendVerification, uuidPtr(user.ID), true, meta, nil)
	return ResendVerificationMessage, nil
}
