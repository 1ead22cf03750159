package auth

import (
	"context"
	"errors"

	"github.com/tendant/blog-auth/pkg/domain"
)

// Session is the result of a successful sign-in.
type Session struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

// Signin authenticates an email and password.
//
// Two lockout layers apply. The per-IP signin tracker throttles one client
// spraying many accounts; the persisted account lockout freezes one account
// hammered from many clients. The IP attempt is counted before the store
// lookup, so concurrent requests cannot all pass a tracker that has one slot
// left. A locked or unverified account gives the slot back and a successful
// sign-in clears the IP. An unknown email and a wrong password produce the
// same error, and an unverified account is only reported once the password
// has been checked.
func (s *Service) Signin(ctx context.Context, email, password string, meta RequestMeta) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.NewValidationError("email and password are required")
	}

	if err := s.verifyHuman(ctx, meta, s.cfg.CaptchaMinScore, false); err != nil {
		return nil, err
	}
	if err := s.attempt(ctx, s.trackers.Signin, meta.IP); err != nil {
		s.record(ctx, domain.AuditSignin, nil, false, meta, reason("rate_limited"))
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.record(ctx, domain.AuditSignin, nil, false, meta, reason("unknown_email"))
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.IsLocked(now) {
		s.release(ctx, s.trackers.Signin, meta.IP)
		s.record(ctx, domain.AuditSignin, uuidPtr(user.ID), false, meta, reason("account_locked"))
		return nil, &domain.LockedError{Remaining: user.LockRemaining(now)}
	}

	if !user.HasPassword() {
		s.record(ctx, domain.AuditSignin, uuidPtr(user.ID), false, meta, reason("no_local_password"))
		return nil, domain.ErrInvalidCredentials
	}

	if !VerifyPassword(password, *user.PasswordHash) {
		state, err := s.users.RecordFailedLogin(ctx, user.ID, s.cfg.MaxLoginAttempts, now.Add(s.cfg.LockoutDuration), now)
		if err != nil {
			return nil, err
		}
		s.record(ctx, domain.AuditSignin, uuidPtr(user.ID), false, meta, reason("wrong_password"))
		if state.Locked(now) {
			s.logger.Warn("account locked", "user_id", user.ID, "attempts", state.FailedAttempts)
			s.record(ctx, domain.AuditAccountLocked, uuidPtr(user.ID), true, meta, nil)
		}
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsVerified {
		s.release(ctx, s.trackers.Signin, meta.IP)
		if user.FailedLoginAttempts > 0 || user.LockedUntil != nil {
			if err := s.users.ResetFailedLogins(ctx, user.ID); err != nil {
				return nil, err
			}
		}
		s.record(ctx, domain.AuditSignin, uuidPtr(user.ID), false, meta, reason("email_not_verified"))
		return nil, domain.ErrEmailNotVerified
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user.ID, meta.IP, now); err != nil {
		return nil, err
	}
	if err := s.trackers.Signin.Clear(ctx, meta.IP); err != nil {
		s.logger.Error("failed to clear signin attempts", "ip", meta.IP, "error", err)
	}

	tokens, err := s.tokens.IssuePair(user.ID, user.IsAdmin)
	if err != nil {
		return nil, err
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil
	user.LastLoginAt = &now
	if meta.IP != "" {
		ip := meta.IP
		user.LastLoginIP = &ip
	}

	s.record(ctx, domain.AuditSignin, uuidPtr(user.ID), true, meta, nil)
	return &Session{User: user, Tokens: tokens}, nil
}
