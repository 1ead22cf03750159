package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

// GoogleInput is the profile asserted by the client after Google sign-in.
type GoogleInput struct {
	Email    string
	Name     string
	PhotoURL string
	GoogleID string
}

// GoogleLogin signs in, links or creates an account for a Google profile.
// Accounts registered with a local password are refused, and the refusal
// counts against the client's OAuth tracker. Every other outcome gives its
// attempt back, and successful logins never clear the tracker.
func (s *Service) GoogleLogin(ctx context.Context, in GoogleInput, meta RequestMeta) (*Session, error) {
	if err := ValidateEmail(in.Email, false, false); err != nil {
		return nil, err
	}
	email := NormalizeEmail(in.Email)
	googleID := strings.TrimSpace(in.GoogleID)
	if googleID == "" {
		return nil, domain.NewValidationError("googleId is required")
	}
	name := SanitizeName(in.Name)

	if err := s.verifyHuman(ctx, meta, s.cfg.OAuthCaptchaMinScore, true); err != nil {
		return nil, err
	}
	if err := s.attempt(ctx, s.trackers.OAuth, meta.IP); err != nil {
		s.record(ctx, domain.AuditGoogleSignin, nil, false, meta, reason("rate_limited"))
		return nil, err
	}

	now := s.now()
	user, err := s.users.GetByEmail(ctx, email)
	if err == nil && !user.IsExternal() {
		s.record(ctx, domain.AuditGoogleSignin, uuidPtr(user.ID), false, meta, reason("provider_mismatch"))
		return nil, domain.ErrProviderMismatch
	}
	s.release(ctx, s.trackers.OAuth, meta.IP)

	switch {
	case err == nil:
		if user.GoogleID == nil || *user.GoogleID == "" {
			if err := s.users.LinkGoogleID(ctx, user.ID, googleID); err != nil {
				return nil, err
			}
			user.GoogleID = &googleID
		}
		if err := s.users.RecordSuccessfulLogin(ctx, user.ID, meta.IP, now); err != nil {
			return nil, err
		}

	case errors.Is(err, domain.ErrUserNotFound):
		first, last := splitName(name)
		user = &domain.User{
			ID:             uuid.New(),
			Email:          email,
			FirstName:      first,
			LastName:       last,
			ProfilePicture: strings.TrimSpace(in.PhotoURL),
			AuthProvider:   domain.ProviderGoogle,
			GoogleID:       &googleID,
			IsVerified:     true,
			VerifiedAt:     &now,
			RegistrationIP: meta.IP,
			LastLoginAt:    &now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if meta.IP != "" {
			ip := meta.IP
			user.LastLoginIP = &ip
		}
		if err := s.createWithUsername(ctx, user, randomUsernames(UsernameBase(in.Name))); err != nil {
			return nil, err
		}
		s.record(ctx, domain.AuditSignup, uuidPtr(user.ID), true, meta, map[string]string{"provider": string(domain.ProviderGoogle)})

	default:
		return nil, err
	}

	tokens, err := s.tokens.IssuePair(user.ID, user.IsAdmin)
	if err != nil {
		return nil, err
	}

	s.record(ctx, domain.AuditGoogleSignin, uuidPtr(user.ID), true, meta, nil)
	return &Session{User: user, Tokens: tokens}, nil
}

// splitName splits a display name into first name and the remainder.
func splitName(name string) (string, string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
