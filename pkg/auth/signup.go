package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

const (
	maxNameLength      = 50
	maxUsernameTries   = 20
	googleSuffixDigits = 4
)

// SignupInput is the client-supplied part of a local signup.
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Signup registers a local account. The account starts unverified and a
// verification email is dispatched; a failed dispatch is logged but does not
// fail the signup, since the user can ask for a new email.
func (s *Service) Signup(ctx context.Context, in SignupInput, meta RequestMeta) (*domain.User, error) {
	firstName := SanitizeName(in.FirstName)
	lastName := SanitizeName(in.LastName)
	if err := ValidateStringLength("first name", firstName, 1, maxNameLength); err != nil {
		return nil, err
	}
	if err := ValidateStringLength("last name", lastName, 1, maxNameLength); err != nil {
		return nil, err
	}
	if err := ValidateEmail(in.Email, s.cfg.StrictEmailValidation, s.cfg.BlockDisposableEmail); err != nil {
		return nil, err
	}
	email := NormalizeEmail(in.Email)
	if err := s.policy.ValidatePassword(in.Password, firstName, lastName, emailLocalPart(email)); err != nil {
		return nil, err
	}

	if err := s.verifyHuman(ctx, meta, s.cfg.CaptchaMinScore, false); err != nil {
		return nil, err
	}

	// Every signup attempt counts against the IP, successful or not.
	if err := s.attempt(ctx, s.trackers.Signup, meta.IP); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		s.record(ctx, domain.AuditSignup, nil, false, meta, reason("email_taken"))
		return nil, domain.ErrUserAlreadyExists
	}

	passwordHash, err := HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	rawToken, tokenHash, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.VerificationTTL)
	user := &domain.User{
		ID:                         uuid.New(),
		Email:                      email,
		FirstName:                  firstName,
		LastName:                   lastName,
		AuthProvider:               domain.ProviderLocal,
		PasswordHash:               &passwordHash,
		VerificationTokenHash:      &tokenHash,
		VerificationTokenExpiresAt: &expiresAt,
		RegistrationIP:             meta.IP,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}

	if err := s.createWithUsername(ctx, user, sequentialUsernames(UsernameBase(in.FirstName, in.LastName))); err != nil {
		return nil, err
	}

	if err := s.mailer.Send(ctx, user, rawToken, domain.NotificationVerifyEmail); err != nil {
		s.logger.Error("failed to send verification email", "user_id", user.ID, "error", err)
	}

	s.record(ctx, domain.AuditSignup, uuidPtr(user.ID), true, meta, map[string]string{"username": user.Username})
	return user, nil
}

// createWithUsername inserts user under the first free candidate username.
// Candidates already taken are skipped silently; a collision that appears
// between the lookup and the insert moves on to the next candidate.
func (s *Service) createWithUsername(ctx context.Context, user *domain.User, next func() (string, error)) error {
	for i := 0; i < maxUsernameTries; i++ {
		candidate, err := next()
		if err != nil {
			return err
		}

		taken, err := s.users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return err
		}
		if taken {
			continue
		}

		user.Username = candidate
		err = s.users.Create(ctx, user)
		if errors.Is(err, domain.ErrUsernameAlreadyExists) {
			continue
		}
		return err
	}
	return fmt.Errorf("no free username after %d attempts", maxUsernameTries)
}

// sequentialUsernames yields base, base1, base2, ...
func sequentialUsernames(base string) func() (string, error) {
	n := 0
	return func() (string, error) {
		defer func() { n++ }()
		if n == 0 {
			return base, nil
		}
		return base + strconv.Itoa(n), nil
	}
}

// randomUsernames yields base followed by a random numeric suffix.
func randomUsernames(base string) func() (string, error) {
	return func() (string, error) {
		suffix, err := randomDigits(googleSuffixDigits)
		if err != nil {
			return "", err
		}
		return base + suffix, nil
	}
}
