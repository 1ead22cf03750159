package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"github.com/tendant/blog-auth/pkg/domain"
)

// otpSecretLen is the size in bytes of the throwaway HOTP secret behind each code.
const otpSecretLen = 20

// GenerateOTP returns a fresh six digit code. Each code is derived from its own
// random secret and counter, so codes are unrelated to each other.
func GenerateOTP() (string, error) {
	secret, err := randomSecret(otpSecretLen)
	if err != nil {
		return "", err
	}
	counter, err := randomUint64()
	if err != nil {
		return "", err
	}
	return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// hashOTP binds a code to its user before hashing, so equal codes issued to
// different users produce different digests.
func hashOTP(userID uuid.UUID, code string) string {
	return HashToken(userID.String() + ":" + code)
}

// UpdatePasswordInput is the client-supplied part of a password change.
type UpdatePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	OTP             string
}

// RequestPasswordOTP emails a one-time code that authorizes a password
// change. Any earlier code for the user stops working.
func (s *Service) RequestPasswordOTP(ctx context.Context, userID uuid.UUID, currentPassword string, meta RequestMeta) error {
	if currentPassword == "" {
		return domain.NewValidationError("current password is required")
	}

	user, err := s.currentPasswordHolder(ctx, userID, currentPassword)
	if err != nil {
		s.record(ctx, domain.AuditPasswordOTP, uuidPtr(userID), false, meta, reason("wrong_password"))
		return err
	}

	code, err := GenerateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	now := s.now()
	if err := s.otps.Replace(ctx, &domain.PasswordOTP{
		UserID:    user.ID,
		CodeHash:  hashOTP(user.ID, code),
		ExpiresAt: now.Add(s.cfg.OTPTTL),
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, user, code, domain.NotificationPasswordOTP); err != nil {
		if derr := s.otps.Delete(ctx, user.ID); derr != nil {
			s.logger.Error("failed to discard undelivered otp", "user_id", user.ID, "error", derr)
		}
		s.record(ctx, domain.AuditPasswordOTP, uuidPtr(user.ID), false, meta, reason("email_failed"))
		return &domain.UpstreamError{Service: "email", Err: err}
	}

	s.record(ctx, domain.AuditPasswordOTP, uuidPtr(user.ID), true, meta, nil)
	return nil
}

// UpdatePassword changes the password of a signed-in user. The current
// password is checked again, then the OTP, then the new password. A matching
// OTP is consumed once the new password is accepted, and only one caller can
// consume it. After too many wrong codes it is discarded and a new one must
// be requested.
func (s *Service) UpdatePassword(ctx context.Context, userID uuid.UUID, in UpdatePasswordInput, meta RequestMeta) error {
	if in.CurrentPassword == "" || in.NewPassword == "" || in.OTP == "" {
		return domain.NewValidationError("currentPassword, newPassword and otp are required")
	}

	user, err := s.currentPasswordHolder(ctx, userID, in.CurrentPassword)
	if err != nil {
		s.record(ctx, domain.AuditPasswordUpdate, uuidPtr(userID), false, meta, reason("wrong_password"))
		return err
	}

	codeHash, err := s.checkOTP(ctx, user.ID, in.OTP)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOTP) {
			s.record(ctx, domain.AuditPasswordUpdate, uuidPtr(user.ID), false, meta, reason("invalid_otp"))
		}
		return err
	}

	if err := s.policy.ValidatePassword(in.NewPassword, user.FirstName, user.LastName, emailLocalPart(user.Email)); err != nil {
		return err
	}
	if in.NewPassword == in.CurrentPassword {
		return domain.NewValidationError("new password must be different from the current password")
	}

	passwordHash, err := HashPassword(in.NewPassword, s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.otps.Consume(ctx, user.ID, codeHash, s.now()); err != nil {
		if errors.Is(err, domain.ErrOTPNotFound) {
			s.record(ctx, domain.AuditPasswordUpdate, uuidPtr(user.ID), false, meta, reason("invalid_otp"))
			return domain.ErrInvalidOTP
		}
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return err
	}

	s.record(ctx, domain.AuditPasswordUpdate, uuidPtr(user.ID), true, meta, nil)
	return nil
}

// currentPasswordHolder loads the user and checks their current password.
func (s *Service) currentPasswordHolder(ctx context.Context, userID uuid.UUID, password string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasPassword() {
		return nil, domain.NewValidationError("accounts that sign in with Google have no password to change")
	}
	if !VerifyPassword(password, *user.PasswordHash) {
		return nil, domain.ErrWrongPassword
	}
	return user, nil
}

// checkOTP matches code against the user's stored OTP and returns its hash.
// Wrong codes are counted and the OTP is discarded at the limit.
func (s *Service) checkOTP(ctx context.Context, userID uuid.UUID, code string) (string, error) {
	stored, err := s.otps.Get(ctx, userID, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrOTPNotFound) {
			return "", domain.ErrInvalidOTP
		}
		return "", err
	}

	codeHash := hashOTP(userID, code)
	if constantTimeEqual(stored.CodeHash, codeHash) {
		return codeHash, nil
	}

	attempts, err := s.otps.IncrementAttempts(ctx, userID)
	if err != nil {
		// Expired or replaced since the lookup.
		if errors.Is(err, domain.ErrOTPNotFound) {
			return "", domain.ErrInvalidOTP
		}
		return "", err
	}
	if attempts >= s.cfg.MaxOTPAttempts {
		if err := s.otps.Delete(ctx, userID); err != nil {
			return "", err
		}
	}
	return "", domain.ErrInvalidOTP
}
