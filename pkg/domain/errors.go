package domain

import (
	"errors"
	"fmt"
	"time"
)

// Authentication errors
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrUsernameAlreadyExists = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrWrongPassword         = errors.New("current password is incorrect")
	ErrProviderMismatch      = errors.New("account registered via a different sign-in method")
	ErrBotCheckFailed        = errors.New("bot verification failed")
)

// Token errors
var (
	ErrTokenExpired             = errors.New("token expired")
	ErrTokenInvalid             = errors.New("invalid token")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrAlreadyVerified          = errors.New("email already verified")
	ErrVerificationPending      = errors.New("a verification email was already sent")
	ErrOTPNotFound              = errors.New("otp not found")
	ErrInvalidOTP               = errors.New("invalid or expired OTP")
)

// ValidationError reports malformed client input.
type ValidationError struct {
	Message  string
	Feedback *PasswordFeedback
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError without feedback.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// PasswordFeedback explains why a password was judged too weak.
type PasswordFeedback struct {
	Score       int      `json:"score"`
	Warning     string   `json:"warning,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// LockedError is returned while an account is locked out.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minutes", e.RemainingMinutes())
}

// RemainingMinutes returns the lock remainder rounded up to whole minutes.
func (e *LockedError) RemainingMinutes() int {
	return CeilMinutes(e.Remaining)
}

// RateLimitedError is returned when an attempt tracker rejects a key.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, try again in %d minutes", CeilMinutes(e.RetryAfter))
}

// RetryAfterSeconds returns the retry hint rounded up to whole seconds.
func (e *RateLimitedError) RetryAfterSeconds() int {
	return CeilSeconds(e.RetryAfter)
}

// UpstreamError wraps a failure of an external collaborator.
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
