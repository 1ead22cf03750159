package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

// UserStore persists credential records.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// RecordFailedLogin increments the failure counter and sets locked_until
	// when the counter reaches maxAttempts, as one atomic operation.
	RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil, now time.Time) (domain.LockState, error)
	ResetFailedLogins(ctx context.Context, id uuid.UUID) error
	RecordSuccessfulLogin(ctx context.Context, id uuid.UUID, ip string, at time.Time) error
	LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error

	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	// ResetPasswordWithToken consumes a reset token that is still valid at now.
	ResetPasswordWithToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uuid.UUID, error)
	SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	VerifyEmailWithToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// OTPStore holds at most one password-change OTP per user.
type OTPStore interface {
	// Replace stores otp, superseding any earlier one for the same user.
	Replace(ctx context.Context, otp *domain.PasswordOTP) error
	// Get returns domain.ErrOTPNotFound when no unexpired OTP exists.
	Get(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.PasswordOTP, error)
	IncrementAttempts(ctx context.Context, userID uuid.UUID) (int, error)
	// Consume deletes the user's OTP if it still has codeHash and is
	// unexpired at now, and returns domain.ErrOTPNotFound otherwise.
	Consume(ctx context.Context, userID uuid.UUID, codeHash string, now time.Time) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Decision is the outcome of an attempt tracker lookup.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// AttemptTracker counts attempts per key inside a time window.
//
// Attempt refuses the key once it is at its limit and otherwise counts the
// attempt, as one atomic step. Release takes back one counted attempt whose
// outcome should not count against the key. Clear forgets the key.
type AttemptTracker interface {
	Attempt(ctx context.Context, key string) (Decision, error)
	Release(ctx context.Context, key string) error
	Clear(ctx context.Context, key string) error
}

// BotVerifier scores a client challenge token. It returns
// domain.ErrBotCheckFailed when the provider rejects the token outright.
type BotVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (float64, error)
}

// Mailer delivers a raw token or code to the user.
type Mailer interface {
	Send(ctx context.Context, user *domain.User, token string, kind domain.NotificationKind) error
}

// Auditor records authentication events without blocking the caller.
type Auditor interface {
	Record(ctx context.Context, event domain.AuditEvent)
}
