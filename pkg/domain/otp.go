package domain

import (
	"time"

	"github.com/google/uuid"
)

// PasswordOTP is the one-per-user code that gates an in-session password change.
type PasswordOTP struct {
	UserID    uuid.UUID
	CodeHash  string
	Attempts  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsValid reports whether the OTP has not yet expired.
func (o *PasswordOTP) IsValid(now time.Time) bool {
	return now.Before(o.ExpiresAt)
}

// NotificationKind selects the message a Mailer sends.
type NotificationKind string

const (
	NotificationVerifyEmail   NotificationKind = "verify_email"
	NotificationPasswordReset NotificationKind = "password_reset"
	NotificationPasswordOTP   NotificationKind = "password_otp"
)
