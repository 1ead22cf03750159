package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AuthProvider identifies how an account authenticates.
type AuthProvider string

// Provider constants
const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
)

// User is the persisted credential record.
type User struct {
	ID             uuid.UUID
	Username       string
	Email          string
	FirstName      string
	LastName       string
	ProfilePicture string

	AuthProvider AuthProvider
	GoogleID     *string
	PasswordHash *string

	IsVerified                 bool
	VerifiedAt                 *time.Time
	VerificationTokenHash      *string
	VerificationTokenExpiresAt *time.Time

	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time

	FailedLoginAttempts int
	LockedUntil         *time.Time

	IsAdmin bool

	RegistrationIP string
	LastLoginIP    *string
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPassword reports whether the account can authenticate with a local password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsExternal reports whether the account was created through an external provider
// or has no local password to check.
func (u *User) IsExternal() bool {
	return u.AuthProvider != ProviderLocal || !u.HasPassword()
}

// IsLocked returns true if the account is locked at the given time.
func (u *User) IsLocked(now time.Time) bool {
	if u.LockedUntil == nil {
		return false
	}
	return now.Before(*u.LockedUntil)
}

// LockRemaining returns how long the lock still holds at the given time.
func (u *User) LockRemaining(now time.Time) time.Duration {
	if !u.IsLocked(now) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}

// HasPendingVerification reports whether an unexpired verification token exists.
func (u *User) HasPendingVerification(now time.Time) bool {
	return u.VerificationTokenHash != nil &&
		u.VerificationTokenExpiresAt != nil &&
		now.Before(*u.VerificationTokenExpiresAt)
}

// LockState is the outcome of recording a failed password check.
type LockState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// Locked reports whether the state carries a lock that is active at now.
func (s LockState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// CeilMinutes rounds a duration up to whole minutes, with a floor of one.
func CeilMinutes(d time.Duration) int {
	m := int(math.Ceil(d.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

// CeilSeconds rounds a duration up to whole seconds, with a floor of one.
func CeilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
