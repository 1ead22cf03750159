// Package authtest provides in-memory implementations of the auth stores and
// collaborators for tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

// UserStore is an in-memory auth.UserStore. Every method holds one lock, so
// the failed-login update is atomic the same way the SQL statement is.
type UserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User
}

// NewUserStore creates an empty store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uuid.UUID]*domain.User)}
}

// Put inserts or replaces a user without any checks.
func (s *UserStore) Put(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = clone(u)
}

// Snapshot returns a copy of the stored user, or nil.
func (s *UserStore) Snapshot(id uuid.UUID) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return clone(u)
	}
	return nil
}

// Len returns the number of stored users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrUserAlreadyExists
		}
		if existing.Username == u.Username {
			return domain.ErrUsernameAlreadyExists
		}
	}
	s.users[u.ID] = clone(u)
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return clone(u), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.byEmail(email); u != nil {
		return clone(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byEmail(email) != nil, nil
}

func (s *UserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (s *UserStore) RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockUntil, now time.Time) (domain.LockState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.LockState{}, domain.ErrUserNotFound
	}
	if u.LockedUntil != nil && !now.Before(*u.LockedUntil) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= maxAttempts {
		until := lockUntil
		u.LockedUntil = &until
	}
	return domain.LockState{FailedAttempts: u.FailedLoginAttempts, LockedUntil: copyTime(u.LockedUntil)}, nil
}

func (s *UserStore) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	return s.update(id, func(u *domain.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (s *UserStore) RecordSuccessfulLogin(ctx context.Context, id uuid.UUID, ip string, at time.Time) error {
	return s.update(id, func(u *domain.User) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		u.LastLoginIP = &ip
		u.LastLoginAt = &at
	})
}

func (s *UserStore) LinkGoogleID(ctx context.Context, id uuid.UUID, googleID string) error {
	return s.update(id, func(u *domain.User) {
		u.GoogleID = &googleID
	})
}

func (s *UserStore) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return s.update(id, func(u *domain.User) {
		u.ResetTokenHash = &tokenHash
		u.ResetTokenExpiresAt = &expiresAt
	})
}

func (s *UserStore) ResetPasswordWithToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ResetTokenHash == nil || *u.ResetTokenHash != tokenHash {
			continue
		}
		if u.ResetTokenExpiresAt == nil || !now.Before(*u.ResetTokenExpiresAt) {
			continue
		}
		u.PasswordHash = &passwordHash
		u.ResetTokenHash = nil
		u.ResetTokenExpiresAt = nil
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
		return u.ID, nil
	}
	return uuid.Nil, domain.ErrInvalidResetToken
}

func (s *UserStore) SetVerificationToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return s.update(id, func(u *domain.User) {
		u.VerificationTokenHash = &tokenHash
		u.VerificationTokenExpiresAt = &expiresAt
	})
}

func (s *UserStore) VerifyEmailWithToken(ctx context.Context, tokenHash string, now time.Time) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.VerificationTokenHash == nil || *u.VerificationTokenHash != tokenHash {
			continue
		}
		if u.VerificationTokenExpiresAt == nil || !now.Before(*u.VerificationTokenExpiresAt) {
			continue
		}
		u.IsVerified = true
		u.VerifiedAt = &now
		u.VerificationTokenHash = nil
		u.VerificationTokenExpiresAt = nil
		return u.ID, nil
	}
	return uuid.Nil, domain.ErrInvalidVerificationToken
}

func (s *UserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return s.update(id, func(u *domain.User) {
		u.PasswordHash = &passwordHash
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	})
}

func (s *UserStore) update(id uuid.UUID, fn func(u *domain.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (s *UserStore) byEmail(email string) *domain.User {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

func clone(u *domain.User) *domain.User {
	c := *u
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
