package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUser_IsLocked(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	past := now.Add(-1 * time.Hour)
	future := now.Add(10 * time.Minute)

	tests := []struct {
		name          string
		lockedUntil   *time.Time
		wantLocked    bool
		wantRemaining time.Duration
	}{
		{
			name:        "never locked",
			lockedUntil: nil,
			wantLocked:  false,
		},
		{
			name:        "lock elapsed",
			lockedUntil: &past,
			wantLocked:  false,
		},
		{
			name:        "lock ends exactly now",
			lockedUntil: &now,
			wantLocked:  false,
		},
		{
			name:          "locked",
			lockedUntil:   &future,
			wantLocked:    true,
			wantRemaining: 10 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := &User{ID: uuid.New(), LockedUntil: tt.lockedUntil}

			if got := user.IsLocked(now); got != tt.wantLocked {
				t.Errorf("IsLocked() = %v, want %v", got, tt.wantLocked)
			}
			if got := user.LockRemaining(now); got != tt.wantRemaining {
				t.Errorf("LockRemaining() = %v, want %v", got, tt.wantRemaining)
			}
		})
	}
}

func TestUser_Provider(t *testing.T) {
	hash := "$2a$12$hash"
	empty := ""
	googleID := "g-1"

	tests := []struct {
		name         string
		user         User
		wantPassword bool
		wantExternal bool
	}{
		{
			name:         "local with password",
			user:         User{AuthProvider: ProviderLocal, PasswordHash: &hash},
			wantPassword: true,
			wantExternal: false,
		},
		{
			name:         "local with empty hash",
			user:         User{AuthProvider: ProviderLocal, PasswordHash: &empty},
			wantPassword: false,
			wantExternal: true,
		},
		{
			name:         "google",
			user:         User{AuthProvider: ProviderGoogle, GoogleID: &googleID},
			wantPassword: false,
			wantExternal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasPassword(); got != tt.wantPassword {
				t.Errorf("HasPassword() = %v, want %v", got, tt.wantPassword)
			}
			if got := tt.user.IsExternal(); got != tt.wantExternal {
				t.Errorf("IsExternal() = %v, want %v", got, tt.wantExternal)
			}
		})
	}
}

func TestUser_HasPendingVerification(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	hash := "digest"

	tests := []struct {
		name      string
		hash      *string
		expiresAt *time.Time
		want      bool
	}{
		{"no token", nil, nil, false},
		{"valid token", &hash, &later, true},
		{"expires now", &hash, &now, false},
		{"hash without expiry", &hash, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{VerificationTokenHash: tt.hash, VerificationTokenExpiresAt: tt.expiresAt}
			if got := u.HasPendingVerification(now); got != tt.want {
				t.Errorf("HasPendingVerification() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLockState_Locked(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	until := now.Add(15 * time.Minute)

	if (LockState{FailedAttempts: 4}).Locked(now) {
		t.Error("state without lock reported locked")
	}
	if !(LockState{FailedAttempts: 5, LockedUntil: &until}).Locked(now) {
		t.Error("active lock not reported")
	}
	if (LockState{FailedAttempts: 5, LockedUntil: &until}).Locked(until) {
		t.Error("lock still reported at its end")
	}
}

func TestCeilDurations(t *testing.T) {
	tests := []struct {
		d           time.Duration
		wantMinutes int
		wantSeconds int
	}{
		{0, 1, 1},
		{500 * time.Millisecond, 1, 1},
		{59 * time.Second, 1, 59},
		{61 * time.Second, 2, 61},
		{15 * time.Minute, 15, 900},
		{14*time.Minute + time.Second, 15, 841},
	}

	for _, tt := range tests {
		if got := CeilMinutes(tt.d); got != tt.wantMinutes {
			t.Errorf("CeilMinutes(%v) = %d, want %d", tt.d, got, tt.wantMinutes)
		}
		if got := CeilSeconds(tt.d); got != tt.wantSeconds {
			t.Errorf("CeilSeconds(%v) = %d, want %d", tt.d, got, tt.wantSeconds)
		}
	}
}
