package authtest

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/internal/ratelimit"
	"github.com/tendant/blog-auth/pkg/auth"
	"github.com/tendant/blog-auth/pkg/domain"
	"golang.org/x/crypto/bcrypt"
)

// Env is an auth.Service wired to in-memory collaborators and process-local
// attempt trackers that share one fake clock.
type Env struct {
	Users    *UserStore
	OTPs     *OTPStore
	Mailer   *Mailer
	Verifier *Verifier
	Auditor  *Auditor
	Clock    *Clock
	Tokens   *auth.TokenService
	Trackers auth.Trackers
	Service  *auth.Service
}

// Option adjusts the service configuration or dependencies before the
// service is built.
type Option func(env *Env, cfg *auth.Config, deps *auth.Deps)

// WithBotGate enables bot verification through env.Verifier.
func WithBotGate() Option {
	return func(env *Env, cfg *auth.Config, deps *auth.Deps) {
		deps.BotGate = env.Verifier
	}
}

// NewEnv builds a service with the minimum bcrypt cost so tests stay fast.
func NewEnv(t testing.TB, opts ...Option) *Env {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := NewClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	env := &Env{
		Users:    NewUserStore(),
		OTPs:     NewOTPStore(),
		Mailer:   &Mailer{},
		Verifier: &Verifier{Score: 0.9},
		Auditor:  &Auditor{},
		Clock:    clock,
	}
	env.Tokens = auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
		Issuer:        "blog-auth-test",
		Clock:         clock.Now,
	})
	env.Trackers = auth.Trackers{
		Signin:        ratelimit.NewMemoryTracker("signin", ratelimit.SigninPolicy, logger).WithClock(clock.Now),
		Signup:        ratelimit.NewMemoryTracker("signup", ratelimit.SignupPolicy, logger).WithClock(clock.Now),
		PasswordReset: ratelimit.NewMemoryTracker("password_reset", ratelimit.PasswordResetPolicy, logger).WithClock(clock.Now),
		OAuth:         ratelimit.NewMemoryTracker("oauth", ratelimit.OAuthPolicy, logger).WithClock(clock.Now),
	}

	cfg := auth.DefaultConfig()
	cfg.BcryptCost = bcrypt.MinCost
	deps := auth.Deps{
		Users:    env.Users,
		OTPs:     env.OTPs,
		Tokens:   env.Tokens,
		Trackers: env.Trackers,
		Mailer:   env.Mailer,
		Audit:    env.Auditor,
		Logger:   logger,
		Clock:    clock.Now,
	}
	for _, opt := range opts {
		opt(env, &cfg, &deps)
	}

	env.Service = auth.NewService(cfg, deps)
	return env
}

// CreateUser stores a local account with the given password.
func (e *Env) CreateUser(t testing.TB, email, password string, verified bool) *domain.User {
	t.Helper()

	hash, err := auth.HashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	now := e.Clock.Now()
	id := uuid.New()
	u := &domain.User{
		ID:           id,
		Username:     "user" + id.String()[:8],
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		AuthProvider: domain.ProviderLocal,
		PasswordHash: &hash,
		IsVerified:   verified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if verified {
		u.VerifiedAt = &now
	}
	e.Users.Put(u)
	return u
}

// CreateGoogleUser stores an account that signs in with Google.
func (e *Env) CreateGoogleUser(t testing.TB, email, googleID string) *domain.User {
	t.Helper()

	now := e.Clock.Now()
	id := uuid.New()
	u := &domain.User{
		ID:           id,
		Username:     "guser" + id.String()[:8],
		Email:        email,
		FirstName:    "Google",
		LastName:     "User",
		AuthProvider: domain.ProviderGoogle,
		GoogleID:     &googleID,
		IsVerified:   true,
		VerifiedAt:   &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.Users.Put(u)
	return u
}
