package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/domain"
)

// Config holds the tunables of the authentication flows.
type Config struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
	BcryptCost       int

	VerificationTTL time.Duration
	ResetTokenTTL   time.Duration
	OTPTTL          time.Duration
	MaxOTPAttempts  int

	// Signin, signup and recovery reject scores below CaptchaMinScore.
	// Google login rejects scores at or below OAuthCaptchaMinScore.
	CaptchaMinScore      float64
	OAuthCaptchaMinScore float64

	StrictEmailValidation bool
	BlockDisposableEmail  bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxLoginAttempts:     5,
		LockoutDuration:      15 * time.Minute,
		BcryptCost:           DefaultBcryptCost,
		VerificationTTL:      24 * time.Hour,
		ResetTokenTTL:        15 * time.Minute,
		OTPTTL:               15 * time.Minute,
		MaxOTPAttempts:       5,
		CaptchaMinScore:      0.5,
		OAuthCaptchaMinScore: 0.7,
	}
}

// Trackers groups the independent per-IP attempt trackers.
type Trackers struct {
	Signin        AttemptTracker
	Signup        AttemptTracker
	PasswordReset AttemptTracker
	OAuth         AttemptTracker
}

// Deps are the collaborators of Service. BotGate may be nil, which disables
// bot verification; every other field is required.
type Deps struct {
	Users    UserStore
	OTPs     OTPStore
	Tokens   *TokenService
	Trackers Trackers
	BotGate  BotVerifier
	Mailer   Mailer
	Audit    Auditor
	Policy   *PasswordPolicy
	Logger   *slog.Logger
	Clock    func() time.Time
}

// RequestMeta carries per-request client information.
type RequestMeta struct {
	IP             string
	UserAgent      string
	RecaptchaToken string
}

// Service runs the authentication flows.
type Service struct {
	cfg      Config
	users    UserStore
	otps     OTPStore
	tokens   *TokenService
	trackers Trackers
	botGate  BotVerifier
	mailer   Mailer
	audit    Auditor
	policy   *PasswordPolicy
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new authentication service.
func NewService(cfg Config, deps Deps) *Service {
	def := DefaultConfig()
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = def.MaxLoginAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = def.BcryptCost
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = def.VerificationTTL
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = def.ResetTokenTTL
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = def.OTPTTL
	}
	if cfg.MaxOTPAttempts <= 0 {
		cfg.MaxOTPAttempts = def.MaxOTPAttempts
	}

	policy := deps.Policy
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		cfg:      cfg,
		users:    deps.Users,
		otps:     deps.OTPs,
		tokens:   deps.Tokens,
		trackers: deps.Trackers,
		botGate:  deps.BotGate,
		mailer:   deps.Mailer,
		audit:    deps.Audit,
		policy:   policy,
		logger:   logger,
		now:      clock,
	}
}

// Tokens returns the token service used to issue sessions.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// verifyHuman runs the bot gate. Scores below min are rejected; with
// inclusive set, a score equal to min is rejected too.
func (s *Service) verifyHuman(ctx context.Context, meta RequestMeta, min float64, inclusive bool) error {
	if s.botGate == nil {
		return nil
	}
	if meta.RecaptchaToken == "" {
		return domain.ErrBotCheckFailed
	}

	score, err := s.botGate.Verify(ctx, meta.RecaptchaToken, meta.IP)
	if err != nil {
		if errors.Is(err, domain.ErrBotCheckFailed) {
			return err
		}
		return &domain.UpstreamError{Service: "recaptcha", Err: err}
	}
	if score < min || (inclusive && score == min) {
		s.logger.Info("bot check rejected", "ip", meta.IP, "score", score)
		return domain.ErrBotCheckFailed
	}
	return nil
}

// attempt counts one attempt against key and returns a
// *domain.RateLimitedError when key is already at its limit.
func (s *Service) attempt(ctx context.Context, tracker AttemptTracker, key string) error {
	decision, err := tracker.Attempt(ctx, key)
	if err != nil {
		return fmt.Errorf("attempt tracker: %w", err)
	}
	if !decision.Allowed {
		return &domain.RateLimitedError{RetryAfter: decision.RetryAfter}
	}
	return nil
}

// release takes back an attempt whose outcome does not count against key.
func (s *Service) release(ctx context.Context, tracker AttemptTracker, key string) {
	if err := tracker.Release(ctx, key); err != nil {
		s.logger.Error("failed to release attempt", "key", key, "error", err)
	}
}

func (s *Service) record(ctx context.Context, typ domain.AuditEventType, userID *uuid.UUID, success bool, meta RequestMeta, details map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, domain.AuditEvent{
		ID:        uuid.New(),
		Type:      typ,
		UserID:    userID,
		Success:   success,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Details:   details,
		CreatedAt: s.now(),
	})
}

// newOpaqueToken returns a raw token for the user and its stored digest.
func newOpaqueToken() (raw, hash string, err error) {
	raw, err = GenerateToken(32)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	return raw, HashToken(raw), nil
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}

func reason(r string) map[string]string {
	return map[string]string{"reason": r}
}
