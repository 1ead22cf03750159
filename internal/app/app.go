// Package app wires configuration, storage and the auth service into a
// running HTTP server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/blog-auth/internal/audit"
	"github.com/tendant/blog-auth/internal/captcha"
	"github.com/tendant/blog-auth/internal/config"
	httpserver "github.com/tendant/blog-auth/internal/http"
	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/internal/notification"
	"github.com/tendant/blog-auth/internal/ratelimit"
	"github.com/tendant/blog-auth/pkg/auth"
	"github.com/tendant/blog-auth/pkg/repository"
)

// App is a fully wired auth server.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	db    *sql.DB
	redis *redis.Client

	service    *auth.Service
	dispatcher *audit.Dispatcher
	handler    http.Handler

	sweepers []*ratelimit.MemoryTracker
	otps     *repository.OTPsRepository // nil when OTPs live in Redis
	closers  []io.Closer
}

// New connects to the backing stores and builds the service graph.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	db, err := repository.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	a.db = db
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.HasRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to redis")
	}

	sink, closers, err := newAuditSink(cfg.Audit, db, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closers...)
	a.dispatcher = audit.NewDispatcher(sink, audit.Config{
		BufferSize:   cfg.Audit.BufferSize,
		DropIfFull:   cfg.Audit.DropIfFull,
		WriteTimeout: audit.DefaultConfig().WriteTimeout,
	}, logger)

	var otps auth.OTPStore
	if a.redis != nil {
		otps = repository.NewRedisOTPStore(a.redis)
	} else {
		a.otps = repository.NewOTPsRepository(db)
		otps = a.otps
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:    []byte(cfg.AccessTokenSecret),
		RefreshSecret:   []byte(cfg.RefreshTokenSecret),
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Issuer:          cfg.JWTIssuer,
	})

	var botGate auth.BotVerifier
	if cfg.Captcha.Enabled {
		botGate = captcha.NewRecaptcha(cfg.Captcha.SecretKey)
		logger.Info("reCAPTCHA verification enabled")
	}

	mailer := notification.NewEmailService(notification.EmailConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		User:       cfg.SMTPUser,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		FromName:   cfg.SMTPFromName,
		AppBaseURL: cfg.AppBaseURL,
		Timeout:    10 * time.Second,
	}, logger)
	if !mailer.Enabled() {
		logger.Warn("SMTP_HOST not set, emails will only be logged")
	}

	a.service = auth.NewService(serviceConfig(cfg), auth.Deps{
		Users:    repository.NewUsersRepository(db),
		OTPs:     otps,
		Tokens:   tokens,
		Trackers: a.newTrackers(),
		BotGate:  botGate,
		Mailer:   mailer,
		Audit:    a.dispatcher,
		Policy:   auth.NewPasswordPolicy(cfg.PasswordPolicy),
		Logger:   logger,
	})

	a.handler = httpserver.NewRouter(httpserver.RouterConfig{
		Logger:      logger,
		AuthService: a.service,
		Cookies: httputil.CookieConfig{
			Domain:   cfg.CookieDomain,
			Secure:   cfg.IsProduction(),
			SameSite: http.SameSiteStrictMode,
		},
		RateLimitConfig:     cfg.RateLimit,
		SecurityHeaders:     cfg.SecurityHeaders,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		AllowedOrigins:      cfg.CORSAllowedOrigins,
		TrustedProxies:      cfg.TrustedProxyPrefixes(),
		HealthCheck:         db.PingContext,
	})

	return a, nil
}

func serviceConfig(cfg *config.Config) auth.Config {
	c := auth.DefaultConfig()
	c.MaxLoginAttempts = cfg.Lockout.MaxLoginAttempts
	c.LockoutDuration = cfg.Lockout.LockoutDuration
	c.MaxOTPAttempts = cfg.Lockout.MaxOTPAttempts
	c.CaptchaMinScore = cfg.Captcha.MinScore
	c.OAuthCaptchaMinScore = cfg.Captcha.OAuthMinScore
	c.StrictEmailValidation = cfg.Validation.StrictEmailValidation
	c.BlockDisposableEmail = cfg.Validation.BlockDisposableEmail
	return c
}

// newTrackers builds the four attempt trackers. Redis trackers are shared by
// every replica; memory trackers are swept by Run.
func (a *App) newTrackers() auth.Trackers {
	if a.redis != nil {
		return auth.Trackers{
			Signin:        ratelimit.NewRedisTracker(a.redis, "signin", ratelimit.SigninPolicy),
			Signup:        ratelimit.NewRedisTracker(a.redis, "signup", ratelimit.SignupPolicy),
			PasswordReset: ratelimit.NewRedisTracker(a.redis, "password_reset", ratelimit.PasswordResetPolicy),
			OAuth:         ratelimit.NewRedisTracker(a.redis, "oauth", ratelimit.OAuthPolicy),
		}
	}

	signin := ratelimit.NewMemoryTracker("signin", ratelimit.SigninPolicy, a.logger)
	signup := ratelimit.NewMemoryTracker("signup", ratelimit.SignupPolicy, a.logger)
	reset := ratelimit.NewMemoryTracker("password_reset", ratelimit.PasswordResetPolicy, a.logger)
	oauth := ratelimit.NewMemoryTracker("oauth", ratelimit.OAuthPolicy, a.logger)
	a.sweepers = []*ratelimit.MemoryTracker{signin, signup, reset, oauth}
	a.logger.Warn("REDIS_URL not set, attempt trackers are per process")

	return auth.Trackers{
		Signin:        signin,
		Signup:        signup,
		PasswordReset: reset,
		OAuth:         oauth,
	}
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Service returns the auth service.
func (a *App) Service() *auth.Service {
	return a.service
}

// Run serves HTTP and runs the background sweeps until ctx is cancelled or one
// of them fails. The audit worker outlives the server so events recorded by
// in-flight requests are still written.
func (a *App) Run(ctx context.Context) error {
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditGroup, auditCtx := errgroup.WithContext(auditCtx)
	auditGroup.Go(func() error {
		return a.dispatcher.Run(auditCtx)
	})

	server := &http.Server{
		Addr:         a.cfg.Addr(),
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	for _, t := range a.sweepers {
		t := t
		g.Go(func() error {
			return t.Run(gctx, a.cfg.SweepInterval)
		})
	}
	if a.otps != nil {
		g.Go(func() error {
			return a.sweepOTPs(gctx)
		})
	}

	err := g.Wait()
	stopAudit()
	if aerr := auditGroup.Wait(); aerr != nil {
		a.logger.Error("audit worker stopped", "error", aerr)
	}
	a.logger.Info("server stopped")
	return err
}

// sweepOTPs deletes expired password OTPs from Postgres every sweep interval.
func (a *App) sweepOTPs(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			n, err := a.otps.DeleteExpired(ctx, now)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.logger.Error("failed to sweep expired otps", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Debug("swept expired otps", "removed", n)
			}
		}
	}
}

// Close releases the sinks and connections.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
