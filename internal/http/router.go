package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tendant/blog-auth/internal/config"
	"github.com/tendant/blog-auth/internal/http/features/email"
	"github.com/tendant/blog-auth/internal/http/features/google"
	"github.com/tendant/blog-auth/internal/http/features/password"
	"github.com/tendant/blog-auth/internal/http/features/session"
	"github.com/tendant/blog-auth/internal/http/features/users"
	"github.com/tendant/blog-auth/internal/http/middleware"
	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger              *slog.Logger
	AuthService         *auth.Service
	Cookies             httputil.CookieConfig
	RateLimitConfig     config.RateLimitConfig
	SecurityHeaders     config.SecurityHeadersConfig
	MaxRequestBodyBytes int64
	AllowedOrigins      []string
	TrustedProxies      []netip.Prefix
	HealthCheck         func(ctx context.Context) error // optional, e.g. a database ping
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.RealIP(cfg.TrustedProxies))
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodyBytes))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequireJSON())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(r.Context()); err != nil {
				cfg.Logger.Error("health check failed", "error", err)
				httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusNotFound, "endpoint not found")
	})

	// Create rate limiters for different endpoint types
	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	requireAuth := middleware.Auth(cfg.AuthService.Tokens())

	passwordHandler := password.NewHandler(cfg.Logger, cfg.AuthService, cfg.Cookies)
	googleHandler := google.NewHandler(cfg.Logger, cfg.AuthService, cfg.Cookies)
	emailHandler := email.NewHandler(cfg.Logger, cfg.AuthService)
	sessionHandler := session.NewHandler(cfg.Logger, cfg.AuthService, cfg.Cookies)
	usersHandler := users.NewHandler(cfg.Logger, cfg.AuthService)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.ClassAuth])
			r.Post("/signup", passwordHandler.Signup)
			r.Post("/signin", passwordHandler.Signin)
			r.Post("/google", googleHandler.Login)
		})
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.ClassReset])
			r.Post("/forgot-password", passwordHandler.ForgotPassword)
			r.Post("/reset-password", passwordHandler.ResetPassword)
		})
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters[middleware.ClassVerify])
			r.Get("/verify-email/{token}", emailHandler.VerifyEmail)
			r.Post("/resend-verification-email", emailHandler.ResendVerificationEmail)
		})
		r.With(rateLimiters[middleware.ClassRefresh]).Post("/refresh-token", sessionHandler.Refresh)
		r.Post("/signout", sessionHandler.Signout)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(rateLimiters[middleware.ClassProfile])
		r.Post("/request-password-update-otp", usersHandler.RequestPasswordUpdateOTP)
		r.Put("/update-password", usersHandler.UpdatePassword)
	})

	return r
}
