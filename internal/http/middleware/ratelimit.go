package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/blog-auth/internal/config"
	"github.com/tendant/blog-auth/internal/httputil"
)

// RouteClass groups routes that share a coarse per-IP request limit. These
// limits sit in front of the attempt trackers and only cap raw request volume.
type RouteClass string

const (
	ClassAuth    RouteClass = "auth"
	ClassReset   RouteClass = "reset"
	ClassVerify  RouteClass = "verify"
	ClassRefresh RouteClass = "refresh"
	ClassProfile RouteClass = "profile"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Class    RouteClass
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"class", cfg.Class,
					"ip", httputil.ClientIP(r),
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			details := map[string]any{}
			if s, err := strconv.Atoi(w.Header().Get("Retry-After")); err == nil {
				details["retryAfter"] = s
			}
			httputil.ErrorWithDetails(w, http.StatusTooManyRequests, "too many requests, please try again later", details)
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters creates one limiter per route class from configuration.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[RouteClass]func(http.Handler) http.Handler {
	limits := map[RouteClass][2]int{
		ClassAuth:    {cfg.AuthRequestsPerMinute, cfg.AuthWindowMinutes},
		ClassReset:   {cfg.ResetRequestsPerWindow, cfg.ResetWindowMinutes},
		ClassVerify:  {cfg.VerifyRequestsPerWindow, cfg.VerifyWindowMinutes},
		ClassRefresh: {cfg.RefreshRequestsPerMinute, cfg.RefreshWindowMinutes},
		ClassProfile: {cfg.ProfileRequestsPerMinute, cfg.ProfileWindowMinutes},
	}

	limiters := make(map[RouteClass]func(http.Handler) http.Handler, len(limits))
	for class, l := range limits {
		requests, minutes := l[0], l[1]
		if !cfg.Enabled || requests <= 0 {
			limiters[class] = NoRateLimit()
			continue
		}
		if minutes <= 0 {
			minutes = 1
		}
		limiters[class] = RateLimit(RateLimitConfig{
			Class:    class,
			Requests: requests,
			Window:   time.Duration(minutes) * time.Minute,
			Logger:   logger,
		})
	}
	return limiters
}
