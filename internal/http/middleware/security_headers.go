package middleware

import (
	"fmt"
	"net/http"

	"github.com/tendant/blog-auth/internal/config"
)

// SecurityHeaders creates middleware that applies OWASP-recommended security
// headers. Responses also carry Cache-Control: no-store since they may hold
// user data or set session cookies.
func SecurityHeaders(cfg config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	headers := securityHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range headers {
				h.Set(kv[0], kv[1])
			}
			next.ServeHTTP(w, r)
		})
	}
}

// securityHeaders resolves the configured values once; empty values are skipped.
func securityHeaders(cfg config.SecurityHeadersConfig) [][2]string {
	var hsts string
	if cfg.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge)
	}

	candidates := [][2]string{
		{"Content-Security-Policy", cfg.CSP},
		{"Strict-Transport-Security", hsts},
		{"X-Frame-Options", cfg.FrameOptions},
		{"X-Content-Type-Options", cfg.ContentTypeOptions},
		{"X-XSS-Protection", cfg.XSSProtection},
		{"Referrer-Policy", cfg.ReferrerPolicy},
		{"Permissions-Policy", cfg.PermissionsPolicy},
		{"Cache-Control", "no-store"},
	}

	out := make([][2]string, 0, len(candidates))
	for _, kv := range candidates {
		if kv[1] != "" {
			out = append(out, kv)
		}
	}
	return out
}
