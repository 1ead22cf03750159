package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth"
	"github.com/tendant/blog-auth/pkg/domain"
)

type contextKey string

const (
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// ClaimsKey is the context key for the token claims.
	ClaimsKey contextKey = "claims"
)

// Auth creates middleware that validates JWT access tokens.
// Checks Authorization header first, then falls back to the access_token cookie.
// A missing or expired token is answered with 401, any other invalid token with 403.
func Auth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := AccessToken(r)
			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := tokens.Verify(tokenString, auth.TokenKindAccess)
			if err != nil {
				if errors.Is(err, domain.ErrTokenExpired) {
					httputil.Error(w, http.StatusUnauthorized, "token expired")
					return
				}
				httputil.Error(w, http.StatusForbidden, "invalid token")
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				httputil.Error(w, http.StatusForbidden, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken returns the bearer token or access_token cookie, if any.
func AccessToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if token, ok := httputil.GetAccessTokenFromCookie(r); ok {
		return token
	}
	return ""
}

// GetUserID extracts the user ID from the request context.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetClaims extracts the token claims from the request context.
func GetClaims(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok
}

// WithUserID returns a context carrying userID, as Auth would set it.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
