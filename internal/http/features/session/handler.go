package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/blog-auth/internal/http/features/common"
	"github.com/tendant/blog-auth/internal/http/middleware"
	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth"
)

// Handler handles session endpoints.
type Handler struct {
	logger       *slog.Logger
	authService  *auth.Service
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new session handler.
func NewHandler(logger *slog.Logger, authService *auth.Service, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		authService:  authService,
		cookieConfig: cookieConfig,
	}
}

// RefreshResponse reports the new access token expiry.
type RefreshResponse struct {
	Message         string    `json:"message"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// Refresh issues a new access token from the refresh cookie.
// POST /auth/refresh-token
//
// Any refresh token failure is answered with 403 and the cookies are
// cleared, so the client has to sign in again.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := httputil.GetRefreshTokenFromCookie(r)
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "refresh token not found")
		return
	}

	accessToken, expiresAt, err := h.authService.Refresh(r.Context(), refreshToken, common.Meta(r, ""))
	if err != nil {
		h.logger.Debug("refresh rejected", "error", err)
		httputil.ClearAuthCookies(w, h.cookieConfig)
		httputil.Error(w, http.StatusForbidden, "invalid or expired refresh token")
		return
	}

	httputil.SetAccessCookie(w, accessToken, h.authService.Tokens().AccessTokenTTL(), h.cookieConfig)
	httputil.JSON(w, http.StatusOK, RefreshResponse{
		Message:         "Access token refreshed",
		AccessExpiresAt: expiresAt,
	})
}

// Signout clears the session cookies.
// POST /auth/signout
func (h *Handler) Signout(w http.ResponseWriter, r *http.Request) {
	h.authService.Signout(r.Context(), middleware.AccessToken(r), common.Meta(r, ""))
	httputil.ClearAuthCookies(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: "Signed out"})
}
