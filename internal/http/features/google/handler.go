package google

import (
	"log/slog"
	"net/http"

	"github.com/tendant/blog-auth/internal/http/features/common"
	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth"
)

// Handler handles Google sign-in. The browser completes the Google flow and
// posts the resulting profile here.
type Handler struct {
	logger       *slog.Logger
	authService  *auth.Service
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new Google handler.
func NewHandler(logger *slog.Logger, authService *auth.Service, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		authService:  authService,
		cookieConfig: cookieConfig,
	}
}

// LoginRequest is the Google profile submitted by the client.
type LoginRequest struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	GooglePhotoURL string `json:"googlePhotoUrl"`
	GoogleID       string `json:"googleId"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// Login signs a Google user in, creating the account on first use.
// POST /auth/google
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	session, err := h.authService.GoogleLogin(r.Context(), auth.GoogleInput{
		Email:    req.Email,
		Name:     req.Name,
		PhotoURL: req.GooglePhotoURL,
		GoogleID: req.GoogleID,
	}, common.Meta(r, req.RecaptchaToken))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	common.WriteSession(w, session, h.authService.Tokens(), h.cookieConfig)
}
