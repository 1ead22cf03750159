package email

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/blog-auth/internal/http/features/common"
	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth"
)

// Handler handles email verification endpoints.
type Handler struct {
	logger      *slog.Logger
	authService *auth.Service
}

// NewHandler creates a new email handler.
func NewHandler(logger *slog.Logger, authService *auth.Service) *Handler {
	return &Handler{
		logger:      logger,
		authService: authService,
	}
}

// ResendVerificationRequest represents a resend request.
type ResendVerificationRequest struct {
	Email          string `json:"email"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// VerifyEmail consumes the token from a verification link.
// GET /auth/verify-email/{token}
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.authService.VerifyEmail(r.Context(), token, common.Meta(r, "")); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: "Email verified successfully. You can now sign in."})
}

// ResendVerificationEmail sends a fresh verification link.
// POST /auth/resend-verification-email
func (h *Handler) ResendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	message, err := h.authService.ResendVerification(r.Context(), req.Email, common.Meta(r, req.RecaptchaToken))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: message})
}
