package users

import (
	"log/slog"
	"net/http"

	"github.com/tendant/blog-auth/internal/http/features/common"
	"github.com/tendant/blog-auth/internal/http/middleware"
	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth"
)

// Handler handles password changes of signed-in users.
type Handler struct {
	logger      *slog.Logger
	authService *auth.Service
}

// NewHandler creates a new users handler.
func NewHandler(logger *slog.Logger, authService *auth.Service) *Handler {
	return &Handler{
		logger:      logger,
		authService: authService,
	}
}

// RequestOTPRequest represents a request for a password change code.
type RequestOTPRequest struct {
	CurrentPassword string `json:"currentPassword"`
}

// UpdatePasswordRequest represents a password change.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	OTP             string `json:"otp"`
}

// RequestPasswordUpdateOTP emails a one-time code to the signed-in user.
// POST /users/request-password-update-otp
func (h *Handler) RequestPasswordUpdateOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req RequestOTPRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.RequestPasswordOTP(r.Context(), userID, req.CurrentPassword, common.Meta(r, "")); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: "A verification code has been sent to your email."})
}

// UpdatePassword changes the signed-in user's password.
// PUT /users/update-password
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdatePasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	err := h.authService.UpdatePassword(r.Context(), userID, auth.UpdatePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		OTP:             req.OTP,
	}, common.Meta(r, ""))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: "Password updated successfully."})
}
