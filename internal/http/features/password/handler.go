package password

import (
	"log/slog"
	"net/http"

	"github.com/tendant/blog-auth/internal/http/features/common"
	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth"
)

// Handler handles credential signup, signin and password recovery.
type Handler struct {
	logger       *slog.Logger
	authService  *auth.Service
	cookieConfig httputil.CookieConfig
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, authService *auth.Service, cookieConfig httputil.CookieConfig) *Handler {
	return &Handler{
		logger:       logger,
		authService:  authService,
		cookieConfig: cookieConfig,
	}
}

// SignupRequest represents a signup request.
type SignupRequest struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// SignupResponse represents a signup response.
type SignupResponse struct {
	Message  string              `json:"message"`
	Username string              `json:"username"`
	User     common.UserResponse `json:"user"`
}

// SigninRequest represents a signin request.
type SigninRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// ForgotPasswordRequest represents a password reset request.
type ForgotPasswordRequest struct {
	Email          string `json:"email"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// ResetPasswordRequest represents a password reset confirmation.
type ResetPasswordRequest struct {
	Token          string `json:"token"`
	NewPassword    string `json:"newPassword"`
	RecaptchaToken string `json:"recaptchaToken"`
}

// Signup handles user registration. No session is issued; the user must
// verify their email before signing in.
// POST /auth/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	user, err := h.authService.Signup(r.Context(), auth.SignupInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	}, common.Meta(r, req.RecaptchaToken))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, SignupResponse{
		Message:  "Signup successful. Please check your email to verify your account.",
		Username: user.Username,
		User:     common.NewUserResponse(user),
	})
}

// Signin handles credential sign-in and sets the session cookies.
// POST /auth/signin
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	session, err := h.authService.Signin(r.Context(), req.Email, req.Password, common.Meta(r, req.RecaptchaToken))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	common.WriteSession(w, session, h.authService.Tokens(), h.cookieConfig)
}

// ForgotPassword starts a password reset. The response does not reveal
// whether the email is registered.
// POST /auth/forgot-password
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	message, err := h.authService.ForgotPassword(r.Context(), req.Email, common.Meta(r, req.RecaptchaToken))
	if err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: message})
}

// ResetPassword sets a new password using a reset token.
// POST /auth/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword, common.Meta(r, req.RecaptchaToken)); err != nil {
		httputil.WriteError(w, h.logger, err)
		return
	}

	httputil.JSON(w, http.StatusOK, common.MessageResponse{Message: "Password has been reset. You can now sign in."})
}
