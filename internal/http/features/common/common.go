// Package common holds request and response helpers shared by the feature
// handlers.
package common

import (
	"net/http"
	"time"

	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth"
	"github.com/tendant/blog-auth/pkg/domain"
)

// UserResponse is the public view of a user.
type UserResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	AuthProvider   string    `json:"authProvider"`
	IsVerified     bool      `json:"isVerified"`
	IsAdmin        bool      `json:"isAdmin"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewUserResponse builds the public view of u.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:             u.ID.String(),
		Username:       u.Username,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
		AuthProvider:   string(u.AuthProvider),
		IsVerified:     u.IsVerified,
		IsAdmin:        u.IsAdmin,
		CreatedAt:      u.CreatedAt,
	}
}

// SessionResponse is returned by the sign-in endpoints alongside the cookies.
type SessionResponse struct {
	User             UserResponse `json:"user"`
	AccessExpiresAt  time.Time    `json:"accessExpiresAt"`
	RefreshExpiresAt time.Time    `json:"refreshExpiresAt"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// Meta collects the client details the auth service records and checks.
func Meta(r *http.Request, recaptchaToken string) auth.RequestMeta {
	return auth.RequestMeta{
		IP:             httputil.ClientIP(r),
		UserAgent:      r.UserAgent(),
		RecaptchaToken: recaptchaToken,
	}
}

// WriteSession sets the auth cookies for s and writes the session body.
func WriteSession(w http.ResponseWriter, s *auth.Session, tokens *auth.TokenService, cookies httputil.CookieConfig) {
	httputil.SetAuthCookies(w,
		s.Tokens.AccessToken, s.Tokens.RefreshToken,
		tokens.AccessTokenTTL(), tokens.RefreshTokenTTL(),
		cookies,
	)
	httputil.JSON(w, http.StatusOK, SessionResponse{
		User:             NewUserResponse(s.User),
		AccessExpiresAt:  s.Tokens.AccessExpiresAt,
		RefreshExpiresAt: s.Tokens.RefreshExpiresAt,
	})
}
