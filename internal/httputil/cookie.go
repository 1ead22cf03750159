package httputil

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	// RefreshTokenPath scopes the refresh cookie to the refresh endpoint so
	// the browser sends it nowhere else.
	RefreshTokenPath = "/auth/refresh-token"
)

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Domain   string
	Secure   bool // Set to true in production (HTTPS)
	SameSite http.SameSite
}

// DefaultCookieConfig returns default cookie configuration.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Secure:   false, // Set to true in production
		SameSite: http.SameSiteStrictMode,
	}
}

// SetAccessCookie sets the HttpOnly access token cookie.
func SetAccessCookie(w http.ResponseWriter, token string, ttl time.Duration, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(AccessTokenCookie, token, "/", int(ttl.Seconds())))
}

// SetAuthCookies sets HttpOnly cookies for access and refresh tokens.
func SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration, cfg CookieConfig) {
	SetAccessCookie(w, accessToken, accessTTL, cfg)
	http.SetCookie(w, cfg.cookie(RefreshTokenCookie, refreshToken, RefreshTokenPath, int(refreshTTL.Seconds())))
}

// ClearAuthCookies clears auth cookies. Paths must match the ones they were
// set with or the browser keeps them.
func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(AccessTokenCookie, "", "/", -1))
	http.SetCookie(w, cfg.cookie(RefreshTokenCookie, "", RefreshTokenPath, -1))
}

func (cfg CookieConfig) cookie(name, value, path string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	}
}

// GetRefreshTokenFromCookie extracts refresh token from cookie.
func GetRefreshTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// GetAccessTokenFromCookie extracts access token from cookie.
func GetAccessTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
