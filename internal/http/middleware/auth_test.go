package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/blog-auth/pkg/auth"
)

func TestAuth(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tokens := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Clock:         clock,
	})

	userID := uuid.New()
	access, _, err := tokens.IssueAccessToken(userID, false)
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}
	refresh, _, err := tokens.IssueRefreshToken(userID, false)
	if err != nil {
		t.Fatalf("IssueRefreshToken failed: %v", err)
	}

	expiredTokens := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Clock:         func() time.Time { return now.Add(-time.Hour) },
	})
	expired, _, err := expiredTokens.IssueAccessToken(userID, false)
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
	}{
		{
			name:       "missing token",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "cookie",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: access}) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "bearer header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+access) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "expired",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: expired}) },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "refresh token used as access token",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: refresh}) },
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "garbage",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-jwt") },
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID uuid.UUID
			handler := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = GetUserID(r.Context())
				if _, ok := GetClaims(r.Context()); !ok {
					t.Error("claims missing from context")
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/users/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && gotID != userID {
				t.Errorf("user id = %v, want %v", gotID, userID)
			}
		})
	}
}
