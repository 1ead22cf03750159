package google

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendant/blog-auth/internal/httputil"
	"github.com/tendant/blog-auth/pkg/auth/authtest"
)

func newHandler(t *testing.T) (*Handler, *authtest.Env) {
	t.Helper()
	env := authtest.NewEnv(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(logger, env.Service, httputil.DefaultCookieConfig()), env
}

func login(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/google", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.20:40000"
	rec := httptest.NewRecorder()
	h.Login(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "invalid json",
			body:           `{invalid}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name:           "missing google id",
			body:           `{"email":"ada@gmail.com","name":"Ada"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "googleId is required",
		},
		{
			name:           "local account",
			body:           `{"email":"local@example.com","name":"Local","googleId":"g-local"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "this email is registered with a password, please sign in with email and password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, env := newHandler(t)
			env.CreateUser(t, "local@example.com", "Velvet-Otter-42-Quill", true)

			rec := login(h, tt.body)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.expectedStatus, rec.Body.String())
			}
			var body map[string]any
			json.NewDecoder(rec.Body).Decode(&body)
			if body["error"] != tt.expectedError {
				t.Errorf("error = %v, want %q", body["error"], tt.expectedError)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("cookies set on a failed login")
			}
		})
	}
}

func TestLogin_CreatesAccount(t *testing.T) {
	h, env := newHandler(t)

	rec := login(h, `{"email":"Ada@Gmail.com","name":"Ada Lovelace","googlePhotoUrl":"https://example.com/ada.png","googleId":"g-ada"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		User struct {
			Email          string `json:"email"`
			AuthProvider   string `json:"authProvider"`
			IsVerified     bool   `json:"isVerified"`
			ProfilePicture string `json:"profilePicture"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.User.Email != "ada@gmail.com" || body.User.AuthProvider != "google" || !body.User.IsVerified {
		t.Errorf("user = %+v", body.User)
	}
	if body.User.ProfilePicture != "https://example.com/ada.png" {
		t.Errorf("profilePicture = %q", body.User.ProfilePicture)
	}

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
	}
	if !names["access_token"] || !names["refresh_token"] {
		t.Errorf("cookies = %v", names)
	}

	// Signing in again reuses the account.
	if rec := login(h, `{"email":"ada@gmail.com","name":"Ada Lovelace","googleId":"g-ada"}`); rec.Code != http.StatusOK {
		t.Fatalf("second login status = %d", rec.Code)
	}
	if env.Users.Len() != 1 {
		t.Errorf("users = %d, want 1", env.Users.Len())
	}
}
