package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/tendant/blog-auth/pkg/domain"
)

// JSON writes v as a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ErrorWithDetails writes {"error": message} plus the extra fields.
func ErrorWithDetails(w http.ResponseWriter, status int, message string, details map[string]any) {
	body := make(map[string]any, len(details)+1)
	for k, v := range details {
		body[k] = v
	}
	body["error"] = message
	JSON(w, status, body)
}

// DecodeJSON decodes the request body into v. On failure it writes 413 for
// an oversized body or 400 otherwise, and returns false.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

// WriteError maps a service error to its HTTP status and body. Errors that
// are not part of the domain taxonomy are logged and reported as a generic
// 500.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		lockedErr     *domain.LockedError
		rateErr       *domain.RateLimitedError
		upstreamErr   *domain.UpstreamError
	)

	switch {
	case errors.As(err, &validationErr):
		if validationErr.Feedback != nil {
			ErrorWithDetails(w, http.StatusBadRequest, validationErr.Message, map[string]any{
				"feedback": validationErr.Feedback,
			})
			return
		}
		Error(w, http.StatusBadRequest, validationErr.Message)

	case errors.As(err, &lockedErr):
		ErrorWithDetails(w, http.StatusLocked, lockedErr.Error(), map[string]any{
			"remainingMinutes": lockedErr.RemainingMinutes(),
		})

	case errors.As(err, &rateErr):
		seconds := rateErr.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		ErrorWithDetails(w, http.StatusTooManyRequests, rateErr.Error(), map[string]any{
			"retryAfter": seconds,
		})

	case errors.As(err, &upstreamErr):
		logger.Error("upstream service failed", "service", upstreamErr.Service, "error", upstreamErr.Err)
		Error(w, http.StatusInternalServerError, upstreamMessage(upstreamErr.Service))

	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUserAlreadyExists),
		errors.Is(err, domain.ErrProviderMismatch),
		errors.Is(err, domain.ErrBotCheckFailed),
		errors.Is(err, domain.ErrInvalidResetToken),
		errors.Is(err, domain.ErrInvalidVerificationToken),
		errors.Is(err, domain.ErrAlreadyVerified),
		errors.Is(err, domain.ErrVerificationPending),
		errors.Is(err, domain.ErrWrongPassword),
		errors.Is(err, domain.ErrInvalidOTP):
		Error(w, http.StatusBadRequest, publicMessage(err))

	case errors.Is(err, domain.ErrEmailNotVerified):
		Error(w, http.StatusForbidden, "email not verified, please check your inbox")

	case errors.Is(err, domain.ErrTokenExpired):
		Error(w, http.StatusUnauthorized, "token expired")

	case errors.Is(err, domain.ErrTokenInvalid):
		Error(w, http.StatusForbidden, "invalid token")

	case errors.Is(err, domain.ErrUserNotFound):
		Error(w, http.StatusNotFound, "user not found")

	default:
		logger.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return "an account with this email already exists"
	case errors.Is(err, domain.ErrProviderMismatch):
		return "this email is registered with a password, please sign in with email and password"
	case errors.Is(err, domain.ErrBotCheckFailed):
		return "bot verification failed"
	}
	// The remaining errors carry user-facing text, sometimes with a hint
	// appended by the service.
	return err.Error()
}

func upstreamMessage(service string) string {
	switch service {
	case "email":
		return "failed to send email, please try again later"
	case "recaptcha":
		return "bot verification is unavailable, please try again later"
	}
	return "internal server error"
}

// ClientIP returns the request's client address without the port. The
// router's RealIP middleware has already applied forwarding headers.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
