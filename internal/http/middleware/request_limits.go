package middleware

import (
	"mime"
	"net/http"

	"github.com/tendant/blog-auth/internal/httputil"
)

// RequestSizeLimit caps request bodies at maxBytes. Handlers see
// *http.MaxBytesError when decoding an oversized body and answer 413.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects POST, PUT and PATCH requests that carry a body with a
// content type other than application/json. HTML forms cannot produce such
// requests cross-site without a CORS preflight.
func RequireJSON() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hasBody(r) && !isJSON(r.Header.Get("Content-Type")) {
				httputil.Error(w, http.StatusUnsupportedMediaType, "content type must be application/json")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.ContentLength != 0
	}
	return false
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}
