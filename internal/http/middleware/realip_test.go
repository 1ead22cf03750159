package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestRealIP(t *testing.T) {
	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8::/32"),
	}

	tests := []struct {
		name       string
		trusted    []netip.Prefix
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"no proxies configured", nil, "203.0.113.5:1234", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.5:1234"},
		{"untrusted peer forwarded for", trusted, "203.0.113.5:1234", map[string]string{"X-Forwarded-For": "198.51.100.1"}, "203.0.113.5:1234"},
		{"untrusted peer true client ip", trusted, "203.0.113.5:1234", map[string]string{"True-Client-IP": "198.51.100.1"}, "203.0.113.5:1234"},
		{"trusted peer forwarded for", trusted, "10.1.2.3:1234", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.1.2.3"}, "198.51.100.1"},
		{"trusted peer real ip", trusted, "10.1.2.3:1234", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"trusted ipv6 peer", trusted, "[2001:db8::1]:1234", map[string]string{"X-Real-IP": "198.51.100.3"}, "198.51.100.3"},
		{"trusted peer without headers", trusted, "10.1.2.3:1234", nil, "10.1.2.3:1234"},
		{"trusted peer with garbage header", trusted, "10.1.2.3:1234", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := RealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}
