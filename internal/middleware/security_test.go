package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveWithSecurity(isSecure bool) *httptest.ResponseRecorder {
	handler := NewSecurityHeadersMiddleware(isSecure).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	return rec
}

func TestSecurityHeadersMiddleware_SetsAllHeaders(t *testing.T) {
	rec := serveWithSecurity(true)

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Frame-Options", "DENY"},
		{"X-Content-Type-Options", "nosniff"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Permissions-Policy", "geolocation=(), microphone=(), camera=()"},
	}

	for _, tc := range tests {
		if got := rec.Header().Get(tc.header); got != tc.expected {
			t.Errorf("%s: expected %q, got %q", tc.header, tc.expected, got)
		}
	}
}

func TestSecurityHeadersMiddleware_HSTSOnlyWhenSecure(t *testing.T) {
	if hsts := serveWithSecurity(true).Header().Get("Strict-Transport-Security"); !strings.Contains(hsts, "max-age=31536000") {
		t.Errorf("expected HSTS in production, got %q", hsts)
	}
	if hsts := serveWithSecurity(false).Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("expected no HSTS in development, got %q", hsts)
	}
}

func TestSecurityHeadersMiddleware_CSP(t *testing.T) {
	csp := serveWithSecurity(false).Header().Get("Content-Security-Policy")

	for _, directive := range []string{
		"default-src 'self'",
		"script-src 'none'",
		"img-src 'self' data:",
		"frame-ancestors 'none'",
		"form-action 'self'",
	} {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP missing %q: %s", directive, csp)
		}
	}
	if strings.Contains(csp, "unsafe-inline") {
		t.Errorf("CSP should not allow inline code: %s", csp)
	}
}

func TestStack_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Stack(mark("first"), mark("second"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if strings.Join(order, ",") != "first,second,handler" {
		t.Errorf("order = %v", order)
	}
}
