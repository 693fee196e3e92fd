package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newLoggedHandler(buf *bytes.Buffer, status int) http.Handler {
	logger := slog.New(slog.NewTextHandler(buf, nil))
	mw := NewRequestLoggingMiddleware(logger)
	return mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("hello"))
	}))
}

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	var buf bytes.Buffer
	handler := newLoggedHandler(&buf, http.StatusOK)

	req := httptest.NewRequest("GET", "/reports", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	logOutput := buf.String()

	for _, want := range []string{"GET", "/reports", "status=200", "duration_ms", "bytes=5", "ip=192.168.1.1"} {
		if !strings.Contains(logOutput, want) {
			t.Errorf("log should contain %q, got: %s", want, logOutput)
		}
	}
}

func TestRequestLoggingMiddleware_SetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := newLoggedHandler(&buf, http.StatusOK)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	id := rec.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("expected a request ID header")
	}
	if !strings.Contains(buf.String(), id) {
		t.Errorf("log should contain request ID %s, got: %s", id, buf.String())
	}
}

func TestRequestLoggingMiddleware_KeepsIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := newLoggedHandler(&buf, http.StatusOK)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request ID = %q, want abc-123", got)
	}
}

func TestRequestLoggingMiddleware_LogsClientIPFromProxy(t *testing.T) {
	var buf bytes.Buffer
	handler := newLoggedHandler(&buf, http.StatusOK)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:8080"
	req.Header.Set("X-Forwarded-For", "203.0.113.195, 10.0.0.1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !strings.Contains(buf.String(), "203.0.113.195") {
		t.Errorf("log should contain client IP from X-Forwarded-For, got: %s", buf.String())
	}
}

func TestRequestLoggingMiddleware_WarnsOnServerError(t *testing.T) {
	var buf bytes.Buffer
	handler := newLoggedHandler(&buf, http.StatusBadGateway)

	req := httptest.NewRequest("POST", "/inspections", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	logOutput := buf.String()
	if !strings.Contains(logOutput, "status=502") {
		t.Errorf("log should contain 502 status, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "level=WARN") {
		t.Errorf("5xx should log at WARN level, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_RedactsAPIKey(t *testing.T) {
	var buf bytes.Buffer
	handler := newLoggedHandler(&buf, http.StatusOK)

	req := httptest.NewRequest("GET", "/reports/1/download?format=pdf&api_key=sk-secret", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	logOutput := buf.String()
	if strings.Contains(logOutput, "sk-secret") {
		t.Errorf("log should not contain the API key, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "format=pdf") {
		t.Errorf("log should keep harmless params, got: %s", logOutput)
	}
}

func TestRequestLoggingMiddleware_PassesRequestThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handlerCalled := false
	handler := NewRequestLoggingMiddleware(logger).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("response body"))
	}))

	req := httptest.NewRequest("POST", "/inspections", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("handler should have been called")
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Header().Get("X-Custom") != "value" {
		t.Error("custom header should be preserved")
	}
	if rec.Body.String() != "response body" {
		t.Errorf("response body should be preserved, got: %s", rec.Body.String())
	}
}

func TestRequestLoggingMiddleware_SkipsNoisyPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics", "/static/app.css"} {
		var buf bytes.Buffer
		handler := newLoggedHandler(&buf, http.StatusOK)

		req := httptest.NewRequest("GET", path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if buf.Len() != 0 {
			t.Errorf("%s should not be logged, got: %s", path, buf.String())
		}
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		path, query, want string
	}{
		{"/reports", "", "/reports"},
		{"/reports", "format=txt", "/reports?format=txt"},
		{"/x", "API_KEY=abc&format=pdf", "/x?API_KEY=[REDACTED]&format=pdf"},
		{"/x", "csrf_token=abc", "/x?csrf_token=[REDACTED]"},
		{"/x", "novalue", "/x"},
	}

	for _, tt := range tests {
		if got := sanitizePath(tt.path, tt.query); got != tt.want {
			t.Errorf("sanitizePath(%q, %q) = %q, want %q", tt.path, tt.query, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.0.2.1:1234", nil, "192.0.2.1"},
		{"no port", "192.0.2.1", nil, "192.0.2.1"},
		{"x-real-ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"x-forwarded-for wins", "10.0.0.1:1", map[string]string{
			"X-Forwarded-For": "203.0.113.9",
			"X-Real-IP":       "198.51.100.7",
		}, "203.0.113.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
