package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DukeRupert/sitecheck/internal/session"
)

func TestWithSession_CreatesAndReuses(t *testing.T) {
	store := session.NewStore(time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mw := NewSessionMiddleware(store, false)

	var seen []*session.Session
	handler := mw.WithSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, GetSession(r.Context()))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.CookieName {
		t.Fatalf("expected session cookie, got %v", cookies)
	}

	req := httptest.NewRequest("GET", "/reports", nil)
	req.AddCookie(cookies[0])
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(seen) != 2 || seen[0] == nil {
		t.Fatalf("sessions seen = %v", seen)
	}
	if seen[0] != seen[1] {
		t.Error("second request should reuse the session")
	}
}

func TestGetSession_Missing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if GetSession(req.Context()) != nil {
		t.Error("expected nil session")
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !bytes.Contains(buf.Bytes(), []byte("boom")) {
		t.Errorf("panic should be logged, got: %s", buf.String())
	}
}
