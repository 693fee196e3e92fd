package middleware

import (
	"context"
	"net/http"

	"github.com/DukeRupert/sitecheck/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const sessionContextKey contextKey = "session"

// GetSession retrieves the session stored by WithSession.
// Returns nil if the request did not pass through WithSession.
func GetSession(ctx context.Context) *session.Session {
	sess, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

// setSession stores a session in the request context.
func setSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionMiddleware attaches the caller's in-memory session to each request.
type SessionMiddleware struct {
	store    *session.Store
	isSecure bool // Whether to set Secure flag on cookies (true in production)
}

// NewSessionMiddleware creates a new SessionMiddleware.
func NewSessionMiddleware(store *session.Store, isSecure bool) *SessionMiddleware {
	return &SessionMiddleware{
		store:    store,
		isSecure: isSecure,
	}
}

// WithSession loads the session named by the cookie, creating one when it
// is missing or expired, and stores it in the request context.
//
// The session can be retrieved in handlers using:
//
//	sess := middleware.GetSession(r.Context())
func (m *SessionMiddleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := m.store.Load(w, r, m.isSecure)
		next.ServeHTTP(w, r.WithContext(setSession(r.Context(), sess)))
	})
}
