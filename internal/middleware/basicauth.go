package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
)

// BasicAuthMiddleware protects an endpoint such as /metrics with HTTP basic
// authentication.
type BasicAuthMiddleware struct {
	realm    string
	username string
	password string
	enabled  bool
}

// NewBasicAuthMiddleware creates a new basic auth middleware.
// If both username and password are empty, authentication is disabled.
func NewBasicAuthMiddleware(realm, username, password string) *BasicAuthMiddleware {
	return &BasicAuthMiddleware{
		realm:    realm,
		username: username,
		password: password,
		enabled:  username != "" || password != "",
	}
}

// Enabled reports whether credentials are required.
func (m *BasicAuthMiddleware) Enabled() bool {
	return m.enabled
}

// Handler returns middleware that requires basic authentication.
func (m *BasicAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			m.unauthorized(w)
			return
		}

		// Evaluate both comparisons so timing does not reveal which failed.
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(m.username))
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(m.password))

		if userMatch&passMatch != 1 {
			m.unauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// unauthorized sends a 401 response with WWW-Authenticate header.
func (m *BasicAuthMiddleware) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", m.realm))
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
