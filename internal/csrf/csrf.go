// Package csrf provides CSRF protection using the double-submit cookie pattern.
//
// A random token is set in a cookie and repeated in every form as a hidden
// field. A POST is accepted only when both copies match. A cross-site page
// can make the browser send the cookie but cannot read it, so it cannot
// produce the matching form value.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	// CookieName is the name of the CSRF token cookie.
	CookieName = "sitecheck_csrf"

	// FormFieldName is the name of the CSRF token form field.
	FormFieldName = "csrf_token"

	// HeaderName carries the token for non-form clients.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes for the token (32 bytes = 256 bits).
	TokenLength = 32

	// CookieMaxAge matches the default session lifetime (12 hours).
	CookieMaxAge = 12 * 60 * 60
)

// GenerateToken generates a cryptographically secure random token,
// base64 URL-encoded (43 characters).
func GenerateToken() (string, error) {
	b := make([]byte, TokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateToken compares the cookie token with the submitted token in
// constant time.
func ValidateToken(cookieToken, formToken string) bool {
	if cookieToken == "" || formToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}

// ValidateRequest checks the submitted token against the cookie. The
// submitted token is read from the X-CSRF-Token header, or else from the
// form. Multipart bodies must already be parsed with the caller's limit.
func ValidateRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}

	submitted := r.Header.Get(HeaderName)
	if submitted == "" {
		submitted = r.FormValue(FormFieldName)
	}

	return ValidateToken(cookie.Value, submitted)
}

// SetCookie sets the CSRF token cookie on the response.
//
// HttpOnly is left off so client scripts may copy the token into a header.
func SetCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: false,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// GetTokenFromRequest retrieves the CSRF token from the request cookie.
// Returns empty string if cookie doesn't exist.
func GetTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// EnsureToken returns the request's existing token, or generates a new
// one and sets the cookie. Handlers call it when rendering a form.
func EnsureToken(w http.ResponseWriter, r *http.Request, isSecure bool) (string, error) {
	if existing := GetTokenFromRequest(r); existing != "" {
		return existing, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	SetCookie(w, token, isSecure)

	return token, nil
}
