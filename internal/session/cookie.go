// File: internal/session/cookie.go
package session

import (
	"net/http"
	"strings"
	"time"
)

// Cookie names, compatible with the NextAuth front end.
const (
	CookieName       = "next-auth.session-token"
	SecureCookieName = "__Secure-next-auth.session-token"

	// E2ECookieName marks a browser driven by the end-to-end test runner.
	E2ECookieName = "e2e-test-mode"
	// MockSessionPrefix marks a session cookie value planted by e2e fixtures.
	MockSessionPrefix = "mock-session-"

	testRunnerUserAgent = "Playwright"
)

// CookieNameFor returns the session cookie name for the given security mode.
func CookieNameFor(secure bool) string {
	if secure {
		return SecureCookieName
	}
	return CookieName
}

// SetCookie writes the session cookie: path /, httpOnly, SameSite=Lax.
func SetCookie(w http.ResponseWriter, value string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieNameFor(secure),
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieNameFor(secure),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest returns the raw session cookie value under either name.
func TokenFromRequest(r *http.Request) string {
	for _, name := range []string{SecureCookieName, CookieName} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// IsTestRunner reports whether the request comes from the e2e test runner.
func IsTestRunner(r *http.Request) bool {
	if strings.Contains(r.UserAgent(), testRunnerUserAgent) {
		return true
	}
	c, err := r.Cookie(E2ECookieName)
	return err == nil && c.Value == "true"
}

// HasMockSession reports whether the request carries an e2e mock session.
func HasMockSession(r *http.Request) bool {
	return strings.HasPrefix(TokenFromRequest(r), MockSessionPrefix)
}
