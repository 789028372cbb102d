// File: internal/auth/oauth_cookies.go
package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"starterkit_backend/internal/config"
	"starterkit_backend/internal/platform/crypto"

	"github.com/gin-gonic/gin"
)

// setOAuthCookie sets a short-lived cookie for state, nonce or the callback target.
func setOAuthCookie(c *gin.Context, cfg *config.Config, name, value string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(cfg.OAuthCookieMaxAge.Seconds()),
		Secure:   cfg.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popOAuthCookie retrieves and deletes an OAuth cookie.
func popOAuthCookie(c *gin.Context, cfg *config.Config, name string) (string, error) {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return "", fmt.Errorf("%s cookie not found: %w", name, err)
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   cfg.SecureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return cookie.Value, nil
}

func generateAndSetOAuthValue(c *gin.Context, cfg *config.Config, name string) (string, error) {
	v, err := crypto.GenerateSecureRandomString(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", name, err)
	}
	setOAuthCookie(c, cfg, name, v)
	return v, nil
}

// safeCallbackURL returns raw when it is a same-site relative path, else fallback.
func safeCallbackURL(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return raw
}
