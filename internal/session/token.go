// File: internal/session/token.go
package session

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token is the claim set carried in the session cookie. Subject is the
// user's canonical id and never changes once set at sign-in.
type Token struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Picture     string `json:"picture,omitempty"`
	Role        string `json:"role,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	Provider    string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// NewJTI returns a fresh token identifier.
func NewJTI() string {
	return uuid.NewString()
}

// Clone returns a deep copy of t.
func (t *Token) Clone() *Token {
	if t == nil {
		return &Token{}
	}
	cp := *t
	if t.Audience != nil {
		cp.Audience = append(jwt.ClaimStrings(nil), t.Audience...)
	}
	cp.ExpiresAt = cloneDate(t.ExpiresAt)
	cp.IssuedAt = cloneDate(t.IssuedAt)
	cp.NotBefore = cloneDate(t.NotBefore)
	return &cp
}

// EnsureJTI mints an ID when the token has none and reports whether it did.
func (t *Token) EnsureJTI() bool {
	if t.ID != "" {
		return false
	}
	t.ID = NewJTI()
	return true
}

// RotateJTI replaces the token ID unconditionally.
func (t *Token) RotateJTI() {
	t.ID = NewJTI()
}

// Authenticated reports whether the token identifies a user.
func (t *Token) Authenticated() bool {
	return t != nil && t.Subject != ""
}

func cloneDate(d *jwt.NumericDate) *jwt.NumericDate {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}
