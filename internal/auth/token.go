// File: internal/auth/token.go
package auth

import (
	"errors"
	"strings"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/session"
	"starterkit_backend/internal/user"
)

// ErrMissingIdentity is returned when a credentials sign-in carries no id or email.
var ErrMissingIdentity = errors.New("sign-in user is missing id or email")

// AuthUser is the identity stamped into a session token.
type AuthUser struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
	Role  string `json:"role"`
}

// NewAuthUser builds the session identity from a stored user.
func NewAuthUser(u *user.User) *AuthUser {
	if u == nil {
		return nil
	}
	return &AuthUser{
		ID:    u.ID,
		Name:  u.DisplayName(),
		Email: u.Email,
		Image: u.ImageURL(),
		Role:  normalizeRole(u.Role),
	}
}

// AuthUserFromSignIn builds the session identity from an already authorized
// sign-in user. Both id and email are required.
func AuthUserFromSignIn(su *SignInUser) (*AuthUser, error) {
	if su == nil || strings.TrimSpace(su.ID) == "" || strings.TrimSpace(su.Email) == "" {
		return nil, ErrMissingIdentity
	}
	return &AuthUser{
		ID:    su.ID,
		Name:  su.Name,
		Email: user.NormalizeEmail(su.Email),
		Image: su.Image,
		Role:  normalizeRole(su.Role),
	}, nil
}

// applyAuthUser stamps the identity claims onto t. Only sign-in flows call this,
// so it is the one place sub gets assigned.
func applyAuthUser(t *session.Token, a *AuthUser) {
	t.Subject = a.ID
	t.Name = a.Name
	t.Email = a.Email
	t.Picture = a.Image
	t.Role = a.Role
}

// sessionUserFromToken is the inverse view used by the session endpoint.
func sessionUserFromToken(t *session.Token) *AuthUser {
	return &AuthUser{
		ID:    t.Subject,
		Name:  t.Name,
		Email: t.Email,
		Image: t.Picture,
		Role:  normalizeRole(t.Role),
	}
}

func validRole(role string) bool {
	return role == common.RoleUser || role == common.RoleAdmin
}

func normalizeRole(role string) string {
	if validRole(role) {
		return role
	}
	return common.RoleUser
}
