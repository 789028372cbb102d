// File: internal/session/codec.go
package session

import (
	"errors"
	"fmt"
	"time"

	"starterkit_backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature, method or expiry checks.
var ErrInvalidToken = errors.New("invalid session token")

const issuer = "starterkit"

// Codec signs and verifies session tokens with HS256.
type Codec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewCodec builds a codec from AUTH_SECRET and the session max age.
func NewCodec(cfg *config.Config) *Codec {
	return NewCodecWithSecret(cfg.AuthSecret, cfg.SessionMaxAge)
}

// NewCodecWithSecret builds a codec from explicit values.
func NewCodecWithSecret(secret string, maxAge time.Duration) *Codec {
	if maxAge <= 0 {
		maxAge = config.DefaultSessionMaxAgeDays * 24 * time.Hour
	}
	return &Codec{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// MaxAge is the lifetime of every issued session.
func (c *Codec) MaxAge() time.Duration {
	return c.maxAge
}

// Encode signs a copy of t with fresh iat/exp claims and returns the token
// string and its expiry. t itself is not modified.
func (c *Codec) Encode(t *Token) (string, time.Time, error) {
	now := c.now()
	expires := now.Add(c.maxAge)

	claims := t.Clone()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expires)
	claims.NotBefore = nil
	claims.Issuer = issuer

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, expires, nil
}

// Decode verifies raw and returns its claims.
func (c *Codec) Decode(raw string) (*Token, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Token{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
