// File: internal/auth/apple.go
package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"starterkit_backend/internal/config"
	"starterkit_backend/internal/platform/crypto"
	"starterkit_backend/internal/user"

	"go.uber.org/zap"
	"gopkg.in/square/go-jose.v2"
	josejwt "gopkg.in/square/go-jose.v2/jwt"
)

const (
	appleAuthURL = "https://appleid.apple.com/auth/authorize"
	appleIssuer  = "https://appleid.apple.com"
	// AppleJWKSURL serves Apple's id_token signing keys.
	AppleJWKSURL = "https://appleid.apple.com/auth/keys"

	appleKeysTTL = 24 * time.Hour
)

// AppleIDTokenClaims are the claims of a Sign in with Apple id_token.
type AppleIDTokenClaims struct {
	josejwt.Claims
	Email          string      `json:"email,omitempty"`
	EmailVerified  interface{} `json:"email_verified,omitempty"`
	IsPrivateEmail interface{} `json:"is_private_email,omitempty"`
	Nonce          string      `json:"nonce,omitempty"`
}

// appleUserForm is the JSON "user" field Apple posts on first authorization only.
type appleUserForm struct {
	Name struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
	Email string `json:"email"`
}

type appleProvider struct {
	clientID    string
	redirectURI string
	jwksURL     string
	httpClient  *http.Client
	logger      *zap.Logger

	mu         sync.Mutex
	keys       *jose.JSONWebKeySet
	keysExpiry time.Time
}

// NewAppleProvider creates the Sign in with Apple provider.
func NewAppleProvider(cfg *config.Config, logger *zap.Logger) Provider {
	return newAppleProvider(cfg.AppleClientID, cfg.AppleRedirectURI, AppleJWKSURL, logger)
}

func newAppleProvider(clientID, redirectURI, jwksURL string, logger *zap.Logger) *appleProvider {
	return &appleProvider{
		clientID:    clientID,
		redirectURI: redirectURI,
		jwksURL:     jwksURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger.Named("AppleProvider"),
	}
}

func (p *appleProvider) Name() string    { return ProviderApple }
func (p *appleProvider) Redirects() bool { return true }
func (p *appleProvider) UsesNonce() bool { return true }

func (p *appleProvider) LoginURL(state, nonce string) string {
	params := url.Values{}
	params.Add("client_id", p.clientID)
	params.Add("redirect_uri", p.redirectURI)
	params.Add("response_type", "code id_token")
	params.Add("scope", "name email")
	params.Add("response_mode", "form_post")
	params.Add("state", state)
	params.Add("nonce", nonce)
	return appleAuthURL + "?" + params.Encode()
}

func (p *appleProvider) Exchange(ctx context.Context, params CallbackParams) (*OAuthIdentity, error) {
	if params.IDToken == "" {
		return nil, errors.New("missing apple id_token")
	}
	claims, err := p.verifyIDToken(ctx, params.IDToken, params.Nonce)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("apple id_token has no subject")
	}

	id := &OAuthIdentity{
		Provider:          ProviderApple,
		ProviderAccountID: claims.Subject,
		AccountType:       user.AccountTypeOIDC,
		Email:             user.NormalizeEmail(claims.Email),
	}
	if params.User != "" {
		var form appleUserForm
		if err := json.Unmarshal([]byte(params.User), &form); err != nil {
			p.logger.Warn("Failed to parse Apple user form data", zap.Error(err))
		} else {
			id.Name = strings.TrimSpace(form.Name.FirstName + " " + form.Name.LastName)
			if id.Email == "" {
				id.Email = user.NormalizeEmail(form.Email)
			}
		}
	}
	return id, nil
}

// verifyIDToken checks signature, issuer, audience, expiry and nonce.
func (p *appleProvider) verifyIDToken(ctx context.Context, raw, expectedNonce string) (*AppleIDTokenClaims, error) {
	parsed, err := josejwt.ParseSigned(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse apple id_token: %w", err)
	}

	jwks, err := p.publicKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get apple public keys: %w", err)
	}

	var key interface{}
	for _, h := range parsed.Headers {
		found := jwks.Key(h.KeyID)
		if h.KeyID == "" || len(found) == 0 {
			continue
		}
		switch k := found[0].Key.(type) {
		case *ecdsa.PublicKey, *rsa.PublicKey:
			key = k
		default:
			return nil, fmt.Errorf("unexpected key type for kid %s: %T", h.KeyID, k)
		}
		break
	}
	if key == nil {
		return nil, errors.New("apple id_token signing key not found in JWKS")
	}

	claims := &AppleIDTokenClaims{}
	if err := parsed.Claims(key, claims); err != nil {
		return nil, fmt.Errorf("apple id_token signature invalid: %w", err)
	}
	if err := claims.Validate(josejwt.Expected{
		Issuer:   appleIssuer,
		Audience: josejwt.Audience{p.clientID},
		Time:     time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("apple id_token claims invalid: %w", err)
	}
	if expectedNonce == "" || !crypto.EqualStrings(claims.Nonce, expectedNonce) {
		return nil, errors.New("apple id_token nonce mismatch")
	}
	return claims, nil
}

func (p *appleProvider) publicKeys(ctx context.Context) (*jose.JSONWebKeySet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.keys != nil && time.Now().Before(p.keysExpiry) {
		return p.keys, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p.jwksURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch apple keys: status %s, body: %s", resp.Status, string(body))
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("decode apple keys: %w", err)
	}
	p.keys = &jwks
	p.keysExpiry = time.Now().Add(appleKeysTTL)
	return p.keys, nil
}
