// File: internal/auth/providers.go
package auth

import (
	"context"
	"errors"
	"sort"

	"starterkit_backend/internal/config"
	"starterkit_backend/internal/user"

	"go.uber.org/zap"
)

// Provider names.
const (
	ProviderGoogle   = "google"
	ProviderApple    = "apple"
	ProviderFirebase = "firebase"
)

// ErrUnknownProvider is returned for a provider that is not configured.
var ErrUnknownProvider = errors.New("unknown sign-in provider")

// CallbackParams carries everything a provider may send back to the callback.
type CallbackParams struct {
	Code    string
	IDToken string
	// User is Apple's one-time JSON user blob.
	User  string
	Nonce string
}

// OAuthIdentity is a verified provider identity.
type OAuthIdentity struct {
	Provider          string
	ProviderAccountID string
	AccountType       string
	Email             string
	Name              string
	Image             string
	AccessToken       string
}

// SignInUser maps the identity to the assembler's user object.
func (i *OAuthIdentity) SignInUser() *SignInUser {
	return &SignInUser{ID: i.ProviderAccountID, Name: i.Name, Email: i.Email, Image: i.Image}
}

// ProviderAccount maps the identity to the assembler's account object.
func (i *OAuthIdentity) ProviderAccount() *ProviderAccount {
	return &ProviderAccount{
		Provider:          i.Provider,
		ProviderAccountID: i.ProviderAccountID,
		Type:              i.AccountType,
		AccessToken:       i.AccessToken,
	}
}

// Provider is one external identity provider.
type Provider interface {
	Name() string
	// LoginURL is the provider's authorization URL. Providers without a
	// server-side redirect flow return "".
	LoginURL(state, nonce string) string
	// Redirects reports whether sign-in goes through LoginURL and a state cookie.
	Redirects() bool
	// UsesNonce reports whether LoginURL embeds the nonce.
	UsesNonce() bool
	Exchange(ctx context.Context, params CallbackParams) (*OAuthIdentity, error)
}

// Providers is the registry of configured providers.
type Providers struct {
	byName map[string]Provider
}

// NewProviders creates a registry holding ps.
func NewProviders(ps ...Provider) *Providers {
	r := &Providers{byName: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		if p != nil {
			r.byName[p.Name()] = p
		}
	}
	return r
}

// NewProvidersFromConfig registers every provider that has credentials configured.
// verifier may be nil when Firebase is not set up.
func NewProvidersFromConfig(cfg *config.Config, verifier IDTokenVerifier, logger *zap.Logger) *Providers {
	var ps []Provider
	if cfg.GoogleClientID != "" {
		ps = append(ps, NewGoogleProvider(cfg, logger))
	}
	if cfg.AppleClientID != "" {
		ps = append(ps, NewAppleProvider(cfg, logger))
	}
	if verifier != nil {
		ps = append(ps, NewFirebaseProvider(verifier, logger))
	}
	r := NewProviders(ps...)
	logger.Named("Providers").Info("Sign-in providers configured", zap.Strings("providers", r.Names()))
	return r
}

// Get looks up a provider by name.
func (r *Providers) Get(name string) (Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists the configured provider names, sorted.
func (r *Providers) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ProviderInfo is one entry of GET /api/auth/providers.
type ProviderInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	SignInURL   string `json:"signinUrl"`
	CallbackURL string `json:"callbackUrl"`
}

// Describe lists the providers for the client, credentials included.
func (r *Providers) Describe(basePath string) []ProviderInfo {
	infos := []ProviderInfo{{
		ID:          user.ProviderCredentials,
		Name:        "Credentials",
		Type:        user.AccountTypeCredentials,
		SignInURL:   basePath + "/callback/" + user.ProviderCredentials,
		CallbackURL: basePath + "/callback/" + user.ProviderCredentials,
	}}
	for _, n := range r.Names() {
		typ := user.AccountTypeOAuth
		if n == ProviderFirebase || n == ProviderApple {
			typ = user.AccountTypeOIDC
		}
		infos = append(infos, ProviderInfo{
			ID:          n,
			Name:        displayName(n),
			Type:        typ,
			SignInURL:   basePath + "/signin/" + n,
			CallbackURL: basePath + "/callback/" + n,
		})
	}
	return infos
}

func displayName(provider string) string {
	switch provider {
	case ProviderGoogle:
		return "Google"
	case ProviderApple:
		return "Apple"
	case ProviderFirebase:
		return "Firebase"
	default:
		return provider
	}
}
