// File: internal/auth/firebase.go
package auth

import (
	"context"
	"errors"
	"fmt"

	"starterkit_backend/internal/user"

	fbauth "firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
)

// IDTokenVerifier verifies Firebase ID tokens. firebase.Service satisfies it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

type firebaseProvider struct {
	verifier IDTokenVerifier
	logger   *zap.Logger
}

// NewFirebaseProvider creates a provider that signs in with a client-obtained
// Firebase ID token. The Firebase client SDK does the redirect dance, so there
// is no login URL.
func NewFirebaseProvider(verifier IDTokenVerifier, logger *zap.Logger) Provider {
	return &firebaseProvider{verifier: verifier, logger: logger.Named("FirebaseProvider")}
}

func (p *firebaseProvider) Name() string               { return ProviderFirebase }
func (p *firebaseProvider) Redirects() bool            { return false }
func (p *firebaseProvider) UsesNonce() bool            { return false }
func (p *firebaseProvider) LoginURL(_, _ string) string { return "" }

func (p *firebaseProvider) Exchange(ctx context.Context, params CallbackParams) (*OAuthIdentity, error) {
	if params.IDToken == "" {
		return nil, errors.New("missing firebase id token")
	}
	tok, err := p.verifier.VerifyIDToken(ctx, params.IDToken)
	if err != nil {
		return nil, fmt.Errorf("verify firebase id token: %w", err)
	}
	p.logger.Debug("Firebase identity verified",
		zap.String("uid", tok.UID), zap.String("signInProvider", tok.Firebase.SignInProvider))

	return &OAuthIdentity{
		Provider:          ProviderFirebase,
		ProviderAccountID: tok.UID,
		AccountType:       user.AccountTypeOIDC,
		Email:             user.NormalizeEmail(claimString(tok.Claims, "email")),
		Name:              claimString(tok.Claims, "name"),
		Image:             claimString(tok.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
