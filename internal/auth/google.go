// File: internal/auth/google.go
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"starterkit_backend/internal/config"
	"starterkit_backend/internal/user"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleUserInfoURL is where profile claims are fetched after the code exchange.
const GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

type googleProvider struct {
	oauth       *oauth2.Config
	userInfoURL string
	logger      *zap.Logger
}

// NewGoogleProvider creates the Google OAuth provider.
func NewGoogleProvider(cfg *config.Config, logger *zap.Logger) Provider {
	return newGoogleProvider(&oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       []string{"openid", "profile", "email"},
		Endpoint:     google.Endpoint,
	}, GoogleUserInfoURL, logger)
}

func newGoogleProvider(oauthCfg *oauth2.Config, userInfoURL string, logger *zap.Logger) *googleProvider {
	return &googleProvider{oauth: oauthCfg, userInfoURL: userInfoURL, logger: logger.Named("GoogleProvider")}
}

func (p *googleProvider) Name() string    { return ProviderGoogle }
func (p *googleProvider) Redirects() bool { return true }
func (p *googleProvider) UsesNonce() bool { return false }

func (p *googleProvider) LoginURL(state, _ string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (p *googleProvider) Exchange(ctx context.Context, params CallbackParams) (*OAuthIdentity, error) {
	if params.Code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}
	token, err := p.oauth.Exchange(ctx, params.Code)
	if err != nil {
		return nil, fmt.Errorf("exchange google auth code: %w", err)
	}
	if !token.Valid() {
		return nil, fmt.Errorf("google returned an invalid token")
	}

	resp, err := p.oauth.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch google user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		p.logger.Error("Google user info request failed", zap.Int("status", resp.StatusCode), zap.String("body", string(body)))
		return nil, fmt.Errorf("google user info returned status %d", resp.StatusCode)
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode google user info: %w", err)
	}

	return &OAuthIdentity{
		Provider:          ProviderGoogle,
		ProviderAccountID: info.Sub,
		AccountType:       user.AccountTypeOAuth,
		Email:             user.NormalizeEmail(info.Email),
		Name:              info.Name,
		Image:             info.Picture,
		AccessToken:       token.AccessToken,
	}, nil
}
