package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"starterkit_backend/internal/user"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gopkg.in/square/go-jose.v2"
	josejwt "gopkg.in/square/go-jose.v2/jwt"
)

func TestBlocklist(t *testing.T) {
	b := NewBlocklist(BlocklistConfig{})

	b.Add("jti-live", time.Now().Add(time.Hour))
	b.Add("jti-expired", time.Now().Add(-time.Minute))
	b.Add("", time.Now().Add(time.Hour))

	assert.True(t, b.IsBlocklisted("jti-live"))
	assert.False(t, b.IsBlocklisted("jti-expired"))
	assert.False(t, b.IsBlocklisted("jti-unknown"))
	assert.False(t, b.IsBlocklisted(""))
}

func TestSafeCallbackURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"/dashboard", "/dashboard"},
		{"/search?q=a%20b", "/search?q=a%20b"},
		{"", "/"},
		{"https://evil.example.com/", "/"},
		{"//evil.example.com", "/"},
		{`/\evil.example.com`, "/"},
		{"dashboard", "/"},
		{"javascript:alert(1)", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, safeCallbackURL(tt.raw, "/"))
		})
	}
}

func TestEmulatorDetector(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer up.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	down := httptest.NewServer(http.NotFoundHandler())
	downHost := strings.TrimPrefix(down.URL, "http://")
	down.Close()

	ctx := context.Background()
	assert.True(t, NewEmulatorDetectorForHost(strings.TrimPrefix(up.URL, "http://")).Detect(ctx))
	assert.True(t, NewEmulatorDetectorForHost(up.URL).Detect(ctx))
	assert.False(t, NewEmulatorDetectorForHost(strings.TrimPrefix(broken.URL, "http://")).Detect(ctx))
	assert.False(t, NewEmulatorDetectorForHost(downHost).Detect(ctx))
	assert.False(t, NewEmulatorDetectorForHost("").Detect(ctx))

	var nilDetector *EmulatorDetector
	assert.False(t, nilDetector.Detect(ctx))
}

func TestProviders_Registry(t *testing.T) {
	r := NewProviders(&fakeProvider{name: "zeta", redirects: true}, nil, &fakeProvider{name: ProviderGoogle, redirects: true})

	assert.Equal(t, []string{ProviderGoogle, "zeta"}, r.Names())
	_, err := r.Get("github")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	infos := r.Describe(BasePath)
	require.Len(t, infos, 3)
	assert.Equal(t, user.ProviderCredentials, infos[0].ID)
	assert.Equal(t, "/api/auth/callback/credentials", infos[0].CallbackURL)
	assert.Equal(t, "Google", infos[1].Name)
	assert.Equal(t, "/api/auth/signin/google", infos[1].SignInURL)
}

func TestGoogleProvider_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"google-at","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer google-at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"1082","email":"Ada@Example.com","email_verified":true,"name":"Ada","picture":"https://img/ada"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := newGoogleProvider(&oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/api/auth/callback/google",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
	}, srv.URL+"/userinfo", zap.NewNop())

	loginURL, err := url.Parse(p.LoginURL("state-1", "ignored"))
	require.NoError(t, err)
	assert.Equal(t, "state-1", loginURL.Query().Get("state"))
	assert.Equal(t, "client", loginURL.Query().Get("client_id"))

	id, err := p.Exchange(context.Background(), CallbackParams{Code: "good-code"})
	require.NoError(t, err)
	assert.Equal(t, "1082", id.ProviderAccountID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Equal(t, "google-at", id.AccessToken)
	assert.Equal(t, user.AccountTypeOAuth, id.AccountType)
	assert.Equal(t, "1082", id.SignInUser().ID)
	assert.Equal(t, ProviderGoogle, id.ProviderAccount().Provider)

	_, err = p.Exchange(context.Background(), CallbackParams{Code: "bad-code"})
	assert.Error(t, err)
	_, err = p.Exchange(context.Background(), CallbackParams{})
	assert.Error(t, err)
}

type appleFixture struct {
	key    *ecdsa.PrivateKey
	server *httptest.Server
	hits   atomic.Int32
}

func newAppleFixture(t *testing.T) *appleFixture {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	f := &appleFixture{key: key}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key: &key.PublicKey, KeyID: "apple-k1", Algorithm: string(jose.ES256), Use: "sig",
		}}})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *appleFixture) sign(t *testing.T, claims AppleIDTokenClaims) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: jose.JSONWebKey{Key: f.key, KeyID: "apple-k1"}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)
	raw, err := josejwt.Signed(signer).Claims(claims).CompactSerialize()
	require.NoError(t, err)
	return raw
}

func appleClaims(nonce string) AppleIDTokenClaims {
	return AppleIDTokenClaims{
		Claims: josejwt.Claims{
			Issuer:   appleIssuer,
			Audience: josejwt.Audience{"com.example.web"},
			Subject:  "001234.apple",
			IssuedAt: josejwt.NewNumericDate(time.Now()),
			Expiry:   josejwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
		},
		Email: "Relay@PrivateRelay.AppleID.com",
		Nonce: nonce,
	}
}

func TestAppleProvider_Exchange(t *testing.T) {
	f := newAppleFixture(t)
	p := newAppleProvider("com.example.web", "http://localhost/api/auth/callback/apple", f.server.URL, zap.NewNop())

	loginURL, err := url.Parse(p.LoginURL("st", "nc"))
	require.NoError(t, err)
	assert.Equal(t, "form_post", loginURL.Query().Get("response_mode"))
	assert.Equal(t, "nc", loginURL.Query().Get("nonce"))

	id, err := p.Exchange(context.Background(), CallbackParams{
		IDToken: f.sign(t, appleClaims("nonce-1")),
		Nonce:   "nonce-1",
		User:    `{"name":{"firstName":"Ada","lastName":"Lovelace"},"email":"ignored@example.com"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "001234.apple", id.ProviderAccountID)
	assert.Equal(t, "relay@privaterelay.appleid.com", id.Email)
	assert.Equal(t, "Ada Lovelace", id.Name)
	assert.Equal(t, user.AccountTypeOIDC, id.AccountType)

	_, err = p.Exchange(context.Background(), CallbackParams{IDToken: f.sign(t, appleClaims("nonce-1")), Nonce: "nonce-2"})
	assert.ErrorContains(t, err, "nonce")
	assert.EqualValues(t, 1, f.hits.Load(), "keys are cached")
}

func TestAppleProvider_RejectsBadTokens(t *testing.T) {
	f := newAppleFixture(t)
	p := newAppleProvider("com.example.web", "", f.server.URL, zap.NewNop())
	ctx := context.Background()

	wrongAudience := appleClaims("n")
	wrongAudience.Audience = josejwt.Audience{"someone.else"}
	_, err := p.Exchange(ctx, CallbackParams{IDToken: f.sign(t, wrongAudience), Nonce: "n"})
	assert.Error(t, err)

	expired := appleClaims("n")
	expired.Expiry = josejwt.NewNumericDate(time.Now().Add(-time.Hour))
	_, err = p.Exchange(ctx, CallbackParams{IDToken: f.sign(t, expired), Nonce: "n"})
	assert.Error(t, err)

	_, err = p.Exchange(ctx, CallbackParams{IDToken: f.sign(t, appleClaims("n"))})
	assert.Error(t, err, "missing nonce cookie")

	_, err = p.Exchange(ctx, CallbackParams{IDToken: "not-a-jwt", Nonce: "n"})
	assert.Error(t, err)

	_, err = p.Exchange(ctx, CallbackParams{})
	assert.Error(t, err)
}

type stubVerifier struct {
	token *fbauth.Token
	err   error
}

func (s stubVerifier) VerifyIDToken(_ context.Context, _ string) (*fbauth.Token, error) {
	return s.token, s.err
}

func TestFirebaseProvider_Exchange(t *testing.T) {
	p := NewFirebaseProvider(stubVerifier{token: &fbauth.Token{
		UID:    "fb-uid",
		Claims: map[string]interface{}{"email": "Ada@Example.com", "name": "Ada", "picture": 42},
	}}, zap.NewNop())

	assert.False(t, p.Redirects())
	assert.Empty(t, p.LoginURL("s", "n"))

	id, err := p.Exchange(context.Background(), CallbackParams{IDToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "fb-uid", id.ProviderAccountID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.Empty(t, id.Image, "non-string claims are ignored")

	_, err = NewFirebaseProvider(stubVerifier{err: errors.New("expired")}, zap.NewNop()).
		Exchange(context.Background(), CallbackParams{IDToken: "tok"})
	assert.Error(t, err)
}
