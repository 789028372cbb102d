// File: internal/auth/handler.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"starterkit_backend/internal/activity"
	"starterkit_backend/internal/common"
	"starterkit_backend/internal/config"
	"starterkit_backend/internal/platform/crypto"
	"starterkit_backend/internal/session"
	"starterkit_backend/internal/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BasePath is where the auth endpoints live. The session gate passes it through.
const BasePath = "/api/auth"

const activityTimeout = 2 * time.Second

// UserService is the part of user.Service the auth endpoints use.
type UserService interface {
	Register(ctx context.Context, req user.RegisterRequest) (*user.User, error)
	Authorize(ctx context.Context, email, password string) (*user.User, error)
	GetUserByID(ctx context.Context, id string) (*user.User, error)
}

// CredentialsRequest is the body of POST /api/auth/callback/credentials.
type CredentialsRequest struct {
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,max=72"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// SessionResponse is the client's view of a session.
type SessionResponse struct {
	User    *AuthUser `json:"user"`
	Expires time.Time `json:"expires"`
	URL     string    `json:"url,omitempty"`
}

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	cfg       *config.Config
	users     UserService
	assembler *Assembler
	codec     *session.Codec
	providers *Providers
	blocklist *Blocklist
	activity  activity.Recorder
	logger    *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(
	cfg *config.Config,
	users UserService,
	assembler *Assembler,
	codec *session.Codec,
	providers *Providers,
	blocklist *Blocklist,
	recorder activity.Recorder,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		cfg:       cfg,
		users:     users,
		assembler: assembler,
		codec:     codec,
		providers: providers,
		blocklist: blocklist,
		activity:  recorder,
		logger:    logger.Named("AuthHandler"),
	}
}

// RegisterRoutes sets up the routes for authentication operations.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	authGroup := router.Group(BasePath)
	{
		authGroup.GET("/providers", h.listProviders)
		authGroup.GET("/signin/:provider", h.signIn)
		authGroup.GET("/callback/:provider", h.callback)
		authGroup.POST("/callback/:provider", h.callback)
		authGroup.POST("/register", h.register)
		authGroup.GET("/session", h.getSession)
		authGroup.POST("/session", h.updateSession)
		authGroup.POST("/signout", h.signOut)
	}
}

func (h *Handler) listProviders(c *gin.Context) {
	common.RespondOK(c, "", h.providers.Describe(BasePath))
}

func (h *Handler) signIn(c *gin.Context) {
	p, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		common.RespondWithError(c, common.ErrNotFound.WithDetails("Unknown sign-in provider."))
		return
	}
	if !p.Redirects() {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("This provider signs in with an ID token, not a redirect."))
		return
	}

	state, err := generateAndSetOAuthValue(c, h.cfg, h.cfg.OAuthStateCookieName)
	if err != nil {
		h.logger.Error("Failed to generate OAuth state", zap.Error(err), zap.String("provider", p.Name()))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not initiate sign-in."))
		return
	}
	var nonce string
	if p.UsesNonce() {
		if nonce, err = generateAndSetOAuthValue(c, h.cfg, h.cfg.OAuthNonceCookieName); err != nil {
			h.logger.Error("Failed to generate OAuth nonce", zap.Error(err), zap.String("provider", p.Name()))
			common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not initiate sign-in."))
			return
		}
	}
	setOAuthCookie(c, h.cfg, h.cfg.OAuthCallbackCookieName,
		safeCallbackURL(c.Query("callbackUrl"), h.cfg.DefaultLoginRedirect))

	c.Redirect(http.StatusTemporaryRedirect, p.LoginURL(state, nonce))
}

func (h *Handler) callback(c *gin.Context) {
	name := c.Param("provider")
	if name == user.ProviderCredentials {
		h.credentialsCallback(c)
		return
	}
	p, err := h.providers.Get(name)
	if err != nil {
		common.RespondWithError(c, common.ErrNotFound.WithDetails("Unknown sign-in provider."))
		return
	}
	if p.Redirects() {
		h.redirectCallback(c, p)
		return
	}
	h.tokenCallback(c, p)
}

// redirectCallback finishes a browser OAuth round trip and redirects.
func (h *Handler) redirectCallback(c *gin.Context, p Provider) {
	log := h.logger.With(zap.String("provider", p.Name()))

	if e := formOrQuery(c, "error"); e != "" {
		log.Warn("Provider returned an error", zap.String("error", e), zap.String("description", formOrQuery(c, "error_description")))
		h.failSignIn(c, p.Name(), "", "AccessDenied")
		return
	}

	storedState, err := popOAuthCookie(c, h.cfg, h.cfg.OAuthStateCookieName)
	state := formOrQuery(c, "state")
	if err != nil || state == "" || !crypto.EqualStrings(state, storedState) {
		log.Warn("OAuth state mismatch", zap.Error(err))
		h.failSignIn(c, p.Name(), "", "OAuthCallback")
		return
	}
	params := CallbackParams{
		Code:    formOrQuery(c, "code"),
		IDToken: formOrQuery(c, "id_token"),
		User:    formOrQuery(c, "user"),
	}
	if p.UsesNonce() {
		params.Nonce, _ = popOAuthCookie(c, h.cfg, h.cfg.OAuthNonceCookieName)
	}
	target, _ := popOAuthCookie(c, h.cfg, h.cfg.OAuthCallbackCookieName)
	target = safeCallbackURL(target, h.cfg.DefaultLoginRedirect)

	res, ok := h.providerSignIn(c, p, params)
	if !ok {
		h.failSignIn(c, p.Name(), correlationOf(res), "OAuthCallback")
		return
	}
	if _, err := h.issue(c, res.Token); err != nil {
		log.Error("Failed to issue session", zap.Error(err), zap.String("correlationId", res.CorrelationID))
		h.failSignIn(c, p.Name(), res.CorrelationID, "Callback")
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}

// tokenCallback signs in with a client-obtained ID token and answers JSON.
func (h *Handler) tokenCallback(c *gin.Context, p Provider) {
	params := CallbackParams{IDToken: formOrQuery(c, "id_token")}
	res, ok := h.providerSignIn(c, p, params)
	if !ok {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Sign-in failed."))
		return
	}
	expires, err := h.issue(c, res.Token)
	if err != nil {
		h.logger.Error("Failed to issue session", zap.Error(err), zap.String("correlationId", res.CorrelationID))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not create session."))
		return
	}
	common.RespondOK(c, "Signed in.", SessionResponse{User: sessionUserFromToken(res.Token), Expires: expires})
}

// providerSignIn exchanges the callback for an identity and assembles the token.
func (h *Handler) providerSignIn(c *gin.Context, p Provider, params CallbackParams) (*Result, bool) {
	ctx := c.Request.Context()
	identity, err := p.Exchange(ctx, params)
	if err != nil {
		h.logger.Warn("Provider exchange failed", zap.String("provider", p.Name()), zap.Error(err))
		h.record(c, activity.Event{Type: activity.EventSignInFailed, Provider: p.Name(), Outcome: "exchange_failed"})
		return nil, false
	}

	res, err := h.assembler.Assemble(ctx, AssembleInput{
		Token:   &session.Token{},
		User:    identity.SignInUser(),
		Account: identity.ProviderAccount(),
		Trigger: TriggerSignIn,
	})
	if err != nil || res.Outcome.Failed() {
		return res, false
	}
	h.record(c, activity.Event{
		Type:          activity.EventSignIn,
		UserID:        res.Token.Subject,
		Email:         res.Token.Email,
		Provider:      p.Name(),
		Outcome:       string(res.Outcome),
		CorrelationID: res.CorrelationID,
	})
	return res, true
}

func (h *Handler) credentialsCallback(c *gin.Context) {
	req, apiErr := common.BindJSON[CredentialsRequest](c)
	if apiErr != nil {
		common.RespondWithError(c, apiErr)
		return
	}

	u, err := h.users.Authorize(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.record(c, activity.Event{Type: activity.EventSignInFailed, Email: user.NormalizeEmail(req.Email), Provider: user.ProviderCredentials})
		common.RespondWithError(c, err)
		return
	}
	h.respondWithNewSession(c, u, TriggerSignIn, safeCallbackURL(req.CallbackURL, h.cfg.DefaultLoginRedirect))
}

func (h *Handler) register(c *gin.Context) {
	req, apiErr := common.BindJSON[user.RegisterRequest](c)
	if apiErr != nil {
		common.RespondWithError(c, apiErr)
		return
	}
	u, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	h.respondWithNewSession(c, u, TriggerSignUp, h.cfg.DefaultLoginRedirect)
}

// respondWithNewSession runs a credentials sign-in for u and sets the cookie.
func (h *Handler) respondWithNewSession(c *gin.Context, u *user.User, trigger Trigger, target string) {
	res, err := h.assembler.Assemble(c.Request.Context(), AssembleInput{
		Token:   &session.Token{},
		User:    &SignInUser{ID: u.ID, Name: u.DisplayName(), Email: u.Email, Image: u.ImageURL(), Role: u.Role},
		Trigger: trigger,
	})
	if err != nil {
		h.logger.Error("Credentials sign-in produced no identity", zap.Error(err), zap.String("userID", u.ID))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not create session."))
		return
	}
	expires, err := h.issue(c, res.Token)
	if err != nil {
		h.logger.Error("Failed to issue session", zap.Error(err), zap.String("correlationId", res.CorrelationID))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not create session."))
		return
	}

	evt := activity.EventSignIn
	if trigger == TriggerSignUp {
		evt = activity.EventSignUp
	}
	h.record(c, activity.Event{
		Type:          evt,
		UserID:        u.ID,
		Email:         u.Email,
		Provider:      user.ProviderCredentials,
		Outcome:       string(res.Outcome),
		CorrelationID: res.CorrelationID,
	})

	body := SessionResponse{User: sessionUserFromToken(res.Token), Expires: expires, URL: target}
	if trigger == TriggerSignUp {
		common.RespondCreated(c, "Account created.", body)
		return
	}
	common.RespondOK(c, "Signed in.", body)
}

// getSession refreshes the session cookie and returns the session, or an
// empty object when there is none.
func (h *Handler) getSession(c *gin.Context) {
	tok := h.currentToken(c)
	if tok == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	res, err := h.assembler.Assemble(c.Request.Context(), AssembleInput{Token: tok, Trigger: TriggerNone})
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	expires, err := h.issue(c, res.Token)
	if err != nil {
		h.logger.Error("Failed to refresh session", zap.Error(err))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not refresh session."))
		return
	}
	c.JSON(http.StatusOK, SessionResponse{User: sessionUserFromToken(res.Token), Expires: expires})
}

// updateSession applies a client profile update to the session. The role
// always comes from the store.
func (h *Handler) updateSession(c *gin.Context) {
	tok := h.currentToken(c)
	if tok == nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("A session is required."))
		return
	}

	var upd SessionUpdate
	if c.Request.ContentLength != 0 {
		var apiErr *common.APIError
		if upd, apiErr = common.BindJSON[SessionUpdate](c); apiErr != nil {
			common.RespondWithError(c, apiErr)
			return
		}
	}

	u, err := h.users.GetUserByID(c.Request.Context(), tok.Subject)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Session user no longer exists."))
			return
		}
		common.RespondWithError(c, err)
		return
	}
	upd.Role = nil
	if u.Role != tok.Role {
		role := u.Role
		upd.Role = &role
	}

	res, err := h.assembler.Assemble(c.Request.Context(), AssembleInput{Token: tok, Trigger: TriggerUpdate, Update: &upd})
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	expires, err := h.issue(c, res.Token)
	if err != nil {
		h.logger.Error("Failed to issue updated session", zap.Error(err), zap.String("correlationId", res.CorrelationID))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails("Could not update session."))
		return
	}
	// The previous token carried a different jti; retire it.
	if tok.ExpiresAt != nil {
		h.blocklist.Add(tok.ID, tok.ExpiresAt.Time)
	}

	h.record(c, activity.Event{
		Type:          activity.EventSessionUpdate,
		UserID:        res.Token.Subject,
		Outcome:       string(res.Outcome),
		CorrelationID: res.CorrelationID,
	})
	c.JSON(http.StatusOK, SessionResponse{User: sessionUserFromToken(res.Token), Expires: expires})
}

func (h *Handler) signOut(c *gin.Context) {
	if tok := h.currentToken(c); tok != nil {
		if tok.ExpiresAt != nil {
			h.blocklist.Add(tok.ID, tok.ExpiresAt.Time)
		}
		h.record(c, activity.Event{Type: activity.EventSignOut, UserID: tok.Subject, Provider: tok.Provider})
	}
	session.ClearCookie(c.Writer, h.cfg.SecureCookies)
	common.RespondOK(c, "Signed out.", gin.H{"url": h.cfg.LoginPath})
}

// currentToken returns the valid, not signed-out session token or nil.
func (h *Handler) currentToken(c *gin.Context) *session.Token {
	tok, err := h.codec.Decode(session.TokenFromRequest(c.Request))
	if err != nil || !tok.Authenticated() || h.blocklist.IsBlocklisted(tok.ID) {
		return nil
	}
	return tok
}

// issue signs t into the session cookie and returns its expiry.
func (h *Handler) issue(c *gin.Context, t *session.Token) (time.Time, error) {
	raw, expires, err := h.codec.Encode(t)
	if err != nil {
		return time.Time{}, err
	}
	session.SetCookie(c.Writer, raw, h.codec.MaxAge(), h.cfg.SecureCookies)
	return expires, nil
}

func (h *Handler) failSignIn(c *gin.Context, provider, correlationID, code string) {
	h.record(c, activity.Event{Type: activity.EventSignInFailed, Provider: provider, Outcome: code, CorrelationID: correlationID})
	c.Redirect(http.StatusSeeOther, h.cfg.LoginPath+"?"+url.Values{"error": {code}}.Encode())
}

// record sends an activity event. Failures are logged and otherwise ignored.
func (h *Handler) record(c *gin.Context, e activity.Event) {
	e.IP = c.ClientIP()
	e.UserAgent = c.Request.UserAgent()
	ctx, cancel := context.WithTimeout(c.Request.Context(), activityTimeout)
	defer cancel()
	if err := h.activity.Record(ctx, e); err != nil {
		h.logger.Debug("Activity event not recorded", zap.Error(err), zap.String("type", e.Type))
	}
}

func formOrQuery(c *gin.Context, key string) string {
	if v := c.PostForm(key); v != "" {
		return v
	}
	return c.Query(key)
}

func correlationOf(res *Result) string {
	if res == nil {
		return ""
	}
	return res.CorrelationID
}
