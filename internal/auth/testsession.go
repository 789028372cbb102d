// File: internal/auth/testsession.go
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"starterkit_backend/internal/activity"
	"starterkit_backend/internal/common"
	"starterkit_backend/internal/config"
	"starterkit_backend/internal/session"
	"starterkit_backend/internal/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TestSessionPath creates sessions for end-to-end tests.
const TestSessionPath = "/api/test/auth/create-session"

// EmulatorProbe reports whether the auth emulator is reachable.
type EmulatorProbe interface {
	Detect(ctx context.Context) bool
}

// TestUserStore is the slice of the user store the test endpoint needs.
type TestUserStore interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	Create(ctx context.Context, u *user.User) error
	UpdateRole(ctx context.Context, id, role string) error
}

// CreateTestSessionRequest is the body of the test session endpoint.
type CreateTestSessionRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
	Name  string `json:"name,omitempty" binding:"omitempty,max=255"`
	Image string `json:"image,omitempty" binding:"omitempty,url,max=2048"`
	Role  string `json:"role,omitempty" binding:"omitempty,oneof=USER ADMIN"`
}

// TestSessionResponse is returned on success.
type TestSessionResponse struct {
	User         *AuthUser `json:"user"`
	SessionToken string    `json:"sessionToken"`
	Expires      time.Time `json:"expires"`
}

// TestSessionHandler serves the test-only session endpoint.
type TestSessionHandler struct {
	enabled   bool
	secure    bool
	probe     EmulatorProbe
	store     TestUserStore
	assembler *Assembler
	codec     *session.Codec
	activity  activity.Recorder
	logger    *zap.Logger
}

// NewTestSessionHandler creates the handler. It answers 404 unless
// ENABLE_TEST_ENDPOINTS is set.
func NewTestSessionHandler(
	cfg *config.Config,
	probe EmulatorProbe,
	store TestUserStore,
	assembler *Assembler,
	codec *session.Codec,
	recorder activity.Recorder,
	logger *zap.Logger,
) *TestSessionHandler {
	return &TestSessionHandler{
		enabled:   cfg.EnableTestEndpoints,
		secure:    cfg.SecureCookies,
		probe:     probe,
		store:     store,
		assembler: assembler,
		codec:     codec,
		activity:  recorder,
		logger:    logger.Named("TestSessionHandler"),
	}
}

// RegisterRoutes mounts the endpoint.
func (h *TestSessionHandler) RegisterRoutes(router gin.IRouter) {
	router.POST(TestSessionPath, h.createSession)
}

func (h *TestSessionHandler) createSession(c *gin.Context) {
	if !h.enabled {
		common.RespondWithError(c, common.ErrNotFound)
		return
	}
	ctx := c.Request.Context()
	if h.probe == nil || !h.probe.Detect(ctx) {
		h.logger.Warn("Test session requested without a reachable auth emulator")
		common.RespondWithError(c, common.ErrForbidden)
		return
	}

	req, apiErr := common.BindJSON[CreateTestSessionRequest](c)
	if apiErr != nil {
		common.RespondWithError(c, apiErr)
		return
	}

	u, err := h.upsertUser(ctx, req)
	if err != nil {
		h.logger.Error("Failed to persist test user", zap.Error(err), zap.String("email", req.Email))
		common.RespondWithError(c, common.ErrInternalServer.WithDetails(err.Error()))
		return
	}

	res, err := h.assembler.Assemble(ctx, AssembleInput{
		Token:   &session.Token{},
		User:    &SignInUser{ID: u.ID, Name: u.DisplayName(), Email: u.Email, Image: u.ImageURL(), Role: u.Role},
		Trigger: TriggerSignIn,
	})
	if err != nil {
		common.RespondWithError(c, common.ErrInternalServer.WithDetails(err.Error()))
		return
	}
	raw, expires, err := h.codec.Encode(res.Token)
	if err != nil {
		common.RespondWithError(c, common.ErrInternalServer.WithDetails(err.Error()))
		return
	}
	session.SetCookie(c.Writer, raw, h.codec.MaxAge(), h.secure)

	if err := h.activity.Record(ctx, activity.Event{
		Type:          activity.EventTestSession,
		UserID:        u.ID,
		Email:         u.Email,
		Outcome:       string(res.Outcome),
		CorrelationID: res.CorrelationID,
	}); err != nil {
		h.logger.Debug("Activity event not recorded", zap.Error(err))
	}

	h.logger.Info("Test session created", zap.String("userID", u.ID), zap.String("correlationId", res.CorrelationID))
	common.RespondOK(c, "Test session created.", TestSessionResponse{
		User:         sessionUserFromToken(res.Token),
		SessionToken: raw,
		Expires:      expires,
	})
}

func (h *TestSessionHandler) upsertUser(ctx context.Context, req CreateTestSessionRequest) (*user.User, error) {
	role := req.Role
	if role == "" {
		role = common.RoleUser
	}

	u, err := h.store.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		if req.Role != "" && u.Role != role {
			if err := h.store.UpdateRole(ctx, u.ID, role); err != nil {
				return nil, err
			}
			u.Role = role
		}
		return u, nil
	case !errors.Is(err, common.ErrNotFound):
		return nil, err
	}

	u = &user.User{Email: req.Email, Role: role}
	if name := strings.TrimSpace(req.Name); name != "" {
		u.Name = &name
	}
	if req.Image != "" {
		img := req.Image
		u.Image = &img
	}
	if handle, err := user.GenerateHandle(u); err == nil {
		u.Handle = &handle
	}
	if err := h.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
