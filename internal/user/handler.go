// File: internal/user/handler.go
package user

import (
	"starterkit_backend/internal/common"
	"starterkit_backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for user handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.Named("UserHandler"),
	}
}

// RegisterRoutes sets up the routes for user operations.
// Every route requires a session; role changes additionally require ADMIN.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	userGroup := router.Group("/users", authMW)
	{
		userGroup.GET("/me", h.getMe)
		userGroup.PATCH("/me", h.updateMe)
		userGroup.POST("/me/avatar", h.uploadAvatar)
		userGroup.GET("/:id", h.getUserByID)
		userGroup.PUT("/:id/role", adminMW, h.updateRole)
	}
}

func (h *Handler) getMe(c *gin.Context) {
	userID := middleware.GetUserIDFromContext(c)
	if userID == "" {
		h.logger.Error("User ID not found in context for /me", zap.String("path", c.Request.URL.Path))
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}
	usr, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User profile retrieved successfully.", ToUserResponse(usr))
}

func (h *Handler) updateMe(c *gin.Context) {
	req, apiErr := common.BindJSON[UpdateProfileRequest](c)
	if apiErr != nil {
		h.logger.Debug("Profile update: invalid body", zap.Any("details", apiErr.Details))
		common.RespondWithError(c, apiErr)
		return
	}
	usr, err := h.service.UpdateProfile(c.Request.Context(), middleware.GetUserIDFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile updated successfully.", ToUserResponse(usr))
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Multipart field 'avatar' is required."))
		return
	}
	usr, err := h.service.SetAvatar(c.Request.Context(), middleware.GetUserIDFromContext(c), fileHeader)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Avatar updated successfully.", ToUserResponse(usr))
}

func (h *Handler) getUserByID(c *gin.Context) {
	targetID := c.Param("id")
	requestingUserID := middleware.GetUserIDFromContext(c)
	if middleware.GetUserRoleFromContext(c) != common.RoleAdmin && requestingUserID != targetID {
		h.logger.Warn("User attempting to fetch another user's profile without admin rights",
			zap.String("requestingUserID", requestingUserID),
			zap.String("targetUserID", targetID))
		common.RespondWithError(c, common.ErrForbidden.WithDetails("You are not authorized to view this profile."))
		return
	}
	usr, err := h.service.GetUserByID(c.Request.Context(), targetID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User retrieved successfully.", ToUserResponse(usr))
}

func (h *Handler) updateRole(c *gin.Context) {
	req, apiErr := common.BindJSON[UpdateRoleRequest](c)
	if apiErr != nil {
		common.RespondWithError(c, apiErr)
		return
	}
	usr, err := h.service.SetRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User role updated successfully.", ToUserResponse(usr))
}
