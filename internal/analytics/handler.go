// File: internal/analytics/handler.go
package analytics

import (
	"starterkit_backend/internal/activity"
	"starterkit_backend/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the admin dashboard endpoints.
type Handler struct {
	service  Service
	activity activity.Recorder
	logger   *zap.Logger
}

// NewHandler creates a new analytics handler.
func NewHandler(service Service, recorder activity.Recorder, logger *zap.Logger) *Handler {
	return &Handler{
		service:  service,
		activity: recorder,
		logger:   logger.Named("AnalyticsHandler"),
	}
}

// RegisterRoutes mounts the admin routes. Every route requires a session with the ADMIN role.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW, adminMW gin.HandlerFunc) {
	admin := router.Group("/admin", authMW, adminMW)
	{
		admin.GET("/stats/signups", h.signups)
		admin.GET("/activity-summary", h.activitySummary)
		admin.POST("/sessions/extend", h.extendSessions)
		admin.GET("/activity", h.searchActivity)
	}
}

func (h *Handler) signups(c *gin.Context) {
	q, apiErr := common.BindQuery[SignupStatsQuery](c)
	if apiErr != nil {
		common.RespondWithError(c, apiErr)
		return
	}
	buckets, err := h.service.SignupsByDay(c.Request.Context(), q.Days)
	if err != nil {
		h.logger.Error("Failed to load sign-up stats", zap.Error(err))
		common.RespondWithError(c, err)
		return
	}
	if buckets == nil {
		buckets = []SignupBucket{}
	}
	common.RespondOK(c, "Sign-up stats retrieved successfully.", buckets)
}

func (h *Handler) activitySummary(c *gin.Context) {
	q, apiErr := common.BindQuery[ActivitySummaryQuery](c)
	if apiErr != nil {
		common.RespondWithError(c, apiErr)
		return
	}
	rows, err := h.service.ActivitySummary(c.Request.Context(), q.Limit)
	if err != nil {
		h.logger.Error("Failed to load activity summary", zap.Error(err))
		common.RespondWithError(c, err)
		return
	}
	if rows == nil {
		rows = []UserActivity{}
	}
	common.RespondOK(c, "Activity summary retrieved successfully.", rows)
}

func (h *Handler) extendSessions(c *gin.Context) {
	req, apiErr := common.BindJSON[ExtendSessionsRequest](c)
	if apiErr != nil {
		common.RespondWithError(c, apiErr)
		return
	}
	n, err := h.service.ExtendSessions(c.Request.Context(), req)
	if err != nil {
		h.logger.Error("Failed to extend sessions", zap.Error(err))
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Sessions extended.", ExtendSessionsResponse{Extended: n})
}

func (h *Handler) searchActivity(c *gin.Context) {
	q, apiErr := common.BindQuery[activity.Query](c)
	if apiErr != nil {
		common.RespondWithError(c, apiErr)
		return
	}
	events, total, err := h.activity.Search(c.Request.Context(), q)
	if err != nil {
		h.logger.Error("Activity search failed", zap.Error(err))
		common.RespondWithError(c, common.ErrServiceUnavailable.WithDetails("Activity search is unavailable."))
		return
	}
	common.RespondOK(c, "Activity retrieved successfully.", common.NewPageResponse(events, total, q.PaginationQuery))
}
