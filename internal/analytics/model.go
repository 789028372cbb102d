// File: internal/analytics/model.go
package analytics

import "time"

const (
	DefaultSignupDays = 30
	MaxSignupDays     = 365
	// MaxActivityRows caps the activity summary.
	MaxActivityRows = 100
)

// SignupBucket is the number of users created on one UTC day.
type SignupBucket struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// UserActivity joins a user with its linked accounts and live sessions.
type UserActivity struct {
	UserID         string     `json:"userId"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	Providers      string     `json:"providers"`
	ActiveSessions int64      `json:"activeSessions"`
	LastExpiry     *time.Time `json:"lastSessionExpiry,omitempty"`
}

// SignupStatsQuery is the query string of GET /admin/stats/signups.
type SignupStatsQuery struct {
	Days int `form:"days" binding:"omitempty,gte=1,lte=365"`
}

// ActivitySummaryQuery is the query string of GET /admin/activity-summary.
type ActivitySummaryQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=100"`
}

// ExtendSessionsRequest is the body of POST /admin/sessions/extend.
type ExtendSessionsRequest struct {
	SessionTokens []string `json:"sessionTokens" binding:"required,min=1,max=500,dive,required"`
	Days          int      `json:"days" binding:"required,gte=1,lte=90"`
}

// ExtendSessionsResponse reports how many sessions were extended.
type ExtendSessionsResponse struct {
	Extended int64 `json:"extended"`
}
