// File: internal/analytics/repository.go
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Repository runs the dashboard's read and maintenance queries. The SQL is
// PostgreSQL specific.
type Repository interface {
	SignupsByDay(ctx context.Context, since time.Time) ([]SignupBucket, error)
	ActivitySummary(ctx context.Context, limit int) ([]UserActivity, error)
	ExtendSessions(ctx context.Context, tokens []string, by time.Duration) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM analytics repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

const signupsByDaySQL = `
SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*) AS count
FROM users
WHERE created_at >= ?
GROUP BY 1
ORDER BY 1`

// SignupsByDay counts new users per day since the given time. Days without
// sign-ups are absent.
func (r *gormRepository) SignupsByDay(ctx context.Context, since time.Time) ([]SignupBucket, error) {
	var rows []SignupBucket
	if err := r.db.WithContext(ctx).Raw(signupsByDaySQL, since).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count sign-ups by day: %w", err)
	}
	return rows, nil
}

const activitySummarySQL = `
SELECT u.id AS user_id,
       u.email,
       u.role,
       COALESCE(string_agg(DISTINCT a.provider, ',' ORDER BY a.provider), '') AS providers,
       COUNT(DISTINCT s.id) FILTER (WHERE s.expires > NOW()) AS active_sessions,
       MAX(s.expires) AS last_expiry
FROM users u
LEFT JOIN accounts a ON a.user_id = u.id
LEFT JOIN sessions s ON s.user_id = u.id
GROUP BY u.id, u.email, u.role
ORDER BY active_sessions DESC, u.created_at DESC
LIMIT ?`

// ActivitySummary lists users with their providers and session counts.
func (r *gormRepository) ActivitySummary(ctx context.Context, limit int) ([]UserActivity, error) {
	var rows []UserActivity
	if err := r.db.WithContext(ctx).Raw(activitySummarySQL, limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load activity summary: %w", err)
	}
	return rows, nil
}

const extendSessionsSQL = `
UPDATE sessions
SET expires = expires + make_interval(secs => ?), updated_at = NOW()
WHERE session_token = ANY(?) AND expires > NOW()`

// ExtendSessions pushes the expiry of the given live sessions out by the
// given duration and returns how many rows changed.
func (r *gormRepository) ExtendSessions(ctx context.Context, tokens []string, by time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).Exec(extendSessionsSQL, by.Seconds(), pq.Array(tokens))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to extend sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
