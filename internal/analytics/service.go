// File: internal/analytics/service.go
package analytics

import (
	"context"
	"fmt"
	"time"

	"starterkit_backend/internal/cache"

	"go.uber.org/zap"
)

const statsCacheTTL = 5 * time.Minute

// Service serves dashboard data, caching reads.
type Service interface {
	SignupsByDay(ctx context.Context, days int) ([]SignupBucket, error)
	ActivitySummary(ctx context.Context, limit int) ([]UserActivity, error)
	ExtendSessions(ctx context.Context, req ExtendSessionsRequest) (int64, error)
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo   Repository
	cache  *cache.Service
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new analytics service.
func NewService(repo Repository, cacheService *cache.Service, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:   repo,
		cache:  cacheService,
		logger: logger.Named("AnalyticsService"),
		now:    time.Now,
	}
}

// SignupsByDay returns daily sign-up counts for the last days days.
func (s *ServiceImplementation) SignupsByDay(ctx context.Context, days int) ([]SignupBucket, error) {
	if days <= 0 {
		days = DefaultSignupDays
	}
	if days > MaxSignupDays {
		days = MaxSignupDays
	}
	since := s.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	key := fmt.Sprintf("analytics:signups:%d:%s", days, since.Format("2006-01-02"))

	return cached(ctx, s, key, func() ([]SignupBucket, error) {
		return s.repo.SignupsByDay(ctx, since)
	})
}

// ActivitySummary returns the per-user activity summary.
func (s *ServiceImplementation) ActivitySummary(ctx context.Context, limit int) ([]UserActivity, error) {
	if limit <= 0 || limit > MaxActivityRows {
		limit = MaxActivityRows
	}
	return cached(ctx, s, fmt.Sprintf("analytics:activity:%d", limit), func() ([]UserActivity, error) {
		return s.repo.ActivitySummary(ctx, limit)
	})
}

// ExtendSessions extends live sessions and drops the cached summaries.
func (s *ServiceImplementation) ExtendSessions(ctx context.Context, req ExtendSessionsRequest) (int64, error) {
	n, err := s.repo.ExtendSessions(ctx, req.SessionTokens, time.Duration(req.Days)*24*time.Hour)
	if err != nil {
		return 0, err
	}
	if cleared := s.cache.Clear(ctx, "analytics:activity:*"); cleared > 0 {
		s.logger.Debug("Dropped cached activity summaries", zap.Int("keys", cleared))
	}
	s.logger.Info("Extended sessions", zap.Int64("extended", n), zap.Int("requested", len(req.SessionTokens)))
	return n, nil
}

// cached serves key from the cache or loads and stores it compressed.
func cached[T any](ctx context.Context, s *ServiceImplementation, key string, load func() (T, error)) (T, error) {
	v, hit, err := cache.GetValue[T](ctx, s.cache, key)
	if err != nil {
		s.logger.Warn("Ignoring unreadable cached value", zap.String("key", key), zap.Error(err))
	}
	if hit && err == nil {
		return v, nil
	}

	v, err = load()
	if err != nil {
		return v, err
	}
	s.cache.Set(ctx, key, v, cache.Options{TTL: statsCacheTTL, Compress: true})
	return v, nil
}
