// File: internal/platform/redis/client.go
package redis

import (
	"context"
	"time"

	"starterkit_backend/internal/config"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient builds a Redis client from REDIS_URL and pings it.
// It returns nil when no URL is configured or the server cannot be reached;
// callers treat a nil client as "caching disabled".
func NewClient(cfg *config.Config, logger *zap.Logger) *goredis.Client {
	log := logger.Named("Redis")
	if cfg.RedisURL == "" {
		log.Info("REDIS_URL not set, caching disabled")
		return nil
	}

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn("Invalid REDIS_URL, caching disabled", zap.Error(err))
		return nil
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second

	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable, caching disabled", zap.String("addr", opts.Addr), zap.Error(err))
		_ = client.Close()
		return nil
	}

	log.Info("Connected to Redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client
}
