// File: internal/cache/service.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"starterkit_backend/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds the tunables of the cache service.
type Config struct {
	KeyPrefix            string
	CompressionThreshold int
	DefaultTTL           time.Duration
}

// Options controls a single write. A TTL <= 0 stores the key without expiry.
type Options struct {
	TTL      time.Duration
	Compress bool
}

// Entry is one item of a SetMany batch.
type Entry struct {
	Key     string
	Value   interface{}
	Options Options
}

// Service is a fail-open JSON cache on top of Redis. With a nil client every
// read is a miss and every write reports false; nothing is ever returned as an
// error except a corrupt stored payload.
type Service struct {
	client *redis.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a cache service. client may be nil.
func New(client *redis.Client, cfg Config, logger *zap.Logger) *Service {
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = config.DefaultCacheCompressionThreshold
	}
	return &Service{client: client, cfg: cfg, logger: logger.Named("Cache")}
}

// NewFromConfig creates the cache service from application configuration.
func NewFromConfig(appCfg *config.Config, client *redis.Client, logger *zap.Logger) *Service {
	return New(client, Config{
		KeyPrefix:            appCfg.CacheKeyPrefix,
		CompressionThreshold: appCfg.CacheCompressionThreshold,
		DefaultTTL:           appCfg.CacheDefaultTTL,
	}, logger)
}

// Available reports whether a backing connection was configured.
func (s *Service) Available() bool {
	return s != nil && s.client != nil
}

// DefaultTTL is the configured TTL for callers without a specific requirement.
func (s *Service) DefaultTTL() time.Duration {
	return s.cfg.DefaultTTL
}

// Close releases the underlying connection.
func (s *Service) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}

func (s *Service) key(k string) string {
	if s.cfg.KeyPrefix == "" {
		return k
	}
	return s.cfg.KeyPrefix + ":" + k
}

// Get loads key into dest. It reports a hit only when a value was found and
// decoded. A *DeserializationError is returned for corrupt payloads.
func (s *Service) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Available() {
		return false, nil
	}
	stored, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug("Cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		}
		return false, nil
	}
	if err := decodeInto(key, stored, dest); err != nil {
		s.logger.Error("Corrupt cache payload", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// GetValue is a typed wrapper around Service.Get.
func GetValue[T any](ctx context.Context, s *Service, key string) (T, bool, error) {
	var v T
	hit, err := s.Get(ctx, key, &v)
	return v, hit, err
}

// Set stores value under key. It returns false if the value was not written.
func (s *Service) Set(ctx context.Context, key string, value interface{}, opts Options) bool {
	if !s.Available() {
		return false
	}
	stored, err := encodeValue(value, opts.Compress, s.cfg.CompressionThreshold)
	if err != nil {
		s.logger.Error("Cache value not serializable", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := s.client.Set(ctx, s.key(key), stored, expiration(opts.TTL)).Err(); err != nil {
		s.logger.Debug("Cache set failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Delete removes key. It returns true if the command succeeded, whether or not the key existed.
func (s *Service) Delete(ctx context.Context, key string) bool {
	if !s.Available() {
		return false
	}
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		s.logger.Debug("Cache delete failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Exists reports whether key is present.
func (s *Service) Exists(ctx context.Context, key string) bool {
	if !s.Available() {
		return false
	}
	n, err := s.client.Exists(ctx, s.key(key)).Result()
	if err != nil {
		s.logger.Debug("Cache exists failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

// GetMany fetches keys in one pipeline and returns the JSON of every hit.
// Corrupt entries are left out of the map and reported through the joined error.
func (s *Service) GetMany(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if !s.Available() || len(keys) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Get(ctx, s.key(k))
	}
	// Exec reports the first failing command, which includes plain misses;
	// each command is inspected instead unless the whole round trip failed.
	_, execErr := pipe.Exec(ctx)
	if batchFailed(s, "get", execErr, cmds) {
		return out, nil
	}

	var errs []error
	for i, cmd := range cmds {
		stored, err := cmd.Result()
		if err != nil {
			continue
		}
		payload, err := decodePayload(stored)
		if err == nil && !json.Valid(payload) {
			err = errors.New("invalid JSON")
		}
		if err != nil {
			errs = append(errs, &DeserializationError{Key: keys[i], Err: err})
			continue
		}
		out[keys[i]] = payload
	}
	if len(errs) > 0 {
		s.logger.Error("Corrupt cache payloads in batch read", zap.Int("count", len(errs)))
	}
	return out, errors.Join(errs...)
}

// SetMany writes entries in one pipeline and returns how many were stored.
func (s *Service) SetMany(ctx context.Context, entries []Entry) int {
	if !s.Available() || len(entries) == 0 {
		return 0
	}
	pipe := s.client.Pipeline()
	var cmds []*redis.StatusCmd
	for _, e := range entries {
		stored, err := encodeValue(e.Value, e.Options.Compress, s.cfg.CompressionThreshold)
		if err != nil {
			s.logger.Error("Cache value not serializable", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		cmds = append(cmds, pipe.Set(ctx, s.key(e.Key), stored, expiration(e.Options.TTL)))
	}
	if len(cmds) == 0 {
		return 0
	}
	_, execErr := pipe.Exec(ctx)
	if batchFailed(s, "set", execErr, cmds) {
		return 0
	}

	stored := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			stored++
		}
	}
	return stored
}

// DeleteMany removes keys in one pipeline and returns how many deletes succeeded.
func (s *Service) DeleteMany(ctx context.Context, keys []string) int {
	if !s.Available() || len(keys) == 0 {
		return 0
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Del(ctx, s.key(k))
	}
	_, execErr := pipe.Exec(ctx)
	if batchFailed(s, "delete", execErr, cmds) {
		return 0
	}

	ok := 0
	for _, cmd := range cmds {
		if cmd.Err() == nil {
			ok++
		}
	}
	return ok
}

// Clear deletes every key under the service prefix matching pattern
// ("*" when empty) and returns the number of keys removed.
func (s *Service) Clear(ctx context.Context, pattern string) int {
	if !s.Available() {
		return 0
	}
	if pattern == "" {
		pattern = "*"
	}
	match := s.key(pattern)

	removed := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, 500).Result()
		if err != nil {
			s.logger.Debug("Cache scan failed", zap.String("match", match), zap.Error(err))
			return removed
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				s.logger.Debug("Cache clear delete failed", zap.Error(err))
				return removed
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed
		}
	}
}

// batchFailed reports whether a pipeline failed as a whole. When the
// connection is lost go-redis returns the error from Exec and leaves the
// queued commands without one, so their results must not be read.
func batchFailed[C redis.Cmder](s *Service, op string, execErr error, cmds []C) bool {
	if execErr == nil || errors.Is(execErr, redis.Nil) {
		return false
	}
	for _, cmd := range cmds {
		if cmd.Err() != nil {
			return false
		}
	}
	s.logger.Debug("Cache batch failed", zap.String("op", op), zap.Int("keys", len(cmds)), zap.Error(execErr))
	return true
}

// expiration maps a TTL to the redis expiration argument. Zero means no
// expiry; negative values would mean KEEPTTL to go-redis and are normalized.
func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}
