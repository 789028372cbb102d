// File: internal/auth/blocklist.go
package auth

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Blocklist remembers the jti of signed-out session tokens until they would
// have expired anyway.
type Blocklist struct {
	cache *cache.Cache
}

// BlocklistConfig holds the configuration for the Blocklist.
type BlocklistConfig struct {
	CleanupInterval time.Duration
}

// NewBlocklist creates an in-memory blocklist.
func NewBlocklist(cfg BlocklistConfig) *Blocklist {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	return &Blocklist{cache: cache.New(cache.NoExpiration, cfg.CleanupInterval)}
}

// Add blocks jti until expiresAt. Expired tokens are not stored.
func (b *Blocklist) Add(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	b.cache.Set(jti, struct{}{}, ttl)
}

// IsBlocklisted reports whether jti has been signed out.
func (b *Blocklist) IsBlocklisted(jti string) bool {
	if jti == "" {
		return false
	}
	_, found := b.cache.Get(jti)
	return found
}
