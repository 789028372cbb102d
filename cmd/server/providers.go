// File: cmd/server/providers.go
package main

import (
	"log"

	"starterkit_backend/internal/auth"
	"starterkit_backend/internal/cache"
	"starterkit_backend/internal/config"
	"starterkit_backend/internal/firebase"
	"starterkit_backend/internal/platform/database"
	"starterkit_backend/internal/platform/logger"
	"starterkit_backend/internal/user"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	l, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return l, func() {
		if err := l.Sync(); err != nil {
			log.Printf("ERROR: Failed to sync logger during cleanup: %v", err)
		}
	}, nil
}

// provideDB opens the database and, when DB_AUTO_MIGRATE is set, migrates it.
func provideDB(cfg *config.Config, l *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg, l)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { database.CloseGORMDB(db, l) }
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db, l, user.Models()...); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return db, cleanup, nil
}

// provideCache owns the Redis client; closing the cache closes it.
func provideCache(cfg *config.Config, client *goredis.Client, l *zap.Logger) (*cache.Service, func()) {
	svc := cache.NewFromConfig(cfg, client, l)
	return svc, func() {
		if err := svc.Close(); err != nil {
			l.Warn("Failed to close cache", zap.Error(err))
		}
	}
}

// provideIDTokenVerifier keeps a disabled Firebase service out of the
// provider registry. A nil *firebase.Service must not become a non-nil interface.
func provideIDTokenVerifier(svc *firebase.Service) auth.IDTokenVerifier {
	if svc == nil {
		return nil
	}
	return svc
}

func provideBlocklist() *auth.Blocklist {
	return auth.NewBlocklist(auth.BlocklistConfig{})
}
