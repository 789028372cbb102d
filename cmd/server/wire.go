// File: cmd/server/wire.go
//go:build wireinject
// +build wireinject

package main

import (
	"starterkit_backend/internal/activity"
	"starterkit_backend/internal/analytics"
	"starterkit_backend/internal/app"
	"starterkit_backend/internal/auth"
	"starterkit_backend/internal/config"
	"starterkit_backend/internal/filestorage"
	"starterkit_backend/internal/firebase"
	"starterkit_backend/internal/jobs"
	esplatform "starterkit_backend/internal/platform/elasticsearch"
	platformredis "starterkit_backend/internal/platform/redis"
	"starterkit_backend/internal/session"
	"starterkit_backend/internal/user"

	"github.com/google/wire"
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		// Platform Layer
		provideLogger,
		provideDB,
		platformredis.NewClient,
		provideCache,
		esplatform.NewClient,
		filestorage.NewFromConfig,
		firebase.NewService,

		// Users
		user.NewGORMRepository,
		user.NewService,
		user.NewHandler,
		wire.Bind(new(user.AvatarStore), new(*filestorage.FileStorageService)),
		wire.Bind(new(user.Service), new(*user.ServiceImplementation)),

		// Sessions and sign-in
		session.NewCodec,
		provideBlocklist,
		provideIDTokenVerifier,
		activity.NewRecorder,
		auth.NewReconciler,
		auth.NewAssembler,
		auth.NewProvidersFromConfig,
		auth.NewEmulatorDetector,
		auth.NewHandler,
		auth.NewTestSessionHandler,
		wire.Bind(new(auth.AccountStore), new(user.Repository)),
		wire.Bind(new(auth.TestUserStore), new(user.Repository)),
		wire.Bind(new(auth.SignInReconciler), new(*auth.Reconciler)),
		wire.Bind(new(auth.UserCacheInvalidator), new(*user.ServiceImplementation)),
		wire.Bind(new(auth.UserService), new(*user.ServiceImplementation)),
		wire.Bind(new(auth.EmulatorProbe), new(*auth.EmulatorDetector)),

		// Admin dashboard
		analytics.NewGORMRepository,
		analytics.NewService,
		analytics.NewHandler,
		wire.Bind(new(analytics.Service), new(*analytics.ServiceImplementation)),

		// Jobs
		jobs.NewSessionCleanupJob,
		wire.Bind(new(jobs.SessionPurger), new(user.Repository)),

		// Application Layer
		app.NewServer,
	)
	return nil, nil, nil
}
