// File: internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"starterkit_backend/internal/analytics"
	"starterkit_backend/internal/auth"
	"starterkit_backend/internal/common"
	"starterkit_backend/internal/config"
	"starterkit_backend/internal/filestorage"
	"starterkit_backend/internal/jobs"
	"starterkit_backend/internal/middleware"
	esplatform "starterkit_backend/internal/platform/elasticsearch"
	"starterkit_backend/internal/session"
	"starterkit_backend/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	esClient   *esplatform.ESClientWrapper
	cleanupJob *jobs.SessionCleanupJob
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	codec *session.Codec,
	blocklist *auth.Blocklist,
	authHandler *auth.Handler,
	testSessionHandler *auth.TestSessionHandler,
	userHandler *user.Handler,
	analyticsHandler *analytics.Handler,
	cleanupJob *jobs.SessionCleanupJob,
	esClient *esplatform.ESClientWrapper,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg)))
	router.Use(middleware.SessionGate(middleware.GateConfigFromConfig(cfg), codec, blocklist, logger))

	authMW := middleware.RequireSession(codec, blocklist, logger)
	adminRoleMW := middleware.RoleAuthMiddleware(common.RoleAdmin)

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Starter kit API is healthy!"})
	})
	if cfg.UploadsPath != "" {
		router.Static(filestorage.PublicPrefix, cfg.UploadsPath)
	}

	authHandler.RegisterRoutes(router)
	testSessionHandler.RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	userHandler.RegisterRoutes(v1, authMW, adminRoleMW)
	analyticsHandler.RegisterRoutes(v1, authMW, adminRoleMW)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		cfg:        cfg,
		logger:     logger,
		esClient:   esClient,
		cleanupJob: cleanupJob,
	}, nil
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.CORSOrigins
		c.AllowCredentials = true
	}
	c.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", common.AuthorizationHeader, middleware.RequestIDHeader}
	c.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	return c
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start prepares the activity index, starts background jobs and serves HTTP
// until Shutdown is called.
func (s *Server) Start() error {
	if s.esClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := esplatform.EnsureActivityIndex(ctx, s.esClient, s.cfg.ActivityIndexName, s.logger); err != nil {
			s.logger.Error("Failed to create activity index; activity events may be dropped", zap.Error(err))
		}
		cancel()
	} else {
		s.logger.Info("Elasticsearch client not initialized, skipping activity index creation.")
	}

	if s.cleanupJob != nil {
		if err := s.cleanupJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start session cleanup job", zap.Error(err))
		}
	} else {
		s.logger.Info("Session cleanup job is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped")
	return nil
}

// Shutdown stops the jobs and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.cleanupJob != nil {
		s.cleanupJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
