// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log" // Standard log for critical startup/shutdown messages before/after zap is active
	"os"
	"os/signal"
	"syscall"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/config"
	"starterkit_backend/internal/platform/database"
	"starterkit_backend/internal/platform/logger"
	"starterkit_backend/internal/user"

	"go.uber.org/zap"
)

func main() {
	migrateCmd := flag.NewFlagSet("migrate", flag.ExitOnError)

	setRoleCmd := flag.NewFlagSet("set-role", flag.ExitOnError)
	email := setRoleCmd.String("email", "", "Email of the user to update")
	role := setRoleCmd.String("role", common.RoleAdmin, "Role to assign (USER or ADMIN)")

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			_ = migrateCmd.Parse(os.Args[2:])
			runCommand("migrate", func(ctx context.Context, repo user.Repository, l *zap.Logger) error {
				return nil // migrations run while opening the database
			}, true)
			return
		case "set-role":
			_ = setRoleCmd.Parse(os.Args[2:])
			runCommand("set-role", func(ctx context.Context, repo user.Repository, l *zap.Logger) error {
				return setRole(ctx, repo, l, *email, *role)
			}, false)
			return
		}
	}

	// Default: Start server
	startServer()
}

// runCommand opens the database, runs fn and exits non-zero on failure.
func runCommand(name string, fn func(context.Context, user.Repository, *zap.Logger) error, migrate bool) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration for %s: %v", name, err)
	}
	appLogger, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger for %s: %v", name, err)
	}
	defer func() { _ = appLogger.Sync() }()

	db, err := database.NewGORM(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", zap.String("command", name), zap.Error(err))
	}
	defer database.CloseGORMDB(db, appLogger)

	if migrate || cfg.DBAutoMigrate {
		if err := database.Migrate(db, appLogger, user.Models()...); err != nil {
			appLogger.Fatal("Migration failed", zap.Error(err))
		}
	}

	if err := fn(context.Background(), user.NewGORMRepository(db), appLogger); err != nil {
		appLogger.Error("Command failed", zap.String("command", name), zap.Error(err))
		os.Exit(1)
	}
	appLogger.Info("Command completed successfully.", zap.String("command", name))
}

func setRole(ctx context.Context, repo user.Repository, l *zap.Logger, email, role string) error {
	if email == "" {
		return fmt.Errorf("-email is required")
	}
	if role != common.RoleUser && role != common.RoleAdmin {
		return fmt.Errorf("invalid role %q: must be USER or ADMIN", role)
	}
	u, err := repo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user %s: %w", email, err)
	}
	if err := repo.UpdateRole(ctx, u.ID, role); err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	l.Info("Role updated", zap.String("userID", u.ID), zap.String("role", role))
	return nil
}

func startServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	server, cleanup, err := initializeServer(cfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer cleanup()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: Server failed to start or crashed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("INFO: Received signal '%s'. Shutting down server...", sig)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ServerTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: Server forced to shutdown due to error: %v", err)
	} else {
		log.Println("INFO: Server shutdown complete.")
	}
	log.Println("INFO: Application exiting.")
}
