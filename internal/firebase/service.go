// File: internal/firebase/service.go
package firebase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"starterkit_backend/internal/config"
)

// emulatorProjectID is used against the auth emulator when no project is configured.
const emulatorProjectID = "demo-starterkit"

// Service verifies Firebase ID tokens.
type Service struct {
	authClient *auth.Client
	emulator   bool
	logger     *zap.Logger
}

// NewService initializes the Firebase Admin SDK. It returns (nil, nil) when
// neither a service account nor the auth emulator is configured.
func NewService(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	log := logger.Named("Firebase")
	ctx := context.Background()

	var (
		opts     []option.ClientOption
		conf     *firebase.Config
		emulator bool
	)
	switch {
	case cfg.UseAuthEmulator && cfg.FirebaseAuthEmulatorHost != "":
		// The Admin SDK only reads the emulator address from the environment.
		if os.Getenv("FIREBASE_AUTH_EMULATOR_HOST") != cfg.FirebaseAuthEmulatorHost {
			if err := os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.FirebaseAuthEmulatorHost); err != nil {
				return nil, fmt.Errorf("set emulator host: %w", err)
			}
		}
		projectID := cfg.FirebaseProjectID
		if projectID == "" {
			projectID = emulatorProjectID
		}
		conf = &firebase.Config{ProjectID: projectID}
		opts = append(opts, option.WithoutAuthentication())
		emulator = true
	case cfg.FirebaseServiceAccountKeyPath != "":
		opts = append(opts, option.WithCredentialsFile(filepath.Clean(cfg.FirebaseServiceAccountKeyPath)))
		if cfg.FirebaseProjectID != "" {
			conf = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
		}
	default:
		log.Info("Firebase not configured; Firebase sign-in disabled")
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		log.Error("Failed to initialize Firebase Admin SDK app", zap.Error(err))
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		log.Error("Failed to get Firebase Auth client", zap.Error(err))
		return nil, fmt.Errorf("error getting Firebase Auth client: %w", err)
	}

	log.Info("Firebase Admin SDK initialized", zap.Bool("emulator", emulator))
	return &Service{authClient: authClient, emulator: emulator, logger: log}, nil
}

// UsesEmulator reports whether the service talks to the auth emulator.
func (s *Service) UsesEmulator() bool {
	return s.emulator
}

// VerifyIDToken verifies a Firebase ID token and returns the token claims.
func (s *Service) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	if idToken == "" {
		return nil, fmt.Errorf("ID token must not be empty")
	}
	token, err := s.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		s.logger.Warn("Firebase ID token verification failed", zap.Error(err))
		return nil, fmt.Errorf("failed to verify Firebase ID token: %w", err)
	}
	s.logger.Debug("Firebase ID token verified successfully", zap.String("uid", token.UID))
	return token, nil
}
