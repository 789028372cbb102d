// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// DefaultSessionMaxAgeDays is the single session lifetime shared by the
	// token codec, the session cookie and the test session endpoint.
	DefaultSessionMaxAgeDays = 30

	// DefaultCacheCompressionThreshold is the serialized size in bytes above
	// which cache values are gzip-compressed when compression is requested.
	DefaultCacheCompressionThreshold = 1024

	devAuthSecret = "starterkit-development-secret-do-not-use-in-production"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	AppEnv        string        `mapstructure:"APP_ENV"`
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"-"` // SERVER_TIMEOUT_SECONDS
	CORSOrigins   []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"-"` // DB_CONN_MAX_LIFETIME_MINUTES
	DBSQLitePath      string        `mapstructure:"DB_SQLITE_PATH"`
	DBAutoMigrate     bool          `mapstructure:"DB_AUTO_MIGRATE"`
	DBSource          string        `mapstructure:"DB_SOURCE"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Session / Auth
	AuthSecret           string        `mapstructure:"AUTH_SECRET"`
	AuthURL              string        `mapstructure:"AUTH_URL"`
	SecureCookies        bool          `mapstructure:"SESSION_SECURE_COOKIES"`
	SessionMaxAge        time.Duration `mapstructure:"-"` // SESSION_MAX_AGE_DAYS
	LoginPath            string        `mapstructure:"LOGIN_PATH"`
	DefaultLoginRedirect string        `mapstructure:"DEFAULT_LOGIN_REDIRECT"`
	PublicRoutes         []string      `mapstructure:"PUBLIC_ROUTES"`
	AuthRoutes           []string      `mapstructure:"AUTH_ROUTES"`

	// Test support
	EnableTestEndpoints      bool   `mapstructure:"ENABLE_TEST_ENDPOINTS"`
	UseAuthEmulator          bool   `mapstructure:"USE_AUTH_EMULATOR"`
	FirebaseAuthEmulatorHost string `mapstructure:"FIREBASE_AUTH_EMULATOR_HOST"`

	// OAuth Configuration
	GoogleClientID          string        `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret      string        `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI       string        `mapstructure:"GOOGLE_REDIRECT_URI"`
	AppleClientID           string        `mapstructure:"APPLE_CLIENT_ID"`
	AppleRedirectURI        string        `mapstructure:"APPLE_REDIRECT_URI"`
	OAuthStateCookieName    string        `mapstructure:"OAUTH_STATE_COOKIE_NAME"`
	OAuthNonceCookieName    string        `mapstructure:"OAUTH_NONCE_COOKIE_NAME"`
	OAuthCallbackCookieName string        `mapstructure:"OAUTH_CALLBACK_COOKIE_NAME"`
	OAuthCookieMaxAge       time.Duration `mapstructure:"-"` // OAUTH_COOKIE_MAX_AGE_MINUTES

	// Firebase Configuration
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`

	// Cache
	RedisURL                  string        `mapstructure:"REDIS_URL"`
	CacheKeyPrefix            string        `mapstructure:"CACHE_KEY_PREFIX"`
	CacheCompressionThreshold int           `mapstructure:"CACHE_COMPRESSION_THRESHOLD_BYTES"`
	CacheDefaultTTL           time.Duration `mapstructure:"-"` // CACHE_DEFAULT_TTL_SECONDS

	// Elasticsearch Configuration
	ElasticsearchURL  string `mapstructure:"ELASTICSEARCH_URL"`
	ActivityIndexName string `mapstructure:"ACTIVITY_INDEX_NAME"`

	// Cron Jobs
	SessionCleanupJobSchedule string `mapstructure:"SESSION_CLEANUP_JOB_SCHEDULE"`

	// File uploads
	UploadsPath string `mapstructure:"UPLOADS_PATH"`
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Duration fields are configured as plain integers and converted here.
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.SessionMaxAge = time.Duration(v.GetInt("SESSION_MAX_AGE_DAYS")) * 24 * time.Hour
	cfg.OAuthCookieMaxAge = time.Duration(v.GetInt("OAUTH_COOKIE_MAX_AGE_MINUTES")) * time.Minute
	cfg.CacheDefaultTTL = time.Duration(v.GetInt("CACHE_DEFAULT_TTL_SECONDS")) * time.Second

	// Env-provided lists arrive as a single comma separated string.
	cfg.PublicRoutes = splitList(v.GetString("PUBLIC_ROUTES"))
	cfg.AuthRoutes = splitList(v.GetString("AUTH_ROUTES"))
	cfg.CORSOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))
	// AutomaticEnv treats an empty variable as unset; an explicit empty list allows every origin.
	if raw, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok && strings.TrimSpace(raw) == "" {
		cfg.CORSOrigins = nil
	}

	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if os.Getenv("SESSION_SECURE_COOKIES") == "" {
		cfg.SecureCookies = cfg.IsProduction()
	}

	cfg.DBSource = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode, cfg.DBTimezone)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "starterkit_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_SQLITE_PATH", "starterkit.db")
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("AUTH_SECRET", "")
	v.SetDefault("AUTH_URL", "http://localhost:8080")
	v.SetDefault("SESSION_SECURE_COOKIES", false)
	v.SetDefault("SESSION_MAX_AGE_DAYS", DefaultSessionMaxAgeDays)
	v.SetDefault("LOGIN_PATH", "/login")
	v.SetDefault("DEFAULT_LOGIN_REDIRECT", "/")
	v.SetDefault("PUBLIC_ROUTES", "/,/about,/health,/uploads/*,/api/v1/*")
	v.SetDefault("AUTH_ROUTES", "/login,/register")

	v.SetDefault("ENABLE_TEST_ENDPOINTS", false)
	v.SetDefault("USE_AUTH_EMULATOR", false)
	v.SetDefault("FIREBASE_AUTH_EMULATOR_HOST", "")

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/auth/callback/google")
	v.SetDefault("APPLE_CLIENT_ID", "")
	v.SetDefault("APPLE_REDIRECT_URI", "http://localhost:8080/api/auth/callback/apple")
	v.SetDefault("OAUTH_STATE_COOKIE_NAME", "oauth_state")
	v.SetDefault("OAUTH_NONCE_COOKIE_NAME", "oauth_nonce")
	v.SetDefault("OAUTH_CALLBACK_COOKIE_NAME", "oauth_callback")
	v.SetDefault("OAUTH_COOKIE_MAX_AGE_MINUTES", 10)

	// Firebase
	v.SetDefault("FIREBASE_PROJECT_ID", "") // Optional
	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")

	// Cache; an empty REDIS_URL disables caching.
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_KEY_PREFIX", "starterkit")
	v.SetDefault("CACHE_COMPRESSION_THRESHOLD_BYTES", DefaultCacheCompressionThreshold)
	v.SetDefault("CACHE_DEFAULT_TTL_SECONDS", 300)

	// Elasticsearch; empty disables activity indexing.
	v.SetDefault("ELASTICSEARCH_URL", "")
	v.SetDefault("ACTIVITY_INDEX_NAME", "auth-activity")

	v.SetDefault("SESSION_CLEANUP_JOB_SCHEDULE", "@hourly")
	v.SetDefault("UPLOADS_PATH", "./uploads")
}

func (c *Config) validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("invalid APP_ENV %q: must be one of development, test, production", c.AppEnv)
	}

	if strings.TrimSpace(c.AuthSecret) == "" {
		if c.IsProduction() {
			return fmt.Errorf("FATAL: AUTH_SECRET is not set. It is required in production")
		}
		c.AuthSecret = devAuthSecret
	}

	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = DefaultSessionMaxAgeDays * 24 * time.Hour
	}
	if c.CacheCompressionThreshold <= 0 {
		c.CacheCompressionThreshold = DefaultCacheCompressionThreshold
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: must be postgres or sqlite", c.DBDriver)
	}

	if c.FirebaseServiceAccountKeyPath != "" {
		if _, err := os.Stat(c.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("FATAL: Firebase service account key file specified in FIREBASE_SERVICE_ACCOUNT_KEY_PATH (%s) not found", c.FirebaseServiceAccountKeyPath)
		}
	}
	return nil
}

// UsesDevSecret reports whether the built-in development secret is active.
func (c *Config) UsesDevSecret() bool {
	return c.AuthSecret == devAuthSecret
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
