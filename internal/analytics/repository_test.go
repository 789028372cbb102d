package analytics

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/config"
	"starterkit_backend/internal/platform/database"
	"starterkit_backend/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// setupPostgres connects to the database named by the TEST_DB_* variables.
// The queries use PostgreSQL functions, so there is no SQLite fallback.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set; skipping PostgreSQL analytics tests")
	}
	cfg := &config.Config{
		DBDriver:   "postgres",
		DBHost:     host,
		DBPort:     envOr("TEST_DB_PORT", "5432"),
		DBUser:     envOr("TEST_DB_USER", "postgres"),
		DBPassword: envOr("TEST_DB_PASSWORD", "postgres"),
		DBName:     envOr("TEST_DB_NAME", "starterkit_test"),
		DBSSLMode:  "disable",
		DBTimezone: "UTC",
		LogLevel:   "error",
	}
	cfg.DBSource = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode, cfg.DBTimezone)
	db, err := database.NewGORM(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop(), user.Models()...))
	require.NoError(t, db.Exec("TRUNCATE sessions, accounts, users").Error)
	t.Cleanup(func() { database.CloseGORMDB(db, zap.NewNop()) })
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestRepository_Postgres(t *testing.T) {
	db := setupPostgres(t)
	repo := NewGORMRepository(db)
	users := user.NewGORMRepository(db)
	ctx := context.Background()

	ada := &user.User{Email: "ada@example.com", Role: common.RoleAdmin}
	require.NoError(t, users.CreateWithAccount(ctx, ada, &user.Account{Type: user.AccountTypeOAuth, Provider: "google", ProviderAccountID: "g-1"}))
	bob := &user.User{Email: "bob@example.com", Role: common.RoleUser}
	require.NoError(t, users.Create(ctx, bob))

	live := time.Now().Add(time.Hour)
	require.NoError(t, users.CreateSession(ctx, &user.Session{SessionToken: "live", UserID: ada.ID, Expires: live}))
	require.NoError(t, users.CreateSession(ctx, &user.Session{SessionToken: "dead", UserID: ada.ID, Expires: time.Now().Add(-time.Hour)}))

	t.Run("signups by day", func(t *testing.T) {
		buckets, err := repo.SignupsByDay(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		var total int64
		for _, b := range buckets {
			total += b.Count
		}
		assert.EqualValues(t, 2, total)
	})

	t.Run("activity summary", func(t *testing.T) {
		rows, err := repo.ActivitySummary(ctx, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, ada.ID, rows[0].UserID)
		assert.Equal(t, "google", rows[0].Providers)
		assert.EqualValues(t, 1, rows[0].ActiveSessions)
		assert.EqualValues(t, 0, rows[1].ActiveSessions)
	})

	t.Run("extend sessions", func(t *testing.T) {
		n, err := repo.ExtendSessions(ctx, []string{"live", "dead", "missing"}, 24*time.Hour)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n, "expired sessions are not revived")

		var s user.Session
		require.NoError(t, db.Where("session_token = ?", "live").First(&s).Error)
		assert.WithinDuration(t, live.Add(24*time.Hour), s.Expires, time.Second)
	})
}
