package user

import (
	"context"
	"testing"
	"time"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/platform/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRepositoryTest(t *testing.T) Repository {
	t.Helper()
	db, err := database.OpenInMemorySQLite()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop(), Models()...))
	return NewGORMRepository(db)
}

func strPtr(s string) *string { return &s }

func TestRepository_CreateWithAccountAndFind(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()

	u := &User{Email: "  Ada@Example.COM ", Name: strPtr("Ada"), Role: common.RoleUser}
	acct := &Account{Type: AccountTypeOAuth, Provider: "google", ProviderAccountID: "g-1"}
	require.NoError(t, repo.CreateWithAccount(ctx, u, acct))
	require.NotEmpty(t, u.ID)
	assert.Equal(t, u.ID, acct.UserID)
	assert.Equal(t, "ada@example.com", u.Email)

	found, err := repo.FindByEmailWithAccounts(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	require.Len(t, found.Accounts, 1)
	assert.True(t, found.HasAccount("google", "g-1"))
	assert.False(t, found.HasAccount("google", "g-2"))

	byID, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.DisplayName())
}

func TestRepository_ExplicitIDIsKept(t *testing.T) {
	repo := setupRepositoryTest(t)
	u := &User{BaseModel: common.BaseModel{ID: "108234"}, Email: "ext@example.com", Role: common.RoleUser}
	require.NoError(t, repo.Create(context.Background(), u))

	found, err := repo.FindByID(context.Background(), "108234")
	require.NoError(t, err)
	assert.Equal(t, "ext@example.com", found.Email)
}

func TestRepository_DuplicateEmailConflicts(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &User{Email: "dup@example.com", Role: common.RoleUser}))
	err := repo.Create(ctx, &User{Email: "DUP@example.com", Role: common.RoleUser})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestRepository_LinkAccountIsInsertIfAbsent(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()

	u := &User{Email: "link@example.com", Role: common.RoleUser}
	require.NoError(t, repo.Create(ctx, u))

	first, created, err := repo.LinkAccount(ctx, &Account{UserID: u.ID, Type: AccountTypeOAuth, Provider: "github", ProviderAccountID: "gh-9"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.LinkAccount(ctx, &Account{UserID: u.ID, Type: AccountTypeOAuth, Provider: "github", ProviderAccountID: "gh-9"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	found, err := repo.FindByEmailWithAccounts(ctx, "link@example.com")
	require.NoError(t, err)
	assert.Len(t, found.Accounts, 1)
}

func TestRepository_NotFound(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()

	_, err := repo.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = repo.FindAccount(ctx, "google", "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateRole(ctx, "missing", common.RoleAdmin), common.ErrNotFound)
}

func TestRepository_UpdateRole(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	u := &User{Email: "role@example.com", Role: common.RoleUser}
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, repo.UpdateRole(ctx, u.ID, common.RoleAdmin))
	found, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, common.RoleAdmin, found.Role)
}

func TestRepository_DeleteExpiredSessions(t *testing.T) {
	repo := setupRepositoryTest(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.CreateSession(ctx, &Session{SessionToken: "old-1", UserID: "u", Expires: now.Add(-time.Hour)}))
	require.NoError(t, repo.CreateSession(ctx, &Session{SessionToken: "old-2", UserID: "u", Expires: now.Add(-time.Minute)}))
	require.NoError(t, repo.CreateSession(ctx, &Session{SessionToken: "live", UserID: "u", Expires: now.Add(time.Hour)}))

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	err = repo.CreateSession(ctx, &Session{SessionToken: "live", UserID: "u", Expires: now})
	assert.ErrorIs(t, err, common.ErrConflict)
}
