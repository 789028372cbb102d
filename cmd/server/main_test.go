package main

import (
	"context"
	"testing"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/platform/database"
	"starterkit_backend/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetRole(t *testing.T) {
	db, err := database.OpenInMemorySQLite()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop(), user.Models()...))
	repo := user.NewGORMRepository(db)
	ctx := context.Background()

	u := &user.User{Email: "owner@example.com", Role: common.RoleUser}
	require.NoError(t, repo.Create(ctx, u))

	require.NoError(t, setRole(ctx, repo, zap.NewNop(), "Owner@Example.com", common.RoleAdmin))
	found, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, common.RoleAdmin, found.Role)

	assert.Error(t, setRole(ctx, repo, zap.NewNop(), "", common.RoleAdmin))
	assert.Error(t, setRole(ctx, repo, zap.NewNop(), "owner@example.com", "ROOT"))
	assert.ErrorIs(t, setRole(ctx, repo, zap.NewNop(), "nobody@example.com", common.RoleAdmin), common.ErrNotFound)
}
