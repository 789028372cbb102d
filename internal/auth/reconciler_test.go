package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/platform/database"
	"starterkit_backend/internal/user"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupUserDB(t *testing.T) (*gorm.DB, user.Repository) {
	t.Helper()
	db, err := database.OpenInMemorySQLite()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, zap.NewNop(), user.Models()...))
	return db, user.NewGORMRepository(db)
}

func googleSignIn(email, accountID string) SignInInput {
	return SignInInput{
		Email:             email,
		Profile:           Profile{ID: accountID, Name: "Ada Lovelace", Image: "https://img/ada"},
		Provider:          ProviderGoogle,
		ProviderAccountID: accountID,
		AccountType:       user.AccountTypeOAuth,
		AccessToken:       "at-1",
		CorrelationID:     "corr-1",
	}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestReconciler_CreatesUserAndAccount(t *testing.T) {
	db, repo := setupUserDB(t)
	r := NewReconciler(repo, nil, zap.NewNop())

	au := r.Reconcile(context.Background(), googleSignIn("Ada@Example.com", "g-1"))
	require.NotNil(t, au)
	assert.Equal(t, "g-1", au.ID, "provider profile id becomes the user id")
	assert.Equal(t, "ada@example.com", au.Email)
	assert.Equal(t, "Ada Lovelace", au.Name)
	assert.Equal(t, common.RoleUser, au.Role)

	stored, err := repo.FindByEmailWithAccounts(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.Handle)
	assert.NotEmpty(t, *stored.Handle)
	require.Len(t, stored.Accounts, 1)
	require.NotNil(t, stored.Accounts[0].AccessToken)
	assert.Equal(t, "at-1", *stored.Accounts[0].AccessToken)
	assert.EqualValues(t, 1, countRows(t, db, &user.Account{}))
}

func TestReconciler_IsIdempotent(t *testing.T) {
	db, repo := setupUserDB(t)
	r := NewReconciler(repo, nil, zap.NewNop())
	ctx := context.Background()

	first := r.Reconcile(ctx, googleSignIn("ada@example.com", "g-1"))
	second := r.Reconcile(ctx, googleSignIn("ada@example.com", "g-1"))
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, countRows(t, db, &user.User{}))
	assert.EqualValues(t, 1, countRows(t, db, &user.Account{}))
}

func TestReconciler_LinksSecondProviderToExistingEmail(t *testing.T) {
	db, repo := setupUserDB(t)
	r := NewReconciler(repo, nil, zap.NewNop())
	ctx := context.Background()

	existing := &user.User{Email: "ada@example.com", Role: common.RoleAdmin}
	require.NoError(t, repo.Create(ctx, existing))

	in := googleSignIn("ada@example.com", "apple-sub")
	in.Provider = ProviderApple
	in.AccountType = user.AccountTypeOIDC
	au := r.Reconcile(ctx, in)
	require.NotNil(t, au)
	assert.Equal(t, existing.ID, au.ID)
	assert.Equal(t, common.RoleAdmin, au.Role, "role comes from the stored user")

	stored, err := repo.FindByEmailWithAccounts(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, stored.HasAccount(ProviderApple, "apple-sub"))
	assert.EqualValues(t, 1, countRows(t, db, &user.User{}))
}

type forgetRecorder struct {
	ids []string
}

func (f *forgetRecorder) ForgetUser(_ context.Context, id string) {
	f.ids = append(f.ids, id)
}

func TestReconciler_LinkingEvictsCachedUser(t *testing.T) {
	_, repo := setupUserDB(t)
	forgotten := &forgetRecorder{}
	r := NewReconciler(repo, forgotten, zap.NewNop())
	ctx := context.Background()

	existing := &user.User{Email: "ada@example.com", Role: common.RoleUser}
	require.NoError(t, repo.Create(ctx, existing))

	require.NotNil(t, r.Reconcile(ctx, googleSignIn("ada@example.com", "g-1")))
	assert.Equal(t, []string{existing.ID}, forgotten.ids)

	require.NotNil(t, r.Reconcile(ctx, googleSignIn("ada@example.com", "g-1")))
	assert.Len(t, forgotten.ids, 1, "an already linked identity leaves the cache alone")
}

func TestReconciler_IdentityOwnedByAnotherUser(t *testing.T) {
	_, repo := setupUserDB(t)
	r := NewReconciler(repo, nil, zap.NewNop())
	ctx := context.Background()

	require.NotNil(t, r.Reconcile(ctx, googleSignIn("first@example.com", "g-1")))

	other := &user.User{Email: "second@example.com", Role: common.RoleUser}
	require.NoError(t, repo.Create(ctx, other))

	assert.Nil(t, r.Reconcile(ctx, googleSignIn("second@example.com", "g-1")))
}

func TestReconciler_IncompleteInput(t *testing.T) {
	r := NewReconciler(new(MockAccountStore), nil, zap.NewNop())

	for name, in := range map[string]SignInInput{
		"no email":      {Provider: "google", ProviderAccountID: "1"},
		"no provider":   {Email: "a@example.com", ProviderAccountID: "1"},
		"no account id": {Email: "a@example.com", Provider: "google"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, r.Reconcile(context.Background(), in))
		})
	}
}

type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) FindByEmailWithAccounts(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockAccountStore) LinkAccount(ctx context.Context, account *user.Account) (*user.Account, bool, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*user.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccountStore) CreateWithAccount(ctx context.Context, u *user.User, account *user.Account) error {
	return m.Called(ctx, u, account).Error(0)
}

func TestReconciler_StoreFailureReturnsNil(t *testing.T) {
	store := new(MockAccountStore)
	store.On("FindByEmailWithAccounts", mock.Anything, "ada@example.com").Return(nil, errors.New("connection refused")).Once()
	r := NewReconciler(store, nil, zap.NewNop())

	assert.Nil(t, r.Reconcile(context.Background(), googleSignIn("ada@example.com", "g-1")))
	store.AssertExpectations(t)
}

func TestReconciler_RetriesOnceAfterConflict(t *testing.T) {
	store := new(MockAccountStore)
	winner := &user.User{Email: "ada@example.com", Role: common.RoleUser}
	winner.ID = "winner"
	winner.Accounts = []user.Account{{Provider: ProviderGoogle, ProviderAccountID: "g-1", UserID: "winner"}}

	store.On("FindByEmailWithAccounts", mock.Anything, "ada@example.com").Return(nil, common.ErrNotFound).Once()
	store.On("CreateWithAccount", mock.Anything, mock.Anything, mock.Anything).Return(common.ErrConflict.WithDetails("taken")).Once()
	store.On("FindByEmailWithAccounts", mock.Anything, "ada@example.com").Return(winner, nil).Once()

	r := NewReconciler(store, nil, zap.NewNop())
	au := r.Reconcile(context.Background(), googleSignIn("ada@example.com", "g-1"))
	require.NotNil(t, au)
	assert.Equal(t, "winner", au.ID)
	store.AssertExpectations(t)
}

func TestReconciler_ConcurrentSignInsCreateOneUser(t *testing.T) {
	db, repo := setupUserDB(t)
	r := NewReconciler(repo, nil, zap.NewNop())

	const n = 8
	results := make([]*AuthUser, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Reconcile(context.Background(), googleSignIn("race@example.com", "g-race"))
		}(i)
	}
	wg.Wait()

	for i, au := range results {
		require.NotNil(t, au, "sign-in %d failed", i)
		assert.Equal(t, "g-race", au.ID)
	}
	assert.EqualValues(t, 1, countRows(t, db, &user.User{}))
	assert.EqualValues(t, 1, countRows(t, db, &user.Account{}))
}
