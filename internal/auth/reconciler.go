// File: internal/auth/reconciler.go
package auth

import (
	"context"
	"errors"
	"strings"

	"starterkit_backend/internal/common"
	"starterkit_backend/internal/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountStore is the slice of the user store the reconciler needs.
// user.Repository satisfies it.
type AccountStore interface {
	FindByEmailWithAccounts(ctx context.Context, email string) (*user.User, error)
	LinkAccount(ctx context.Context, account *user.Account) (*user.Account, bool, error)
	CreateWithAccount(ctx context.Context, u *user.User, account *user.Account) error
}

// UserCacheInvalidator drops cached copies of a user.
// user.ServiceImplementation satisfies it.
type UserCacheInvalidator interface {
	ForgetUser(ctx context.Context, id string)
}

// Profile is what the provider told us about the person.
type Profile struct {
	ID    string
	Name  string
	Image string
}

// SignInInput describes one provider sign-in to reconcile.
type SignInInput struct {
	Email             string
	Profile           Profile
	Provider          string
	ProviderAccountID string
	AccountType       string
	AccessToken       string
	CorrelationID     string
}

// SignInReconciler resolves a provider identity to a stored user.
type SignInReconciler interface {
	Reconcile(ctx context.Context, in SignInInput) *AuthUser
}

// Reconciler finds or creates the User and Account behind a provider identity.
type Reconciler struct {
	store  AccountStore
	users  UserCacheInvalidator
	logger *zap.Logger
}

var _ SignInReconciler = (*Reconciler)(nil)

// NewReconciler creates a Reconciler. users may be nil when nothing caches users.
func NewReconciler(store AccountStore, users UserCacheInvalidator, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, users: users, logger: logger.Named("SignInReconciler")}
}

// Reconcile returns the user for in, creating or linking records as needed.
// It never returns an error: failures are logged with the correlation id and
// reported as nil, and the caller aborts the sign-in.
func (r *Reconciler) Reconcile(ctx context.Context, in SignInInput) *AuthUser {
	log := r.logger.With(
		zap.String("correlationId", in.CorrelationID),
		zap.String("provider", in.Provider),
	)
	email := user.NormalizeEmail(in.Email)
	if email == "" || in.Provider == "" || in.ProviderAccountID == "" {
		log.Warn("Sign-in identity incomplete")
		return nil
	}

	au, err := r.reconcile(ctx, email, in, log)
	if errors.Is(err, common.ErrConflict) {
		// Another request created the same user or account first.
		log.Info("Sign-in lost a creation race, retrying lookup")
		au, err = r.reconcile(ctx, email, in, log)
	}
	if err != nil {
		log.Error("Sign-in reconciliation failed", zap.Error(err))
		return nil
	}
	return au
}

func (r *Reconciler) reconcile(ctx context.Context, email string, in SignInInput, log *zap.Logger) (*AuthUser, error) {
	existing, err := r.store.FindByEmailWithAccounts(ctx, email)
	switch {
	case err == nil:
		return r.linkExisting(ctx, existing, in, log)
	case errors.Is(err, common.ErrNotFound):
		return r.createNew(ctx, email, in, log)
	default:
		return nil, err
	}
}

func (r *Reconciler) linkExisting(ctx context.Context, u *user.User, in SignInInput, log *zap.Logger) (*AuthUser, error) {
	if u.HasAccount(in.Provider, in.ProviderAccountID) {
		return NewAuthUser(u), nil
	}

	acct, created, err := r.store.LinkAccount(ctx, newAccount(u.ID, in))
	if err != nil {
		return nil, err
	}
	if acct.UserID != u.ID {
		log.Warn("Provider identity already belongs to another user",
			zap.String("userID", u.ID), zap.String("ownerID", acct.UserID))
		return nil, errIdentityOwnedElsewhere
	}
	if created {
		log.Info("Linked provider account to existing user", zap.String("userID", u.ID))
		if r.users != nil {
			r.users.ForgetUser(ctx, u.ID)
		}
	}
	u.Accounts = append(u.Accounts, *acct)
	return NewAuthUser(u), nil
}

func (r *Reconciler) createNew(ctx context.Context, email string, in SignInInput, log *zap.Logger) (*AuthUser, error) {
	id := strings.TrimSpace(in.Profile.ID)
	if id == "" {
		id = uuid.NewString()
	}
	u := &user.User{Email: email, Role: common.RoleUser}
	u.ID = id
	if name := strings.TrimSpace(in.Profile.Name); name != "" {
		u.Name = &name
	}
	if img := strings.TrimSpace(in.Profile.Image); img != "" {
		u.Image = &img
	}
	if handle, err := user.GenerateHandle(u); err == nil {
		u.Handle = &handle
	} else {
		log.Warn("Could not generate handle for new user", zap.Error(err))
	}

	if err := r.store.CreateWithAccount(ctx, u, newAccount(u.ID, in)); err != nil {
		return nil, err
	}
	log.Info("Created user from provider sign-in", zap.String("userID", u.ID))
	return NewAuthUser(u), nil
}

var errIdentityOwnedElsewhere = errors.New("provider identity is linked to a different user")

func newAccount(userID string, in SignInInput) *user.Account {
	acct := &user.Account{
		UserID:            userID,
		Type:              in.AccountType,
		Provider:          in.Provider,
		ProviderAccountID: in.ProviderAccountID,
	}
	if acct.Type == "" {
		acct.Type = user.AccountTypeOAuth
	}
	if in.AccessToken != "" {
		tok := in.AccessToken
		acct.AccessToken = &tok
	}
	return acct
}
