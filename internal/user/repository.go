// File: internal/user/repository.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"starterkit_backend/internal/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for user, account and session persistence.
type Repository interface {
	Create(ctx context.Context, user *User) error
	CreateWithAccount(ctx context.Context, user *User, account *Account) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByEmailWithAccounts(ctx context.Context, email string) (*User, error)
	FindAccount(ctx context.Context, provider, providerAccountID string) (*Account, error)
	LinkAccount(ctx context.Context, account *Account) (*Account, bool, error)
	Update(ctx context.Context, user *User) error
	UpdateRole(ctx context.Context, id, role string) error
	CreateSession(ctx context.Context, session *Session) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM user repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a new user record into the database.
func (r *gormRepository) Create(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Omit("Accounts").Create(user).Error; err != nil {
		return mapWriteError(err, "User with this email already exists.")
	}
	return nil
}

// CreateWithAccount inserts a user and its first linked account in one transaction.
func (r *gormRepository) CreateWithAccount(ctx context.Context, user *User, account *Account) error {
	user.Email = NormalizeEmail(user.Email)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Accounts").Create(user).Error; err != nil {
			return mapWriteError(err, "User with this email already exists.")
		}
		account.UserID = user.ID
		if err := tx.Create(account).Error; err != nil {
			return mapWriteError(err, "This account is already linked to a user.")
		}
		return nil
	})
	if err != nil {
		return err
	}
	user.Accounts = []Account{*account}
	return nil
}

// FindByID retrieves a user by their ID, with linked accounts.
func (r *gormRepository) FindByID(ctx context.Context, id string) (*User, error) {
	var userModel User
	err := r.db.WithContext(ctx).Preload("Accounts").Where("id = ?", id).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this ID.")
		}
		return nil, err
	}
	return &userModel, nil
}

// FindByEmail retrieves a user by their email address.
func (r *gormRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findByEmail(ctx, email, false)
}

// FindByEmailWithAccounts retrieves a user by email together with its linked accounts.
func (r *gormRepository) FindByEmailWithAccounts(ctx context.Context, email string) (*User, error) {
	return r.findByEmail(ctx, email, true)
}

func (r *gormRepository) findByEmail(ctx context.Context, email string, withAccounts bool) (*User, error) {
	var userModel User
	q := r.db.WithContext(ctx)
	if withAccounts {
		q = q.Preload("Accounts")
	}
	err := q.Where("email = ?", NormalizeEmail(email)).First(&userModel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("User not found with this email.")
		}
		return nil, err
	}
	return &userModel, nil
}

// FindAccount retrieves the account for a provider identity.
func (r *gormRepository) FindAccount(ctx context.Context, provider, providerAccountID string) (*Account, error) {
	var acct Account
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, providerAccountID).
		First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails(
				fmt.Sprintf("No account for provider %s and ID %s.", provider, providerAccountID),
			)
		}
		return nil, err
	}
	return &acct, nil
}

// LinkAccount inserts the account unless (provider, providerAccountId) already
// exists. It returns the stored account and whether this call created it.
// Concurrent callers racing on the same identity both succeed; exactly one
// of them observes created == true.
func (r *gormRepository) LinkAccount(ctx context.Context, account *Account) (*Account, bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_account_id"}},
			DoNothing: true,
		}).
		Create(account)
	if res.Error != nil {
		return nil, false, mapWriteError(res.Error, "This account is already linked to a user.")
	}
	if res.RowsAffected > 0 {
		return account, true, nil
	}
	existing, err := r.FindAccount(ctx, account.Provider, account.ProviderAccountID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Update modifies an existing user record in the database.
func (r *gormRepository) Update(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if err := r.db.WithContext(ctx).Omit("Accounts").Save(user).Error; err != nil {
		return mapWriteError(err, "Update failed: email or handle already taken.")
	}
	return nil
}

// UpdateRole sets a user's role.
func (r *gormRepository) UpdateRole(ctx context.Context, id, role string) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("User not found with this ID.")
	}
	return nil
}

// CreateSession stores a session row.
func (r *gormRepository) CreateSession(ctx context.Context, session *Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return mapWriteError(err, "Session token already exists.")
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before the given time.
func (r *gormRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires < ?", before).Delete(&Session{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func mapWriteError(err error, conflictDetails string) error {
	if isUniqueViolation(err) {
		return common.ErrConflict.WithDetails(conflictDetails)
	}
	return err
}
