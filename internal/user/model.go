// File: internal/user/model.go
package user

import (
	"time"

	"starterkit_backend/internal/common"
)

// Account types recorded on Account.Type.
const (
	AccountTypeOAuth       = "oauth"
	AccountTypeOIDC        = "oidc"
	AccountTypeCredentials = "credentials"

	ProviderCredentials = "credentials"
)

// User represents the user model in the database.
type User struct {
	common.BaseModel
	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null"`
	Name           *string    `gorm:"type:varchar(255)"`
	Image          *string    `gorm:"type:text"`
	Handle         *string    `gorm:"type:varchar(120);uniqueIndex"`
	Role           string     `gorm:"type:varchar(20);not null;default:'USER'"`
	HashedPassword *string    `gorm:"type:varchar(255)" json:"-"`
	EmailVerified  *time.Time `gorm:"column:email_verified"`
	Accounts       []Account  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the User model.
func (User) TableName() string {
	return "users"
}

// HasAccount reports whether the user already has the given provider identity linked.
func (u *User) HasAccount(provider, providerAccountID string) bool {
	for _, a := range u.Accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			return true
		}
	}
	return false
}

// DisplayName returns the user's name or an empty string.
func (u *User) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

// ImageURL returns the user's image or an empty string.
func (u *User) ImageURL() string {
	if u.Image == nil {
		return ""
	}
	return *u.Image
}

// Account links a User to one external (or credentials) identity.
// (Provider, ProviderAccountID) is unique across the table.
type Account struct {
	common.BaseModel
	UserID            string  `gorm:"size:191;not null;index"`
	Type              string  `gorm:"type:varchar(30);not null"`
	Provider          string  `gorm:"type:varchar(50);not null;index:idx_provider_account,unique"`
	ProviderAccountID string  `gorm:"column:provider_account_id;type:varchar(191);not null;index:idx_provider_account,unique"`
	AccessToken       *string `gorm:"type:text" json:"-"`
	RefreshToken      *string `gorm:"type:text" json:"-"`
	IDToken           *string `gorm:"type:text" json:"-"`
	ExpiresAt         *int64
	TokenType         *string `gorm:"type:varchar(50)"`
	Scope             *string `gorm:"type:text"`
}

// TableName specifies the table name for the Account model.
func (Account) TableName() string {
	return "accounts"
}

// Session is a persisted session row. Sessions issued as signed tokens are not
// stored here; the table backs database sessions and the admin tooling.
type Session struct {
	common.BaseModel
	SessionToken string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	UserID       string    `gorm:"size:191;not null;index"`
	Expires      time.Time `gorm:"not null;index"`
}

// TableName specifies the table name for the Session model.
func (Session) TableName() string {
	return "sessions"
}

// Models lists every table owned by this package, for migrations.
func Models() []interface{} {
	return []interface{}{&User{}, &Account{}, &Session{}}
}

// --- DTOs (Data Transfer Objects) for API requests/responses ---

// RegisterRequest defines the structure for creating a credentials user.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"` // bcrypt max is 72 bytes
	Name     string `json:"name,omitempty" binding:"omitempty,max=255"`
}

// UpdateProfileRequest is the body of PATCH /users/me. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Image *string `json:"image,omitempty" binding:"omitempty,url,max=2048"`
}

// UpdateRoleRequest is the body of PUT /users/:id/role.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=USER ADMIN"`
}

// UserResponse defines the structure for user data sent in API responses.
type UserResponse struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          *string    `json:"name,omitempty"`
	Image         *string    `json:"image,omitempty"`
	Handle        *string    `json:"handle,omitempty"`
	Role          string     `json:"role"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	Providers     []string   `json:"providers,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ToUserResponse converts a User model to a UserResponse DTO.
func ToUserResponse(u *User) UserResponse {
	resp := UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Image:         u.Image,
		Handle:        u.Handle,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	for _, a := range u.Accounts {
		resp.Providers = append(resp.Providers, a.Provider)
	}
	return resp
}
