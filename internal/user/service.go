package user

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"starterkit_backend/internal/cache"
	"starterkit_backend/internal/common"
	"starterkit_backend/internal/filestorage"
	"starterkit_backend/internal/platform/crypto"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service is the user-facing API of this package.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authorize(ctx context.Context, email, password string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*User, error)
	SetRole(ctx context.Context, id, role string) (*User, error)
	SetAvatar(ctx context.Context, id string, fileHeader *multipart.FileHeader) (*User, error)
}

// AvatarStore persists uploaded profile images.
type AvatarStore interface {
	SaveAvatar(userID string, fileHeader *multipart.FileHeader) (string, error)
	DeleteByURL(publicURL string) error
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo    Repository
	cache   *cache.Service
	avatars AvatarStore
	logger  *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new user service.
func NewService(repo Repository, cacheService *cache.Service, avatars AvatarStore, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:    repo,
		cache:   cacheService,
		avatars: avatars,
		logger:  logger.Named("UserService"),
	}
}

func userCacheKey(id string) string { return "user:" + id }

// Register creates a credentials user together with its credentials account.
func (s *ServiceImplementation) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	email := NormalizeEmail(req.Email)
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, common.ErrConflict.WithDetails("User with this email already exists.")
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user by email: %w", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Email:          email,
		Role:           common.RoleUser,
		HashedPassword: &hash,
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		u.Name = &name
	}
	u.Handle = s.newHandle(u)

	// The credentials account is keyed by the user id, so assign it up front.
	u.ID = uuid.NewString()
	acct := &Account{Type: AccountTypeCredentials, Provider: ProviderCredentials, ProviderAccountID: u.ID}
	if err := s.repo.CreateWithAccount(ctx, u, acct); err != nil {
		if apiErr, ok := common.IsAPIError(err); ok {
			return nil, apiErr
		}
		s.logger.Error("Failed to create user in repository", zap.Error(err), zap.String("email", u.Email))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered successfully", zap.String("userID", u.ID))
	return u, nil
}

// Authorize checks credentials and returns the matching user.
func (s *ServiceImplementation) Authorize(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Info("User not found during login", zap.String("email", email))
			return nil, common.ErrUnauthorized.WithDetails("Invalid email or password.")
		}
		s.logger.Error("Error finding user by email during login", zap.Error(err), zap.String("email", email))
		return nil, common.ErrInternalServer.WithDetails("Login failed due to an internal error.")
	}

	if u.HashedPassword == nil || *u.HashedPassword == "" {
		s.logger.Warn("Credentials login for an account without a password", zap.String("userID", u.ID))
		return nil, common.ErrUnauthorized.WithDetails("Invalid email or password.")
	}
	if !CheckPasswordHash(password, *u.HashedPassword) {
		s.logger.Warn("Invalid password attempt", zap.String("userID", u.ID))
		return nil, common.ErrUnauthorized.WithDetails("Invalid email or password.")
	}
	return u, nil
}

// GetUserByID returns a user, served from cache when possible.
func (s *ServiceImplementation) GetUserByID(ctx context.Context, id string) (*User, error) {
	var cached User
	hit, err := s.cache.Get(ctx, userCacheKey(id), &cached)
	if err != nil {
		// Corrupt entry: drop it and fall through to the store.
		s.cache.Delete(ctx, userCacheKey(id))
	}
	if hit {
		return &cached, nil
	}

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, userCacheKey(id), u, cache.Options{TTL: s.cache.DefaultTTL()})
	return u, nil
}

// ForgetUser drops the cached copy of a user so the next read hits the store.
func (s *ServiceImplementation) ForgetUser(ctx context.Context, id string) {
	s.cache.Delete(ctx, userCacheKey(id))
}

// UpdateProfile applies the non-nil fields of req.
func (s *ServiceImplementation) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		u.Name = &name
		if u.Handle == nil {
			u.Handle = s.newHandle(u)
		}
	}
	if req.Image != nil {
		u.Image = req.Image
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, userCacheKey(id))
	return u, nil
}

// SetRole changes a user's role. Only USER and ADMIN are accepted.
func (s *ServiceImplementation) SetRole(ctx context.Context, id, role string) (*User, error) {
	if role != common.RoleUser && role != common.RoleAdmin {
		return nil, common.ErrBadRequest.WithDetails("Role must be USER or ADMIN.")
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, userCacheKey(id))
	s.logger.Info("User role changed", zap.String("userID", id), zap.String("role", role))
	return s.repo.FindByID(ctx, id)
}

// SetAvatar stores a new profile image and removes the previous local one.
func (s *ServiceImplementation) SetAvatar(ctx context.Context, id string, fileHeader *multipart.FileHeader) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.avatars.SaveAvatar(u.ID, fileHeader)
	if err != nil {
		if errors.Is(err, filestorage.ErrUnsupportedType) || errors.Is(err, filestorage.ErrTooLarge) {
			return nil, common.ErrBadRequest.WithDetails(err.Error())
		}
		return nil, err
	}

	previous := u.ImageURL()
	u.Image = &url
	if err := s.repo.Update(ctx, u); err != nil {
		_ = s.avatars.DeleteByURL(url)
		return nil, err
	}
	if previous != "" {
		if err := s.avatars.DeleteByURL(previous); err != nil {
			s.logger.Warn("Failed to remove previous avatar", zap.String("userID", u.ID), zap.Error(err))
		}
	}
	s.cache.Delete(ctx, userCacheKey(id))
	return u, nil
}

// newHandle derives a public handle from the user's name or email.
func (s *ServiceImplementation) newHandle(u *User) *string {
	h, err := GenerateHandle(u)
	if err != nil {
		s.logger.Warn("Could not generate handle", zap.Error(err))
		return nil
	}
	return &h
}

// GenerateHandle builds a slug handle from the name (or email local part)
// plus a short random suffix.
func GenerateHandle(u *User) (string, error) {
	base := u.DisplayName()
	if base == "" {
		base = strings.SplitN(u.Email, "@", 2)[0]
	}
	suffix, err := crypto.RandomHex(3)
	if err != nil {
		return "", err
	}
	h := slug.Make(base)
	if h == "" {
		h = "user"
	}
	return h + "-" + suffix, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPasswordHash compares a plaintext password with a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
