// File: internal/filestorage/service.go
package filestorage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"starterkit_backend/internal/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PublicPrefix is the URL path under which stored files are served.
	PublicPrefix = "/uploads/"
	// MaxAvatarBytes caps avatar uploads.
	MaxAvatarBytes = 2 << 20

	avatarDir = "avatars"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("file too large")
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// FileStorageService stores user uploads on local disk.
type FileStorageService struct {
	storagePath string
	logger      *zap.Logger
}

// NewFileStorageService creates the service rooted at storagePath.
func NewFileStorageService(storagePath string, logger *zap.Logger) (*FileStorageService, error) {
	if storagePath == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Join(storagePath, avatarDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage path %s: %w", storagePath, err)
	}
	logger.Info("FileStorageService initialized", zap.String("storagePath", storagePath))
	return &FileStorageService{storagePath: storagePath, logger: logger}, nil
}

// NewFromConfig creates the service from UPLOADS_PATH.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) (*FileStorageService, error) {
	return NewFileStorageService(cfg.UploadsPath, logger.Named("FileStorage"))
}

// Root returns the directory served under PublicPrefix.
func (s *FileStorageService) Root() string {
	return s.storagePath
}

// SaveAvatar stores an uploaded image for userID and returns its public URL.
// The type is taken from the file content, not the client-supplied header.
func (s *FileStorageService) SaveAvatar(userID string, fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return "", fmt.Errorf("fileHeader cannot be nil")
	}
	if fileHeader.Size > MaxAvatarBytes {
		return "", ErrTooLarge
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	sniff := make([]byte, 3072)
	n, err := io.ReadFull(src, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	ext, ok := allowedImageTypes[mimetype.Detect(sniff[:n]).String()]
	if !ok {
		return "", ErrUnsupportedType
	}

	name := safeSegment(userID) + "-" + uuid.NewString() + ext
	rel := filepath.ToSlash(filepath.Join(avatarDir, name))
	dstPath := filepath.Join(s.storagePath, avatarDir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(io.MultiReader(bytes.NewReader(sniff[:n]), src), MaxAvatarBytes+1))
	if err == nil && written > MaxAvatarBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(dstPath)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	s.logger.Info("Avatar saved", zap.String("userID", userID), zap.String("path", rel))
	return PublicPrefix + rel, nil
}

// DeleteByURL removes a file previously returned by SaveAvatar.
// URLs that do not point into local storage are ignored.
func (s *FileStorageService) DeleteByURL(publicURL string) error {
	if !strings.HasPrefix(publicURL, PublicPrefix) {
		return nil
	}
	rel := filepath.Clean(strings.TrimPrefix(publicURL, PublicPrefix))
	if strings.Contains(rel, "..") || filepath.IsAbs(rel) {
		s.logger.Warn("Attempt to delete file with path traversal", zap.String("url", publicURL))
		return fmt.Errorf("invalid file path for deletion")
	}

	fullPath := filepath.Join(s.storagePath, rel)
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file %s: %w", fullPath, err)
	}
	s.logger.Info("File deleted", zap.String("path", fullPath))
	return nil
}

func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
