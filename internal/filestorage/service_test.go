package filestorage

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Smallest valid PNG header, enough for content sniffing.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func setupFileStorageService(t *testing.T) *FileStorageService {
	fsService, err := NewFileStorageService(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return fsService
}

// newTestFileHeader builds a FileHeader the way gin would after parsing a multipart body.
func newTestFileHeader(t *testing.T, filename string, content []byte, contentType string) *multipart.FileHeader {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="avatar"; filename="%s"`, filename))
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = io.Copy(part, bytes.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["avatar"][0]
}

func TestFileStorageService_SaveAvatar_Success(t *testing.T) {
	svc := setupFileStorageService(t)
	fh := newTestFileHeader(t, "me.png", append(pngHeader, []byte("rest of image")...), "image/png")

	url, err := svc.SaveAvatar("user-1", fh)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, PublicPrefix+"avatars/user-1-"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	saved, err := os.ReadFile(filepath.Join(svc.Root(), strings.TrimPrefix(url, PublicPrefix)))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(saved, pngHeader))
}

func TestFileStorageService_SaveAvatar_RejectsNonImages(t *testing.T) {
	svc := setupFileStorageService(t)
	// The client claims PNG but the bytes are text.
	fh := newTestFileHeader(t, "evil.png", []byte("#!/bin/sh\necho hi"), "image/png")

	_, err := svc.SaveAvatar("user-1", fh)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestFileStorageService_SaveAvatar_TooLarge(t *testing.T) {
	svc := setupFileStorageService(t)
	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, MaxAvatarBytes)...)
	fh := newTestFileHeader(t, "big.png", big, "image/png")

	_, err := svc.SaveAvatar("user-1", fh)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFileStorageService_SaveAvatar_NilHeader(t *testing.T) {
	svc := setupFileStorageService(t)
	_, err := svc.SaveAvatar("user-1", nil)
	assert.Error(t, err)
}

func TestFileStorageService_DeleteByURL(t *testing.T) {
	svc := setupFileStorageService(t)
	url, err := svc.SaveAvatar("u", newTestFileHeader(t, "a.png", pngHeader, "image/png"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteByURL(url))
	_, statErr := os.Stat(filepath.Join(svc.Root(), strings.TrimPrefix(url, PublicPrefix)))
	assert.True(t, os.IsNotExist(statErr))

	assert.NoError(t, svc.DeleteByURL(url), "deleting twice is a no-op")
	assert.NoError(t, svc.DeleteByURL("https://cdn.example.com/a.png"), "remote URLs are ignored")
	assert.Error(t, svc.DeleteByURL(PublicPrefix+"../../etc/passwd"))
}
