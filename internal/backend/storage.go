package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var allowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

// Storage keeps uploaded objects on local disk under dir/<user id>/ and hands
// out URLs under publicURL.
type Storage struct {
	auth      *Auth
	dir       string
	publicURL string
	maxBytes  int64
}

func (s *Storage) Dir() string       { return s.dir }
func (s *Storage) PublicURL() string { return s.publicURL }

// Upload stores an image owned by the session's user and returns its public URL.
// Empty, oversized and non-image content fails with ErrRejectedUpload.
func (s *Storage) Upload(ctx context.Context, sess *Session, r io.Reader, filename, contentType string) (string, error) {
	user, err := s.auth.Verify(ctx, sess)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", fmt.Errorf("%w: %s has no content", ErrRejectedUpload, filename)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrRejectedUpload, filename)
	}
	if int64(len(data)) > s.maxBytes {
		return "", fmt.Errorf("%w: %s exceeds %d bytes", ErrRejectedUpload, filename, s.maxBytes)
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %s declared as %s", ErrRejectedUpload, filename, contentType)
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return "", fmt.Errorf("%w: %s is %s", ErrRejectedUpload, filename, mt.String())
	}

	name := user.ID + "/" + uuid.NewString() + mt.Extension()

	full := filepath.Join(s.dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write object: %w", err)
	}

	return strings.TrimSuffix(s.publicURL, "/") + "/" + name, nil
}

// Remove deletes an object previously returned by Upload. Only the owner may
// remove it.
func (s *Storage) Remove(ctx context.Context, sess *Session, url string) error {
	user, err := s.auth.Verify(ctx, sess)
	if err != nil {
		return err
	}

	name, err := s.objectName(url)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(name, user.ID+"/") {
		return fmt.Errorf("%w: object %s is not owned by caller", ErrForbidden, name)
	}

	if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(name))); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *Storage) objectName(url string) (string, error) {
	prefix := strings.TrimSuffix(s.publicURL, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("%w: %s is not a storage url", ErrForbidden, url)
	}

	name := strings.TrimPrefix(url, prefix)
	if name == "" || path.Clean(name) != name || strings.HasPrefix(name, "../") || name == ".." {
		return "", fmt.Errorf("%w: bad object name %q", ErrForbidden, name)
	}
	return name, nil
}
