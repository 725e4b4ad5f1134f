package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/veranemoloko/clipfetch/internal/errors"
)

// Authorization is the outcome of asking for media library access.
type Authorization int

const (
	AuthorizationDenied Authorization = iota
	AuthorizationGranted
)

func (a Authorization) String() string {
	if a == AuthorizationGranted {
		return "granted"
	}
	return "denied"
}

// GalleryDir is a media library backed by a directory. Access is granted
// when the directory can be created and written to.
type GalleryDir struct {
	dir string
}

// NewGalleryDir creates a GalleryDir rooted at dir.
func NewGalleryDir(dir string) *GalleryDir {
	return &GalleryDir{dir: dir}
}

// Authorize checks that videos can be written to the gallery.
func (g *GalleryDir) Authorize(ctx context.Context) (Authorization, error) {
	if err := ctx.Err(); err != nil {
		return AuthorizationDenied, err
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return AuthorizationDenied, nil
		}
		return AuthorizationDenied, fmt.Errorf("create gallery dir: %w", err)
	}

	marker, err := os.CreateTemp(g.dir, ".writable-*")
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return AuthorizationDenied, nil
		}
		return AuthorizationDenied, fmt.Errorf("check gallery dir: %w", err)
	}
	marker.Close()
	os.Remove(marker.Name())

	return AuthorizationGranted, nil
}

// SaveVideo copies the video at path into the gallery. Files whose content is
// not a video are refused.
func (g *GalleryDir) SaveVideo(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSaveFailed, err)
	}
	if !strings.HasPrefix(mtype.String(), "video/") {
		return fmt.Errorf("%w: %s is %s, not a video", apperrors.ErrSaveFailed, filepath.Base(path), mtype.String())
	}

	src, err := os.Open(path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSaveFailed, err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(g.dir, filepath.Base(path)))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSaveFailed, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return apperrors.Wrap(apperrors.ErrSaveFailed, err)
	}
	if err := dst.Close(); err != nil {
		return apperrors.Wrap(apperrors.ErrSaveFailed, err)
	}
	return nil
}
