package storage

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/veranemoloko/clipfetch/internal/errors"
)

// mp4Header is the start of an ISO base media file with an "isom" brand.
var mp4Header = []byte("\x00\x00\x00\x20ftypisom\x00\x00\x02\x00isomiso2avc1mp41\x00\x00\x00\x08free")

func TestGalleryDir_AuthorizeCreatesDir(t *testing.T) {
	dir := filepath.Join(makeTempDir(t), "gallery")
	g := NewGalleryDir(dir)

	auth, err := g.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AuthorizationGranted, auth)
	assert.DirExists(t, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write check file must be cleaned up")
}

func TestGalleryDir_AuthorizeDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced here")
	}

	dir := filepath.Join(makeTempDir(t), "gallery")
	require.NoError(t, os.Mkdir(dir, 0o555))

	auth, err := NewGalleryDir(dir).Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AuthorizationDenied, auth)
}

func TestGalleryDir_SaveVideo(t *testing.T) {
	root := makeTempDir(t)
	src := filepath.Join(root, "clip.mp4")
	require.NoError(t, os.WriteFile(src, mp4Header, 0o644))

	g := NewGalleryDir(filepath.Join(root, "gallery"))
	_, err := g.Authorize(context.Background())
	require.NoError(t, err)

	require.NoError(t, g.SaveVideo(context.Background(), src))

	data, err := os.ReadFile(filepath.Join(root, "gallery", "clip.mp4"))
	require.NoError(t, err)
	assert.Equal(t, mp4Header, data)
}

func TestGalleryDir_SaveVideoRejectsNonVideo(t *testing.T) {
	root := makeTempDir(t)
	src := filepath.Join(root, "notes.mp4")
	require.NoError(t, os.WriteFile(src, []byte("plain text, not a video"), 0o644))

	g := NewGalleryDir(filepath.Join(root, "gallery"))
	err := g.SaveVideo(context.Background(), src)
	assert.ErrorIs(t, err, apperrors.ErrSaveFailed)
}

func TestGalleryDir_SaveVideoMissingFile(t *testing.T) {
	g := NewGalleryDir(makeTempDir(t))
	err := g.SaveVideo(context.Background(), filepath.Join(makeTempDir(t), "missing.mp4"))
	assert.ErrorIs(t, err, apperrors.ErrSaveFailed)
}
