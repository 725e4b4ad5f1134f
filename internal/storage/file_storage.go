package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileStorage manages the app-private documents area. Finished downloads are
// written to a temporary directory first and then moved in under a unique
// name.
type FileStorage struct {
	dir     string
	tempDir string
}

// NewFileStorage creates a FileStorage for the documents directory dir and the
// scratch directory tempDir.
func NewFileStorage(dir, tempDir string) *FileStorage {
	return &FileStorage{dir: dir, tempDir: tempDir}
}

// Dir returns the documents directory.
func (s *FileStorage) Dir() string {
	return s.dir
}

// CreateTemp creates an empty temporary file with the given extension.
func (s *FileStorage) CreateTemp(ext string) (*os.File, error) {
	if err := os.MkdirAll(s.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return os.CreateTemp(s.tempDir, "download-*"+dotted(ext))
}

// Adopt moves the file at tempPath into the documents directory as
// <uuid>.<ext> and returns its new path. When a rename is impossible, for
// example across devices, the file is copied and the original removed.
func (s *FileStorage) Adopt(tempPath, ext string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create documents dir: %w", err)
	}

	name := uuid.NewString() + dotted(ext)
	for s.FileExists(name) {
		name = uuid.NewString() + dotted(ext)
	}
	dst := filepath.Join(s.dir, name)
	if err := os.Rename(tempPath, dst); err == nil {
		return dst, nil
	}

	src, err := os.Open(tempPath)
	if err != nil {
		return "", fmt.Errorf("open temp file: %w", err)
	}
	defer src.Close()

	if _, err := s.CopyFile(src, filepath.Base(dst)); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("copy into documents: %w", err)
	}
	src.Close()
	os.Remove(tempPath)
	return dst, nil
}

// FileExists checks whether a file exists in the documents directory.
func (s *FileStorage) FileExists(filename string) bool {
	_, err := os.Stat(filepath.Join(s.dir, filename))
	return err == nil
}

// Remove deletes a file from the documents directory. A missing file is
// not an error.
func (s *FileStorage) Remove(path string) error {
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(s.dir) {
		return fmt.Errorf("remove %s: not in documents dir", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// CopyFile copies data from the provided reader to a file with the specified filename.
// Returns the number of bytes written and any error encountered.
func (s *FileStorage) CopyFile(src io.Reader, dstFilename string) (int64, error) {
	dst, err := os.Create(filepath.Join(s.dir, dstFilename))
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	return io.Copy(dst, src)
}

func dotted(ext string) string {
	if ext == "" || ext[0] == '.' {
		return ext
	}
	return "." + ext
}
