package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemStore is an ObjectStore keeping each bucket as a directory:
//
//	<root>/
//	  <bucket>/
//	    <key>     (object content, key separators become directories)
type FileSystemStore struct {
	dir string
}

var _ ObjectStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a store for bucket below root.
// Nothing is created until Validate or the first Put.
func NewFileSystemStore(root, bucket string) *FileSystemStore {
	return &FileSystemStore{dir: filepath.Join(root, bucket)}
}

// Dir returns the directory holding the bucket's objects.
func (s *FileSystemStore) Dir() string {
	return s.dir
}

// Put stores the object using an atomic write (temp file + rename).
func (s *FileSystemStore) Put(ctx context.Context, key string, r io.Reader) error {
	destPath, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	// Create temp file in the same directory to ensure atomic rename works
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func (s *FileSystemStore) Delete(ctx context.Context, key string) error {
	p, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// Validate creates the bucket directory if needed and checks it is a directory.
func (s *FileSystemStore) Validate(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("vault directory not accessible: %w", err)
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("vault directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault path is not a directory: %s", s.dir)
	}
	return nil
}

// objectPath maps key below the bucket directory, rejecting keys that would escape it.
func (s *FileSystemStore) objectPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}
