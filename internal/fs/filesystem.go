package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"msync/internal/bt"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// Symlinks are never followed below a location root.
type OSFilesystemManager struct {
	ignorePatterns []string

	mu       sync.Mutex
	matchers map[string]*IgnoreMatcher // location root -> matcher
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignorePatterns apply to every location, in addition to each root's ignore file.
func NewOSFilesystemManager(ignorePatterns []string) *OSFilesystemManager {
	return &OSFilesystemManager{
		ignorePatterns: ignorePatterns,
		matchers:       make(map[string]*IgnoreMatcher),
	}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*bt.Path, error) {
	// Convert to absolute path
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	// Stat the path
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return bt.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *bt.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *bt.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// IsRegularFile reports whether absPath is currently a regular file.
// Symlinks are not followed, matching what Walk yields.
func (m *OSFilesystemManager) IsRegularFile(absPath string) (bool, error) {
	info, err := os.Lstat(absPath)
	if err != nil {
		// ENOTDIR: a parent directory was replaced by a file.
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Walk lazily yields the regular files below root in lexical, depth-first order.
func (m *OSFilesystemManager) Walk(root *bt.Path) iter.Seq2[*bt.Path, error] {
	return func(yield func(*bt.Path, error) bool) {
		start := root.String()
		// WalkDir does not descend into a symlinked root unless it ends in a separator.
		if info, err := os.Lstat(start); err == nil && info.Mode()&os.ModeSymlink != 0 {
			start += string(filepath.Separator)
		}
		filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				isDir := d != nil && d.IsDir()
				if !yield(bt.NewPath(p, isDir, nil), fmt.Errorf("walking: %w", err)) {
					return filepath.SkipAll
				}
				if isDir {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				if !yield(bt.NewPath(p, false, nil), fmt.Errorf("stat: %w", err)) {
					return filepath.SkipAll
				}
				return nil
			}
			if !yield(bt.NewPath(p, false, info), nil) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

// IsIgnored reports whether path matches the configured patterns or the
// patterns in rootDir's ignore file. The ignore file is read once per root.
func (m *OSFilesystemManager) IsIgnored(path *bt.Path, rootDir string) (bool, error) {
	matcher, err := m.matcherFor(rootDir)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(rootDir, path.String())
	if err != nil {
		return false, fmt.Errorf("calculating relative path: %w", err)
	}
	return matcher.Match(rel), nil
}

func (m *OSFilesystemManager) matcherFor(rootDir string) (*IgnoreMatcher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if matcher, ok := m.matchers[rootDir]; ok {
		return matcher, nil
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(rootDir, IgnoreFileName))
	if err != nil {
		return nil, err
	}

	patterns := append([]string{}, defaultIgnorePatterns...)
	patterns = append(patterns, m.ignorePatterns...)
	patterns = append(patterns, filePatterns...)

	matcher := NewIgnoreMatcher(patterns)
	m.matchers[rootDir] = matcher
	return matcher, nil
}

// Compile-time check that OSFilesystemManager implements bt.FilesystemManager interface
var _ bt.FilesystemManager = (*OSFilesystemManager)(nil)
