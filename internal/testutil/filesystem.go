package testutil

import (
	"bytes"
	"cmp"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"msync/internal/bt"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Failures can be injected per path. Safe for concurrent use.
type MockFilesystemManager struct {
	mu        sync.Mutex
	files     map[string]*MockFile
	openErrs  map[string]error
	walkErrs  map[string]error
	ignored   map[string]bool
	openCalls int
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:    make(map[string]*MockFile),
		openErrs: make(map[string]error),
		walkErrs: make(map[string]error),
		ignored:  make(map[string]bool),
	}
}

// AddFile adds a file with the given content and a fixed modification time.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.AddFileAt(path, content, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// AddFileAt adds a file with the given content and modification time,
// replacing any existing file at path.
func (m *MockFilesystemManager) AddFileAt(path string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     modTime,
	}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{
		Permissions: 0755,
		IsDirectory: true,
	}
}

// Remove deletes path from the mock filesystem.
func (m *MockFilesystemManager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// FailOpen makes opening path fail with err. A nil err clears the failure.
func (m *MockFilesystemManager) FailOpen(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	setOrClear(m.openErrs, path, err)
}

// FailWalk makes Walk yield err for path instead of the file.
func (m *MockFilesystemManager) FailWalk(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	setOrClear(m.walkErrs, path, err)
}

// Ignore marks path as ignored.
func (m *MockFilesystemManager) Ignore(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored[path] = true
}

// OpenCalls returns how many times Open was called.
func (m *MockFilesystemManager) OpenCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*bt.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("stat path: %w", fs.ErrNotExist)
	}
	return bt.NewPath(absPath, file.IsDirectory, newMockFileInfo(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *bt.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openCalls++

	if err := m.openErrs[path.String()]; err != nil {
		return nil, err
	}
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *bt.Path) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	return newMockFileInfo(path.String(), file), nil
}

func (m *MockFilesystemManager) IsRegularFile(absPath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[absPath]
	return ok && !file.IsDirectory, nil
}

// Walk yields the files below root in lexical order.
func (m *MockFilesystemManager) Walk(root *bt.Path) iter.Seq2[*bt.Path, error] {
	return func(yield func(*bt.Path, error) bool) {
		type entry struct {
			path string
			file MockFile
			err  error
		}

		m.mu.Lock()
		prefix := strings.TrimSuffix(root.String(), "/") + "/"
		var entries []entry
		for p, f := range m.files {
			if f.IsDirectory || !strings.HasPrefix(p, prefix) {
				continue
			}
			entries = append(entries, entry{path: p, file: *f, err: m.walkErrs[p]})
		}
		m.mu.Unlock()

		slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.path, b.path) })
		for _, e := range entries {
			if e.err != nil {
				if !yield(bt.NewPath(e.path, false, nil), e.err) {
					return
				}
				continue
			}
			if !yield(bt.NewPath(e.path, false, newMockFileInfo(e.path, &e.file)), nil) {
				return
			}
		}
	}
}

func (m *MockFilesystemManager) IsIgnored(path *bt.Path, rootDir string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ignored[path.String()], nil
}

func setOrClear(m map[string]error, key string, err error) {
	if err == nil {
		delete(m, key)
		return
	}
	m[key] = err
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	mode := f.Permissions
	if f.IsDirectory {
		mode |= fs.ModeDir
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    mode,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ bt.FilesystemManager = (*MockFilesystemManager)(nil)
