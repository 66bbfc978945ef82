package bt

import (
	"io"
	"io/fs"
	"iter"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and rejects
	// devices, named pipes and sockets.
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	// Unlike path.Info() which returns cached info from when the path was resolved,
	// this always fetches current info from the filesystem.
	Stat(path *Path) (fs.FileInfo, error)

	// IsRegularFile reports whether absPath currently names a regular file.
	// A path that does not exist is not an error.
	IsRegularFile(absPath string) (bool, error)

	// Walk lazily yields every regular file below root, depth first.
	// An unreadable entry yields its path with a non-nil error and the walk
	// continues with its siblings. Breaking out of the loop stops the walk.
	Walk(root *Path) iter.Seq2[*Path, error]

	// IsIgnored reports whether path should be left out of the backup of the
	// location rooted at rootDir.
	IsIgnored(path *Path, rootDir string) (bool, error)
}
