package bt

import "io/fs"

// Path is an absolute filesystem path together with the metadata observed
// when it was resolved or walked. Paths come from a FilesystemManager.
type Path struct {
	absPath string
	isDir   bool
	info    fs.FileInfo
}

// NewPath creates a Path from its components. info may be nil when the
// metadata is unknown, for example for an entry the walk could not stat.
func NewPath(absPath string, isDir bool, info fs.FileInfo) *Path {
	return &Path{
		absPath: absPath,
		isDir:   isDir,
		info:    info,
	}
}

func (p *Path) String() string {
	return p.absPath
}

func (p *Path) IsDir() bool {
	return p.isDir
}

// Info returns the metadata observed when the path was created, or nil.
func (p *Path) Info() fs.FileInfo {
	return p.info
}

// Size returns the observed size in bytes, or 0 when the metadata is unknown.
func (p *Path) Size() int64 {
	if p.info == nil {
		return 0
	}
	return p.info.Size()
}
