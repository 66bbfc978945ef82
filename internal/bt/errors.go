package bt

import (
	"errors"
	"fmt"
)

// ErrLocationRoot is returned when a location's root is missing or is not a
// directory. Running anyway would treat every cached file as deleted.
var ErrLocationRoot = errors.New("location root is not an accessible directory")

// ErrFileChanged is returned when a file was modified while it was being
// uploaded. The file is retried on the next run.
var ErrFileChanged = errors.New("file changed during backup")

// FileError is a failure confined to a single file. It is recorded in the
// RunResult and never aborts the location's run.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("Failed to backup *%s*: `%v`", DisplayPath(e.Path), e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }
