// Package fs provides filesystem abstractions for reading a source tree from
// local disk or from a git ref.
package fs

import (
	"io"
	"os"
	"time"
)

// FileInfo holds file metadata.
type FileInfo struct {
	Name      string
	IsDir     bool
	IsSymlink bool
	Mode      os.FileMode
	Size      int64
	ModTime   time.Time
}

// DirEntry represents a single directory entry.
type DirEntry struct {
	Name  string
	IsDir bool
}

// FileSystem abstracts the read side of a mirror so callers can walk either
// the local filesystem or a git tree. Paths are slash-separated and relative
// to the filesystem root.
//
// Stat and Open follow symbolic links; Lstat does not.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	Open(path string) (io.ReadCloser, error)
	Stat(path string) (FileInfo, error)
	Lstat(path string) (FileInfo, error)
	ReadDir(path string) ([]DirEntry, error)
}
