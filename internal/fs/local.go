package fs

import (
	"io"
	"os"
	"path/filepath"
)

// LocalFS implements FileSystem using the local filesystem.
type LocalFS struct {
	root string
}

// NewLocalFS creates a LocalFS rooted at the given directory.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{root: root}
}

// Abs returns the host path for a path relative to the root.
func (l *LocalFS) Abs(path string) string {
	if path == "" || path == "." {
		return l.root
	}
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// ReadFile reads the contents of the file at the given path relative to the root.
func (l *LocalFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(l.Abs(path))
}

// Open opens the file at the given path for reading, following symlinks.
func (l *LocalFS) Open(path string) (io.ReadCloser, error) {
	return os.Open(l.Abs(path))
}

// Stat returns metadata for the target of path, following symlinks.
func (l *LocalFS) Stat(path string) (FileInfo, error) {
	info, err := os.Stat(l.Abs(path))
	if err != nil {
		return FileInfo{}, err
	}
	return toFileInfo(info), nil
}

// Lstat returns metadata for path itself without following a final symlink.
func (l *LocalFS) Lstat(path string) (FileInfo, error) {
	info, err := os.Lstat(l.Abs(path))
	if err != nil {
		return FileInfo{}, err
	}
	return toFileInfo(info), nil
}

// ReadDir lists the immediate children of the directory at the given path relative to the root.
// IsDir reflects the entry itself, so a symlink to a directory reports false here.
func (l *LocalFS) ReadDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(l.Abs(path))
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, len(entries))
	for i, e := range entries {
		result[i] = DirEntry{
			Name:  e.Name(),
			IsDir: e.IsDir(),
		}
	}
	return result, nil
}

func toFileInfo(info os.FileInfo) FileInfo {
	return FileInfo{
		Name:      info.Name(),
		IsDir:     info.IsDir(),
		IsSymlink: info.Mode()&os.ModeSymlink != 0,
		Mode:      info.Mode(),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
	}
}
