package mirror

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"

	mfs "github.com/CageChen/modmirror/internal/fs"
)

// Copier copies files from a source FileSystem to a billy destination,
// keeping the relative path. Reads follow symlinks, so the destination
// always receives a regular file.
type Copier struct {
	src mfs.FileSystem
	dst billy.Filesystem
}

// NewCopier creates a Copier.
func NewCopier(src mfs.FileSystem, dst billy.Filesystem) *Copier {
	return &Copier{src: src, dst: dst}
}

// Mkdir creates the directory p, replacing a link left at the destination.
func (c *Copier) Mkdir(p string) error {
	if info, err := c.dst.Lstat(p); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := c.dst.Remove(p); err != nil {
			return fmt.Errorf("copy: replace link %q: %w", p, err)
		}
	}
	if err := c.dst.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("copy: mkdir %q: %w", p, err)
	}
	return nil
}

// Copy copies the file at p. perm is applied when the file is created.
func (c *Copier) Copy(p string, perm os.FileMode) error {
	in, err := c.src.Open(p)
	if err != nil {
		return fmt.Errorf("copy: open %q: %w", p, err)
	}
	defer in.Close()

	if dir := path.Dir(p); dir != "." {
		if err := c.dst.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("copy: mkdir %q: %w", dir, err)
		}
	}

	// Never write through a link left at the destination.
	if info, err := c.dst.Lstat(p); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := c.dst.Remove(p); err != nil {
			return fmt.Errorf("copy: replace link %q: %w", p, err)
		}
	}

	if perm&os.ModePerm == 0 {
		perm = 0o644
	}
	out, err := c.dst.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm&os.ModePerm)
	if err != nil {
		return fmt.Errorf("copy: create %q: %w", p, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy: write %q: %w", p, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy: close %q: %w", p, err)
	}
	return nil
}
