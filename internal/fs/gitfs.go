package fs

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// maxLinkHops bounds symlink resolution inside a tree.
const maxLinkHops = 40

// GitFS implements FileSystem by reading from a git ref (branch, tag, or commit).
// Symlinks stored in the tree are resolved within the tree; a link that
// points outside of it cannot be followed.
type GitFS struct {
	ref     string
	tree    *object.Tree
	modTime time.Time
}

// NewGitFS opens the repository containing repoPath and resolves ref to a tree.
func NewGitFS(repoPath, ref string) (*GitFS, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("git open %s: %w", repoPath, err)
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return nil, fmt.Errorf("git resolve %s: %w", ref, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("git commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("git tree %s: %w", hash, err)
	}
	return &GitFS{
		ref:     ref,
		tree:    tree,
		modTime: commit.Committer.When,
	}, nil
}

// ReadFile reads the contents of the file at the given path from the git ref.
func (g *GitFS) ReadFile(p string) ([]byte, error) {
	f, err := g.file(p)
	if err != nil {
		return nil, err
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, fmt.Errorf("git read %s: %w", p, err)
	}
	return []byte(contents), nil
}

// Open returns a reader over the blob at path, following symlinks.
func (g *GitFS) Open(p string) (io.ReadCloser, error) {
	f, err := g.file(p)
	if err != nil {
		return nil, err
	}
	r, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("git open %s: %w", p, err)
	}
	return r, nil
}

// Stat returns metadata for the target of path, following symlinks.
func (g *GitFS) Stat(p string) (FileInfo, error) {
	resolved, err := g.resolve(p, true)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := g.entryInfo(resolved)
	if err != nil {
		return FileInfo{}, err
	}
	if name := baseName(clean(p)); name != "" {
		info.Name = name
	}
	return info, nil
}

// Lstat returns metadata for path itself without following a final symlink.
func (g *GitFS) Lstat(p string) (FileInfo, error) {
	resolved, err := g.resolve(p, false)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := g.entryInfo(resolved)
	if err != nil {
		return FileInfo{}, err
	}
	if name := baseName(clean(p)); name != "" {
		info.Name = name
	}
	return info, nil
}

// entryInfo describes the tree entry at a link-free path.
func (g *GitFS) entryInfo(p string) (FileInfo, error) {
	if p == "" {
		return FileInfo{
			Name:    g.ref,
			IsDir:   true,
			Mode:    os.ModeDir | 0o755,
			ModTime: g.modTime,
		}, nil
	}

	entry, err := g.tree.FindEntry(p)
	if err != nil {
		return FileInfo{}, fmt.Errorf("git stat %s: %w", p, os.ErrNotExist)
	}

	info := FileInfo{
		Name:    baseName(p),
		ModTime: g.modTime,
	}
	switch entry.Mode {
	case filemode.Dir:
		info.IsDir = true
		info.Mode = os.ModeDir | 0o755
		return info, nil
	case filemode.Symlink:
		info.IsSymlink = true
		info.Mode = os.ModeSymlink | 0o777
	case filemode.Executable:
		info.Mode = 0o755
	default:
		info.Mode = 0o644
	}

	f, err := g.tree.TreeEntryFile(entry)
	if err == nil {
		info.Size = f.Size
	}
	return info, nil
}

// ReadDir lists the immediate children of the directory at the given path in the git ref.
// Submodule entries are skipped since their content is not part of the tree.
func (g *GitFS) ReadDir(p string) ([]DirEntry, error) {
	p, err := g.resolve(p, true)
	if err != nil {
		return nil, err
	}
	t := g.tree
	if p != "" {
		sub, err := g.tree.Tree(p)
		if err != nil {
			return nil, fmt.Errorf("git readdir %s: %w", p, os.ErrNotExist)
		}
		t = sub
	}

	entries := make([]DirEntry, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Mode == filemode.Submodule {
			continue
		}
		entries = append(entries, DirEntry{
			Name:  e.Name,
			IsDir: e.Mode == filemode.Dir,
		})
	}
	return entries, nil
}

func (g *GitFS) file(p string) (*object.File, error) {
	resolved, err := g.resolve(p, true)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		return nil, fmt.Errorf("cannot read directory as file")
	}
	f, err := g.tree.File(resolved)
	if err != nil {
		return nil, fmt.Errorf("git file %s: %w", p, os.ErrNotExist)
	}
	return f, nil
}

// resolve returns the link-free form of p. Links in leading elements are
// always followed; a link in the final element only when followLast is set.
func (g *GitFS) resolve(p string, followLast bool) (string, error) {
	parts := splitPath(clean(p))
	resolved := ""
	hops := 0
	for len(parts) > 0 {
		cur := path.Join(resolved, parts[0])
		parts = parts[1:]

		entry, err := g.tree.FindEntry(cur)
		if err != nil {
			return "", fmt.Errorf("git stat %s: %w", cur, os.ErrNotExist)
		}
		if entry.Mode != filemode.Symlink || (len(parts) == 0 && !followLast) {
			resolved = cur
			continue
		}

		hops++
		if hops > maxLinkHops {
			return "", fmt.Errorf("git readlink %s: too many levels of symbolic links", p)
		}
		f, err := g.tree.TreeEntryFile(entry)
		if err != nil {
			return "", fmt.Errorf("git readlink %s: %w", cur, err)
		}
		target, err := f.Contents()
		if err != nil {
			return "", fmt.Errorf("git readlink %s: %w", cur, err)
		}
		if path.IsAbs(target) {
			return "", fmt.Errorf("git readlink %s: absolute target %q outside tree", cur, target)
		}
		next := path.Join(resolved, target)
		if next == ".." || strings.HasPrefix(next, "../") {
			return "", fmt.Errorf("git readlink %s: target %q outside tree", cur, target)
		}
		parts = append(splitPath(clean(next)), parts...)
		resolved = ""
	}
	return resolved, nil
}

func splitPath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func clean(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
