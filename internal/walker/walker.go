// Package walker implements a synchronous depth-first traversal that
// filters every entry through per-directory override lists and a
// caller-supplied inclusion predicate.
//
// For each child of a directory the walker:
//   - excludes it outright when its name matches the override list in scope
//     (no stat, no predicate, no descent)
//   - otherwise stats it twice (following and not following links) and asks
//     Hooks.Condition; a rejected directory is pruned with its subtree
//   - for an accepted entry, counts it, calls Hooks.OnCondition, and when it
//     is a directory resolves that directory's own override list and descends
//
// A directory's override list replaces the inherited one for its children.
package walker

import (
	"fmt"
	"path"

	mfs "github.com/CageChen/modmirror/internal/fs"
	"github.com/CageChen/modmirror/internal/match"
)

// Entry is one filesystem object visited during traversal.
type Entry struct {
	// Path is the slash-separated path from the filesystem root, root dir included.
	Path string
	// Name is the base name used for pattern matching.
	Name string
	// Stat follows symlinks.
	Stat mfs.FileInfo
	// Lstat describes the entry itself.
	Lstat mfs.FileInfo
}

// IsDir reports whether the entry is, or links to, a directory.
func (e Entry) IsDir() bool { return e.Stat.IsDir }

// IsSymlink reports whether the entry itself is a symbolic link.
func (e Entry) IsSymlink() bool { return e.Lstat.IsSymlink }

// Disposition is the final decision for a visited entry.
type Disposition int

// Dispositions, in the order the walker can reach them.
const (
	Included Disposition = iota
	ExcludedByOverride
	ExcludedByCondition
)

func (d Disposition) String() string {
	switch d {
	case Included:
		return "in"
	case ExcludedByOverride:
		return "out-byNpmignore"
	case ExcludedByCondition:
		return "out-byCondition"
	default:
		return fmt.Sprintf("Disposition(%d)", int(d))
	}
}

// Counters aggregates dispositions over one traversal.
// Included+Excluded equals the number of visited entries, root excluded.
type Counters struct {
	Included int `json:"included"`
	Excluded int `json:"excluded"`
}

// Total returns the number of visited entries.
func (c Counters) Total() int { return c.Included + c.Excluded }

// Hooks are the caller's capabilities. Embed NopHooks to implement only
// the ones needed.
type Hooks interface {
	// Condition is the inclusion predicate.
	Condition(e Entry) bool
	// OnCondition runs once for each accepted entry.
	OnCondition(e Entry)
	// DirOverride returns the override list for an accepted directory, or
	// nil for none. Only called when Options.Overrides is set.
	DirOverride(dir string) []string
	// Log receives every disposition.
	Log(path string, d Disposition)
}

// NopHooks accepts everything and does nothing.
type NopHooks struct{}

// Condition implements Hooks.
func (NopHooks) Condition(Entry) bool { return true }

// OnCondition implements Hooks.
func (NopHooks) OnCondition(Entry) {}

// DirOverride implements Hooks.
func (NopHooks) DirOverride(string) []string { return nil }

// Log implements Hooks.
func (NopHooks) Log(string, Disposition) {}

// Options controls a Walker.
type Options struct {
	// Overrides enables per-directory override lists.
	Overrides bool
	// NoRecurse visits only the root's direct children.
	NoRecurse bool
	// Matcher tests names against override lists. Defaults to a
	// case-sensitive glob matcher.
	Matcher match.Matcher
}

// Walker traverses one FileSystem.
type Walker struct {
	fsys    mfs.FileSystem
	hooks   Hooks
	opts    Options
	matcher match.Matcher
}

// New creates a Walker. A nil hooks value behaves like NopHooks.
func New(fsys mfs.FileSystem, hooks Hooks, opts Options) *Walker {
	if hooks == nil {
		hooks = NopHooks{}
	}
	m := opts.Matcher
	if m == nil {
		m = match.Glob{}
	}
	return &Walker{
		fsys:    fsys,
		hooks:   hooks,
		opts:    opts,
		matcher: m,
	}
}

// state is owned by one Walk or Collect call.
type state struct {
	counters Counters
	collect  bool
	paths    []string
}

// Walk traverses root and returns the aggregate counters. On error the
// counters reflect every entry decided before the failure.
func (w *Walker) Walk(root string) (Counters, error) {
	st := &state{}
	err := w.walkDir(root, nil, st)
	return st.counters, err
}

// Collect traverses root and returns the path of every included entry in
// visit order.
func (w *Walker) Collect(root string) ([]string, error) {
	st := &state{collect: true}
	err := w.walkDir(root, nil, st)
	return st.paths, err
}

func (w *Walker) walkDir(dir string, override []string, st *state) error {
	entries, err := w.fsys.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("walk: readdir %q: %w", dir, err)
	}
	for _, de := range entries {
		if err := w.visit(dir, de.Name, override, st); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) visit(dir, name string, override []string, st *state) error {
	p := path.Join(dir, name)

	if len(override) > 0 && w.matcher.Match(name, override) {
		st.counters.Excluded++
		w.hooks.Log(p, ExcludedByOverride)
		return nil
	}

	stat, err := w.fsys.Stat(p)
	if err != nil {
		return fmt.Errorf("walk: stat %q: %w", p, err)
	}
	lstat, err := w.fsys.Lstat(p)
	if err != nil {
		return fmt.Errorf("walk: lstat %q: %w", p, err)
	}
	e := Entry{Path: p, Name: name, Stat: stat, Lstat: lstat}

	if !w.hooks.Condition(e) {
		st.counters.Excluded++
		w.hooks.Log(p, ExcludedByCondition)
		return nil
	}

	st.counters.Included++
	if st.collect {
		st.paths = append(st.paths, p)
	}
	w.hooks.Log(p, Included)
	w.hooks.OnCondition(e)

	if !e.IsDir() || w.opts.NoRecurse {
		return nil
	}
	var childOverride []string
	if w.opts.Overrides {
		childOverride = w.hooks.DirOverride(p)
	}
	return w.walkDir(p, childOverride, st)
}
