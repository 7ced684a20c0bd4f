package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	mfs "github.com/CageChen/modmirror/internal/fs"
)

func TestCopierKeepsMode(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "bin", "cli"), []byte("#!/bin/sh"), 0o755); err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	c := NewCopier(mfs.NewLocalFS(src), osfs.New(dst))
	if err := c.Copy("bin/cli", 0o755); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dst, "bin", "cli"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("mode = %v, want executable", info.Mode())
	}
}

func TestCopierReplacesDestinationLink(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "f.js"), []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	outside := filepath.Join(t.TempDir(), "victim.js")
	if err := os.WriteFile(outside, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(dst, "f.js")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	c := NewCopier(mfs.NewLocalFS(src), osfs.New(dst))
	if err := c.Copy("f.js", 0o644); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(outside); string(data) != "keep" {
		t.Errorf("link target overwritten: %q", data)
	}
	if data, _ := os.ReadFile(filepath.Join(dst, "f.js")); string(data) != "new" {
		t.Errorf("f.js = %q, want %q", data, "new")
	}
}

func TestCopierMissingSource(t *testing.T) {
	c := NewCopier(mfs.NewLocalFS(t.TempDir()), memfs.New())
	if err := c.Copy("nope.js", 0); err == nil {
		t.Error("expected error")
	}
}

func TestCopierDefaultMode(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.js"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	dst := memfs.New()
	if err := NewCopier(mfs.NewLocalFS(src), dst).Copy("a.js", 0); err != nil {
		t.Fatal(err)
	}
	if data, err := util.ReadFile(dst, "a.js"); err != nil || string(data) != "a" {
		t.Errorf("a.js = %q, %v", data, err)
	}
}

func TestCopierMkdir(t *testing.T) {
	dst := memfs.New()
	c := NewCopier(mfs.NewLocalFS(t.TempDir()), dst)
	if err := c.Mkdir("node_modules/empty"); err != nil {
		t.Fatal(err)
	}
	info, err := dst.Stat("node_modules/empty")
	if err != nil || !info.IsDir() {
		t.Errorf("Stat = %v, %v", info, err)
	}
}
