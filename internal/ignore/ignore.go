// Package ignore builds the global ignore list and reads per-directory
// override lists from sentinel files such as .npmignore.
package ignore

import (
	"path"
	"regexp"
	"strings"

	mfs "github.com/CageChen/modmirror/internal/fs"
)

// DefaultFileName is the conventional sentinel file name.
const DefaultFileName = ".npmignore"

// DefaultPatterns is the global list used when the configuration does not
// provide one. Entries ending in "/" apply to directories only.
var DefaultPatterns = []string{
	".bin/",
	".github/",
	".nyc_output/",
	".idea/",
	".vscode/",
	"__tests__/",
	"coverage/",
	"test/",
	"tests/",
	"example/",
	"examples/",
	"*.log",
	"*.map",
	"*.ts.map",
	".DS_Store",
	".editorconfig",
	".eslintrc*",
	".prettierrc*",
	".travis.yml",
	".gitattributes",
	"Makefile",
	"Gruntfile.js",
	"Gulpfile.js",
}

// List holds glob patterns bucketed by the kind of entry they apply to.
type List struct {
	Files []string
	Dirs  []string
}

// Split buckets raw patterns: a trailing "/" marks a directory pattern and
// is stripped; everything else is a file pattern, kept as-is. Order within
// each bucket follows the input.
func Split(raw []string) List {
	var l List
	for _, item := range raw {
		if dir, ok := strings.CutSuffix(item, "/"); ok {
			l.Dirs = append(l.Dirs, dir)
			continue
		}
		l.Files = append(l.Files, item)
	}
	return l
}

// For returns the bucket that applies to an entry.
func (l List) For(isDir bool) []string {
	if isDir {
		return l.Dirs
	}
	return l.Files
}

var lineBreak = regexp.MustCompile(`\r\n|\r|\n`)

// ParseOverride turns sentinel file text into one pattern per line. Any
// line-ending style is accepted. Blank lines and "#" comments are dropped.
// It returns nil when no pattern remains.
func ParseOverride(text string) []string {
	var patterns []string
	for _, line := range lineBreak.Split(text, -1) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// ReadOverride reads the sentinel file fileName inside dir. A missing or
// unreadable file yields nil: no override for that subtree.
func ReadOverride(fsys mfs.FileSystem, dir, fileName string) []string {
	if fileName == "" {
		fileName = DefaultFileName
	}
	data, err := fsys.ReadFile(path.Join(dir, fileName))
	if err != nil {
		return nil
	}
	return ParseOverride(string(data))
}
