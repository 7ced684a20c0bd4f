// Package logfile appends trace lines to per-category, per-day log files.
package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Categories written by a mirror run.
const (
	Copied              = "copied"
	ExcludedByCondition = "excluded-byCondition"
	ExcludedByOverride  = "excluded-byNpmignore"
)

// ErrUnknownCategory is returned for a category the sink was not created with.
var ErrUnknownCategory = errors.New("unknown log category")

// Sink appends lines to <dir>/<category>-YYYY-MM-DD.log. The date is taken
// at each write, so a long-running process rolls over at midnight.
type Sink struct {
	dir        string
	categories map[string]bool
	now        func() time.Time
	mu         sync.Mutex
}

// New creates a Sink for the given categories, creating dir if needed.
func New(dir string, categories ...string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	s := &Sink{
		dir:        dir,
		categories: make(map[string]bool, len(categories)),
		now:        time.Now,
	}
	for _, c := range categories {
		s.categories[c] = true
	}
	return s, nil
}

// Path returns the file the next line of category goes to.
func (s *Sink) Path(category string) (string, error) {
	if !s.categories[category] {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return filepath.Join(s.dir, category+"-"+s.now().Format("2006-01-02")+".log"), nil
}

// WriteLine appends line and a newline to the category's file.
func (s *Sink) WriteLine(category, line string) error {
	p, err := s.Path(category)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", p, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append log %s: %w", p, err)
	}
	return f.Close()
}
