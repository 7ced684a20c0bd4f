// Package match tests entry names against lists of glob patterns.
package match

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Engine names accepted by New.
const (
	EngineGlob      = "glob"
	EngineGitignore = "gitignore"
)

// ErrBadPattern is returned by Validate for a malformed pattern.
var ErrBadPattern = errors.New("bad pattern")

// ErrUnknownEngine is returned by New for an unsupported engine name.
var ErrUnknownEngine = errors.New("unknown match engine")

// Matcher reports whether a name matches any pattern of a list.
// An empty list never matches.
type Matcher interface {
	Match(name string, patterns []string) bool
}

// New returns the matcher for the named engine.
func New(engine string, caseInsensitive bool) (Matcher, error) {
	switch engine {
	case "", EngineGlob:
		return Glob{CaseInsensitive: caseInsensitive}, nil
	case EngineGitignore:
		return &Gitignore{CaseInsensitive: caseInsensitive}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// Glob matches with doublestar semantics: "*", "?", "**", bracket classes.
// A leading "!" negates a single pattern, so "!*.js" matches every name
// that does not end in ".js". Patterns are tried in order and the first
// match wins.
type Glob struct {
	CaseInsensitive bool
}

// Match implements Matcher.
func (g Glob) Match(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	if g.CaseInsensitive {
		name = strings.ToLower(name)
	}
	for _, pattern := range patterns {
		if g.matchOne(name, pattern) {
			return true
		}
	}
	return false
}

func (g Glob) matchOne(name, pattern string) bool {
	if pattern == "" {
		return false
	}
	if g.CaseInsensitive {
		pattern = strings.ToLower(pattern)
	}
	negate := false
	if strings.HasPrefix(pattern, "!") {
		negate = true
		pattern = pattern[1:]
		if pattern == "" {
			return false
		}
	}
	ok, err := doublestar.Match(pattern, name)
	if err != nil {
		return false
	}
	return ok != negate
}

// Gitignore matches with gitignore semantics, including "!" re-includes
// that apply to earlier lines of the same list.
type Gitignore struct {
	CaseInsensitive bool

	mu    sync.Mutex
	cache map[string]*gitignore.GitIgnore
}

// Match implements Matcher.
func (g *Gitignore) Match(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	if g.CaseInsensitive {
		name = strings.ToLower(name)
	}
	return g.compiled(patterns).MatchesPath(name)
}

func (g *Gitignore) compiled(patterns []string) *gitignore.GitIgnore {
	key := strings.Join(patterns, "\n")

	g.mu.Lock()
	defer g.mu.Unlock()

	if gi, ok := g.cache[key]; ok {
		return gi
	}
	lines := patterns
	if g.CaseInsensitive {
		lines = make([]string, len(patterns))
		for i, p := range patterns {
			lines[i] = strings.ToLower(p)
		}
	}
	gi := gitignore.CompileIgnoreLines(lines...)
	if g.cache == nil {
		g.cache = make(map[string]*gitignore.GitIgnore)
	}
	g.cache[key] = gi
	return gi
}

// Validate checks every pattern for glob syntax errors.
func Validate(patterns []string) error {
	var errs []error
	for i, p := range patterns {
		body := strings.TrimPrefix(strings.TrimSuffix(p, "/"), "!")
		if body == "" {
			errs = append(errs, fmt.Errorf("%w: empty pattern at index %d", ErrBadPattern, i))
			continue
		}
		if !doublestar.ValidatePattern(body) {
			errs = append(errs, fmt.Errorf("%w: %q at index %d", ErrBadPattern, p, i))
		}
	}
	return errors.Join(errs...)
}
