// Package policy composes the inclusion predicate used by a mirror run.
package policy

import (
	"path"
	"strings"

	"github.com/CageChen/modmirror/internal/ignore"
	"github.com/CageChen/modmirror/internal/manifest"
	"github.com/CageChen/modmirror/internal/match"
	"github.com/CageChen/modmirror/internal/walker"
)

// Reason tells why an entry was rejected. Accept means it was not.
type Reason int

// Reasons, in evaluation order.
const (
	Accept Reason = iota
	IgnoreList
	DevDependency
	Custom
)

func (r Reason) String() string {
	switch r {
	case Accept:
		return "accept"
	case IgnoreList:
		return "ignore-list"
	case DevDependency:
		return "dev-dependency"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// Policy evaluates its checks in a fixed order and stops at the first
// rejection. With every check disabled it accepts everything.
type Policy struct {
	// Ignore is the global list, matched by name against the bucket for
	// the entry kind.
	Ignore ignore.List
	// CheckIgnoreList enables the global list.
	CheckIgnoreList bool

	// DevDependencies are directory names never mirrored.
	DevDependencies manifest.DevDependencies
	// ExcludeDevDependencies enables the dev-dependency check.
	ExcludeDevDependencies bool

	// Extra is an optional caller rule run last; returning false rejects.
	Extra func(walker.Entry) bool

	// Matcher defaults to a case-insensitive glob matcher.
	Matcher match.Matcher
}

// Decide returns the reason e is rejected, or Accept.
func (p *Policy) Decide(e walker.Entry) Reason {
	if p.CheckIgnoreList {
		m := p.Matcher
		if m == nil {
			m = match.Glob{CaseInsensitive: true}
		}
		if m.Match(e.Name, p.Ignore.For(e.IsDir())) {
			return IgnoreList
		}
	}

	if p.ExcludeDevDependencies && e.IsDir() && p.isDevDependency(e) {
		return DevDependency
	}

	if p.Extra != nil && !p.Extra(e) {
		return Custom
	}
	return Accept
}

// Allow is Decide reduced to a walker predicate.
func (p *Policy) Allow(e walker.Entry) bool {
	return p.Decide(e) == Accept
}

// isDevDependency matches the base name, and the scoped "@scope/name" form
// when the parent directory is a scope.
func (p *Policy) isDevDependency(e walker.Entry) bool {
	if p.DevDependencies.Has(e.Name) {
		return true
	}
	parent := path.Base(path.Dir(e.Path))
	if strings.HasPrefix(parent, "@") {
		return p.DevDependencies.Has(parent + "/" + e.Name)
	}
	return false
}
