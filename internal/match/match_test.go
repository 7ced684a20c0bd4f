package match

import (
	"errors"
	"testing"
)

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		nocase   bool
		want     bool
	}{
		{"b.log", []string{"*.log"}, false, true},
		{"a.txt", []string{"*.log"}, false, false},
		{"README.md", []string{"readme*"}, true, true},
		{"README.md", []string{"readme*"}, false, false},
		{"test", []string{"te?t"}, false, true},
		{"file1.js", []string{"file[0-9].js"}, false, true},
		{"fileX.js", []string{"file[0-9].js"}, false, false},
		{"index.js", []string{"**"}, false, true},
		{"index.js", []string{"!*.md"}, false, true},
		{"index.md", []string{"!*.md"}, false, false},
		{"index.md", []string{"!*.md", "index.*"}, false, true},
		{"anything", nil, false, false},
		{"anything", []string{}, true, false},
		{"anything", []string{""}, false, false},
		{"x", []string{"!"}, false, false},
		{"bad", []string{"[bad"}, false, false},
	}

	for _, tt := range tests {
		got := Glob{CaseInsensitive: tt.nocase}.Match(tt.name, tt.patterns)
		if got != tt.want {
			t.Errorf("Glob{%v}.Match(%q, %q) = %v, want %v", tt.nocase, tt.name, tt.patterns, got, tt.want)
		}
	}
}

func TestGlobCase(t *testing.T) {
	if !(Glob{CaseInsensitive: true}).Match("CHANGELOG.MD", []string{"*.md"}) {
		t.Error("expected case-insensitive match")
	}
	if (Glob{}).Match("CHANGELOG.MD", []string{"*.md"}) {
		t.Error("expected case-sensitive miss")
	}
}

func TestGitignoreMatch(t *testing.T) {
	g := &Gitignore{CaseInsensitive: true}

	if !g.Match("debug.log", []string{"*.log"}) {
		t.Error("expected *.log to match debug.log")
	}
	if g.Match("keep.log", []string{"*.log", "!keep.log"}) {
		t.Error("expected !keep.log to re-include keep.log")
	}
	if !g.Match("Test", []string{"test"}) {
		t.Error("expected case-insensitive match")
	}
	if g.Match("anything", nil) {
		t.Error("expected empty list to never match")
	}

	// second call hits the compiled cache
	if !g.Match("other.log", []string{"*.log"}) {
		t.Error("expected cached matcher to match")
	}
}

func TestNew(t *testing.T) {
	if _, err := New("", false); err != nil {
		t.Errorf("default engine: %v", err)
	}
	m, err := New(EngineGitignore, false)
	if err != nil {
		t.Fatalf("gitignore engine: %v", err)
	}
	if _, ok := m.(*Gitignore); !ok {
		t.Errorf("expected *Gitignore, got %T", m)
	}
	if _, err := New("regex", false); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate([]string{"*.log", "test/", "!keep.md", "**/fixtures"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := Validate([]string{"ok", "[bad", ""})
	if !errors.Is(err, ErrBadPattern) {
		t.Fatalf("expected ErrBadPattern, got %v", err)
	}
}
