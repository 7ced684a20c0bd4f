package report

import (
	"strings"
	"testing"
	"time"

	"github.com/CageChen/modmirror/internal/mirror"
)

func sample() *mirror.Report {
	return &mirror.Report{
		Source:      "app/node_modules",
		Destination: "out/node_modules",
		Included:    6,
		Excluded:    5,
		ByOverride:  1,
		ByCondition: 4,
		ByReason:    map[string]int{"ignore-list": 2, "dev-dependency": 2},
		Files:       3,
		Dirs:        3,
		Started:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
	}
}

func TestMarkdown(t *testing.T) {
	md := string(Markdown(sample()))
	for _, want := range []string{
		"# Mirror report",
		"| Included | 6 |",
		"| Excluded | 5 |",
		"| override file | 1 |",
		"| dev-dependency | 2 |",
		"| Duration | 1.5s |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Index(md, "dev-dependency") > strings.Index(md, "ignore-list") {
		t.Error("reasons not sorted")
	}
}

func TestMarkdownNothingExcluded(t *testing.T) {
	r := sample()
	r.Excluded = 0
	if md := string(Markdown(r)); !strings.Contains(md, "Nothing was excluded.") {
		t.Errorf("markdown =\n%s", md)
	}
}

func TestRender(t *testing.T) {
	res, err := NewRenderer().Render(sample())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if res.Title != "Mirror report" {
		t.Errorf("Title = %q", res.Title)
	}
	if !strings.Contains(res.HTML, "<table>") {
		t.Error("expected a table in HTML")
	}
	if len(res.Sections) != 3 {
		t.Fatalf("sections = %+v", res.Sections)
	}
	if res.Sections[1].Anchor != "totals" || res.Sections[1].Level != 2 {
		t.Errorf("section 1 = %+v", res.Sections[1])
	}
	if !strings.Contains(res.HTML, `id="totals"`) {
		t.Error("heading id does not match anchor")
	}
}

func TestRenderEscapesError(t *testing.T) {
	r := sample()
	r.Error = "walk: stat <script>|x"
	res, err := NewRenderer().Render(r)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(res.HTML, "<script>") {
		t.Errorf("raw HTML passed through:\n%s", res.HTML)
	}
}

func TestPage(t *testing.T) {
	page := string(Page(&Result{Title: "a<b", HTML: "<p>x</p>\n"}))
	if !strings.Contains(page, "<title>a&lt;b</title>") || !strings.Contains(page, "<p>x</p>") {
		t.Errorf("page =\n%s", page)
	}
}

func TestAnchor(t *testing.T) {
	tests := []struct {
		input  string
		output string
	}{
		{"Mirror report", "mirror-report"},
		{"Test! @# Content", "test-content"},
		{"Multiple   Spaces", "multiple-spaces"},
		{"-Start-and-End-", "start-and-end"},
	}
	for _, tt := range tests {
		if got := anchor(tt.input); got != tt.output {
			t.Errorf("anchor(%q) = %q, want %q", tt.input, got, tt.output)
		}
	}
}

func TestMarkdownPipeInPath(t *testing.T) {
	r := sample()
	r.Source = "/srv/a|b/node_modules"
	md := string(Markdown(r))
	if !strings.Contains(md, "| Source | `/srv/a\\|b/node_modules` |") {
		t.Errorf("pipe not escaped in source row:\n%s", md)
	}

	res, err := NewRenderer().Render(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.HTML, "<code>/srv/a|b/node_modules</code>") {
		t.Errorf("source path split across cells:\n%s", res.HTML)
	}
}
