// Package report renders mirror run reports as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"

	"github.com/CageChen/modmirror/internal/mirror"
)

// Section is a heading of the rendered report.
type Section struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Anchor string `json:"anchor"`
}

// Result is a rendered report.
type Result struct {
	HTML     string    `json:"html"`
	Sections []Section `json:"sections"`
	Title    string    `json:"title"`
}

// Renderer converts report Markdown to HTML.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a Renderer with GFM tables enabled. Raw HTML in the
// source is not passed through.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)
	return &Renderer{md: md}
}

var cellEscaper = strings.NewReplacer(`|`, `\|`, `*`, `\*`, `_`, `\_`, "`", "\\`", `<`, `&lt;`, `[`, `\[`)

func cell(s string) string { return cellEscaper.Replace(s) }

var codeEscaper = strings.NewReplacer("`", "'", `|`, `\|`)

// codeCell prepares text for a code span inside a table cell. GFM splits
// cells on "|" before parsing code spans, so the pipe is escaped there too.
func codeCell(s string) string { return codeEscaper.Replace(s) }

// Markdown formats r as a Markdown document.
func Markdown(r *mirror.Report) []byte {
	var b bytes.Buffer
	b.WriteString("# Mirror report\n\n")

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Source | `%s` |\n", codeCell(r.Source))
	fmt.Fprintf(&b, "| Destination | `%s` |\n", codeCell(r.Destination))
	fmt.Fprintf(&b, "| Started | %s |\n", r.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "| Duration | %s |\n", r.Duration.Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(&b, "| Error | %s |\n", cell(r.Error))
	}
	b.WriteString("\n## Totals\n\n")
	b.WriteString("| Kind | Count |\n|---|---:|\n")
	rows := []struct {
		name string
		n    int
	}{
		{"Included", r.Included},
		{"Excluded", r.Excluded},
		{"Files copied", r.Files},
		{"Directories", r.Dirs},
		{"Symlinked directories", r.SymlinkDirs},
		{"Copy failures", r.CopyFailures},
		{"Dev dependencies", r.DevDependencies},
	}
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %d |\n", row.name, row.n)
	}

	b.WriteString("\n## Exclusions\n\n")
	if r.Excluded == 0 {
		b.WriteString("Nothing was excluded.\n")
		return b.Bytes()
	}
	b.WriteString("| Cause | Count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| override file | %d |\n", r.ByOverride)
	reasons := make([]string, 0, len(r.ByReason))
	for k := range r.ByReason {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		fmt.Fprintf(&b, "| %s | %d |\n", cell(k), r.ByReason[k])
	}
	return b.Bytes()
}

// Render converts r to HTML.
func (p *Renderer) Render(r *mirror.Report) (*Result, error) {
	return p.Convert(Markdown(r))
}

// Convert renders Markdown source and extracts its headings.
func (p *Renderer) Convert(source []byte) (*Result, error) {
	var buf bytes.Buffer
	if err := p.md.Convert(source, &buf); err != nil {
		return nil, err
	}

	sections := p.sections(source)
	title := ""
	if len(sections) > 0 {
		title = sections[0].Title
	}
	return &Result{
		HTML:     buf.String(),
		Sections: sections,
		Title:    title,
	}, nil
}

func (p *Renderer) sections(source []byte) []Section {
	doc := p.md.Parser().Parse(text.NewReader(source))

	var out []Section
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title := headingText(h, source)
			out = append(out, Section{Level: h.Level, Title: title, Anchor: anchor(title)})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil
	}
	return out
}

func headingText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

var (
	anchorStrip  = regexp.MustCompile(`[^a-z0-9\-]`)
	anchorHyphen = regexp.MustCompile(`-+`)
)

// anchor matches the ids generated by WithAutoHeadingID for ASCII titles.
func anchor(title string) string {
	a := strings.ReplaceAll(strings.ToLower(title), " ", "-")
	a = anchorStrip.ReplaceAllString(a, "")
	a = anchorHyphen.ReplaceAllString(a, "-")
	return strings.Trim(a, "-")
}

// Page wraps rendered HTML in a standalone document.
func Page(res *Result) []byte {
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(escapeHTML(res.Title))
	b.WriteString("</title></head><body>\n")
	b.WriteString(res.HTML)
	b.WriteString("</body></html>\n")
	return b.Bytes()
}

var htmlEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&#34;")

func escapeHTML(s string) string { return htmlEscaper.Replace(s) }
