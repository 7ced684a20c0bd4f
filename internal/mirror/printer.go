package mirror

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/mitchellh/colorstring"

	"github.com/CageChen/modmirror/internal/walker"
)

const rule = "--------------------------------------------------------"

// Printer writes progress, excluded entries and the summary.
type Printer struct {
	w     io.Writer
	color colorstring.Colorize
}

// NewPrinter creates a Printer. Colors are enabled only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{
		w: w,
		color: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !tty,
		},
	}
}

// paint wraps text in a color. Text is never parsed for color codes, so
// paths containing brackets print unchanged.
func (p *Printer) paint(color, text string) string {
	start := p.color.Color("[" + color + "]")
	if start == "" {
		return text
	}
	return start + text + p.color.Color("[reset]")
}

// Header announces the run. devDependencies tells whether a dev dependency
// set was loaded, even an empty one.
func (p *Printer) Header(source string, devDependencies bool) {
	line := fmt.Sprintf("[modmirror] processing '%s'", source)
	if !devDependencies {
		line += "  devDependencies not found"
	}
	fmt.Fprintln(p.w, line)
}

// Dir prints one accepted directory. Symlinked directories get their own
// color and arrow.
func (p *Printer) Dir(src, dst string, symlink bool) {
	if symlink {
		fmt.Fprintln(p.w, p.paint("blue", fmt.Sprintf(" %s  =>  %s", src, dst)))
		return
	}
	fmt.Fprintf(p.w, " %s  ->  %s\n", src, dst)
}

// Excluded prints one excluded entry, marked by cause.
func (p *Printer) Excluded(path string, d walker.Disposition, reason string) {
	switch d {
	case walker.ExcludedByOverride:
		fmt.Fprintln(p.w, p.paint("yellow", fmt.Sprintf(" %s  <~  %s", path, d)))
	default:
		fmt.Fprintln(p.w, p.paint("magenta", fmt.Sprintf(" %s  <-  %s", path, reason)))
	}
}

// CopyFailed prints a failed copy.
func (p *Printer) CopyFailed(path string, err error) {
	fmt.Fprintln(p.w, p.paint("red", fmt.Sprintf(" copy failed: %s: %v", path, err)))
}

// Summary prints the final counts between two rules.
func (p *Printer) Summary(r *Report) {
	var b strings.Builder
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "processed %d items,  excluded %d,  symlinks %d\n", r.Included, r.Excluded, r.SymlinkDirs)
	if r.CopyFailures > 0 {
		fmt.Fprintf(&b, "copy failures %d\n", r.CopyFailures)
	}
	b.WriteString(rule + "\n")
	_, _ = io.WriteString(p.w, b.String())
}
