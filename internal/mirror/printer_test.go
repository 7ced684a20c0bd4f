package mirror

import (
	"bytes"
	"strings"
	"testing"

	"github.com/CageChen/modmirror/internal/walker"
)

func TestPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Dir("src/node_modules/[id]", "dst/node_modules/[id]", true)
	p.Excluded("node_modules/x.md", walker.ExcludedByOverride, "")
	p.Excluded("node_modules/.bin", walker.ExcludedByCondition, "ignore-list")

	want := " src/node_modules/[id]  =>  dst/node_modules/[id]\n" +
		" node_modules/x.md  <~  out-byNpmignore\n" +
		" node_modules/.bin  <-  ignore-list\n"
	if buf.String() != want {
		t.Errorf("output =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestPrinterSummary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).Summary(&Report{Included: 6, Excluded: 2, SymlinkDirs: 1, CopyFailures: 1})

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != rule || lines[3] != rule {
		t.Errorf("summary not framed by rules: %q", lines)
	}
	if lines[1] != "processed 6 items,  excluded 2,  symlinks 1" {
		t.Errorf("counts line = %q", lines[1])
	}
}

func TestPrinterHeader(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Header("app/node_modules", true)
	p.Header("app/node_modules", false)
	want := "[modmirror] processing 'app/node_modules'\n" +
		"[modmirror] processing 'app/node_modules'  devDependencies not found\n"
	if buf.String() != want {
		t.Errorf("header = %q", buf.String())
	}
}
