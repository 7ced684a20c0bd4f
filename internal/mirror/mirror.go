// Package mirror copies a node_modules tree to a destination, leaving out
// entries excluded by the global ignore list, per-directory override files
// and the project's dev dependencies.
package mirror

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"

	"github.com/CageChen/modmirror/internal/config"
	mfs "github.com/CageChen/modmirror/internal/fs"
	"github.com/CageChen/modmirror/internal/ignore"
	"github.com/CageChen/modmirror/internal/logfile"
	"github.com/CageChen/modmirror/internal/manifest"
	"github.com/CageChen/modmirror/internal/match"
	"github.com/CageChen/modmirror/internal/policy"
	"github.com/CageChen/modmirror/internal/walker"
)

// ErrBusy is returned by Run while another run of the same Mirror is active.
var ErrBusy = errors.New("a mirror run is already in progress")

// CompleteFunc is called after every run, successful or not.
type CompleteFunc func(r *Report, err error)

// PlanEntry is one decision of a dry run.
type PlanEntry struct {
	Path        string `json:"path"`
	Dir         bool   `json:"dir"`
	Disposition string `json:"disposition"`
	Reason      string `json:"reason,omitempty"`
}

// Options configures a Mirror. Only Config is required.
type Options struct {
	Config *config.Config

	// Source overrides the source filesystem. By default it is the
	// directory SourceRoot, or the GitRef tree of the repository there.
	Source mfs.FileSystem
	// Destination overrides the destination filesystem, rooted at
	// DestinationRoot by default.
	Destination billy.Filesystem

	// Out receives progress and the summary. Defaults to os.Stdout.
	Out io.Writer
	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// Extra is an additional inclusion rule evaluated after the built-in ones.
	Extra func(walker.Entry) bool
}

// Mirror runs the copy described by its configuration.
type Mirror struct {
	opts    Options
	cfg     *config.Config
	printer *Printer
	log     *zap.Logger

	running atomic.Bool

	mu        sync.Mutex
	starts    []func()
	callbacks []CompleteFunc
	last      *Report
}

// New validates the configuration and creates a Mirror.
func New(opts Options) (*Mirror, error) {
	if opts.Config == nil {
		return nil, errors.New("mirror: nil config")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Mirror{
		opts:    opts,
		cfg:     opts.Config,
		printer: NewPrinter(opts.Out),
		log:     opts.Logger,
	}, nil
}

// Config returns the configuration the Mirror was created with.
func (m *Mirror) Config() *config.Config { return m.cfg }

// OnComplete registers a callback run after every Run.
func (m *Mirror) OnComplete(cb CompleteFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// OnStart registers a callback run when a Run begins.
func (m *Mirror) OnStart(cb func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts = append(m.starts, cb)
}

// Running reports whether a run is in progress.
func (m *Mirror) Running() bool { return m.running.Load() }

// LastReport returns the report of the most recent finished run, or nil.
func (m *Mirror) LastReport() *Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run performs one full mirror. The returned report holds the counts
// decided so far even when the walk fails.
func (m *Mirror) Run() (*Report, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer m.running.Store(false)

	m.mu.Lock()
	starts := append([]func(){}, m.starts...)
	m.mu.Unlock()
	for _, cb := range starts {
		cb()
	}

	r, err := m.run()
	if r != nil {
		r.Duration = time.Since(r.Started)
		if err != nil {
			r.Error = err.Error()
		}
	}

	m.mu.Lock()
	m.last = r
	callbacks := append([]CompleteFunc(nil), m.callbacks...)
	m.mu.Unlock()
	for _, cb := range callbacks {
		cb(r, err)
	}
	return r, err
}

// Plan walks the source like Run without writing anything, and returns
// every decision in visit order.
func (m *Mirror) Plan() ([]PlanEntry, error) {
	h, w, err := m.prepare(true)
	if err != nil {
		return nil, err
	}
	_, err = w.Walk(m.cfg.DirName)
	return h.plan, err
}

// prepare builds the hooks and walker of one run.
func (m *Mirror) prepare(dry bool) (*hooks, *walker.Walker, error) {
	cfg := m.cfg
	h := &hooks{
		m:       m,
		cfg:     cfg,
		dry:     dry,
		printer: m.printer,
		report:  newReport(cfg.SourcePath(), filepath.Join(cfg.DestinationRoot, cfg.DirName)),
	}
	if dry {
		h.printer = NewPrinter(io.Discard)
	}

	src, err := m.source()
	if err != nil {
		return h, nil, err
	}
	h.src = src
	if !dry {
		dst := m.opts.Destination
		if dst == nil {
			dst = osfs.New(cfg.DestinationRoot)
		}
		h.copier = NewCopier(src, dst)
	}

	devDeps, found := m.devDependencies()
	h.report.DevDependencies = len(devDeps)
	h.report.DevDependenciesFound = found

	globalMatcher, err := match.New(cfg.Matcher, true)
	if err != nil {
		return h, nil, err
	}
	overrideMatcher, err := match.New(cfg.Matcher, false)
	if err != nil {
		return h, nil, err
	}
	h.policy = &policy.Policy{
		Ignore:                 ignore.Split(cfg.Ignore),
		CheckIgnoreList:        !cfg.NoIgnoreList,
		DevDependencies:        devDeps,
		ExcludeDevDependencies: cfg.NoDevDependencies,
		Extra:                  m.opts.Extra,
		Matcher:                globalMatcher,
	}
	if cfg.LogToFile && !dry {
		h.sink, err = logfile.New(cfg.LogDir, logfile.Copied, logfile.ExcludedByCondition, logfile.ExcludedByOverride)
		if err != nil {
			return h, nil, err
		}
	}

	w := walker.New(src, h, walker.Options{
		Overrides: cfg.UseNpmignore,
		Matcher:   overrideMatcher,
	})
	return h, w, nil
}

func (m *Mirror) run() (*Report, error) {
	cfg := m.cfg
	h, w, err := m.prepare(false)
	report := h.report
	if err != nil {
		return report, err
	}

	m.printer.Header(report.Source, report.DevDependenciesFound)

	counters, err := w.Walk(cfg.DirName)
	report.Included = counters.Included
	report.Excluded = counters.Excluded
	if err != nil {
		m.log.Error("walk failed", zap.String("op", "walk"), zap.String("path", report.Source), zap.Error(err))
		return report, err
	}

	m.printer.Summary(report)
	m.log.Info("mirror complete",
		zap.String("path", report.Source),
		zap.Int("included", report.Included),
		zap.Int("excluded", report.Excluded),
		zap.Int("symlinks", report.SymlinkDirs),
		zap.Int("copy_failures", report.CopyFailures),
	)
	return report, nil
}

// source opens the source filesystem. A git source is resolved on every
// run so a moving ref is picked up.
func (m *Mirror) source() (mfs.FileSystem, error) {
	if m.opts.Source != nil {
		return m.opts.Source, nil
	}
	if m.cfg.GitRef != "" {
		g, err := mfs.NewGitFS(m.cfg.SourceRoot, m.cfg.GitRef)
		if err != nil {
			return nil, fmt.Errorf("open source at %s: %w", m.cfg.GitRef, err)
		}
		return g, nil
	}
	return mfs.NewLocalFS(m.cfg.SourceRoot), nil
}

// devDependencies loads the dev dependency set and reports whether the
// manifest declared one. The manifest is only read when dev dependencies
// are excluded. A missing or unreadable manifest is not fatal: the set is
// empty.
func (m *Mirror) devDependencies() (manifest.DevDependencies, bool) {
	if !m.cfg.NoDevDependencies {
		return nil, false
	}
	dir := m.cfg.ManifestDir()
	mf, err := manifest.Load(dir)
	if err != nil {
		m.log.Warn("no dev dependencies loaded", zap.String("op", "manifest"), zap.String("path", dir), zap.Error(err))
		return nil, false
	}
	return mf.DevDependencies, mf.DevDependencies != nil
}

// hooks carries the state of one run.
type hooks struct {
	walker.NopHooks

	m       *Mirror
	cfg     *config.Config
	src     mfs.FileSystem
	copier  *Copier
	policy  *policy.Policy
	sink    *logfile.Sink
	printer *Printer
	report  *Report

	dry  bool
	plan []PlanEntry
}

func (h *hooks) Condition(e walker.Entry) bool {
	reason := h.policy.Decide(e)
	if reason == policy.Accept {
		return true
	}
	h.report.ByReason[reason.String()]++
	if h.dry {
		h.plan = append(h.plan, PlanEntry{
			Path:        e.Path,
			Dir:         e.IsDir(),
			Disposition: walker.ExcludedByCondition.String(),
			Reason:      reason.String(),
		})
	}
	if h.cfg.LogIgnored {
		h.printer.Excluded(e.Path, walker.ExcludedByCondition, reason.String())
	}
	return false
}

func (h *hooks) OnCondition(e walker.Entry) {
	if h.dry {
		h.plan = append(h.plan, PlanEntry{Path: e.Path, Dir: e.IsDir(), Disposition: walker.Included.String()})
		return
	}
	dst := filepath.Join(h.cfg.DestinationRoot, filepath.FromSlash(e.Path))
	if e.IsDir() {
		if err := h.copier.Mkdir(e.Path); err != nil {
			h.copyFailed(e.Path, err)
			return
		}
		h.report.Dirs++
		if e.IsSymlink() {
			h.report.SymlinkDirs++
		}
		if !h.cfg.Quiet {
			h.printer.Dir(h.display(e.Path), dst, e.IsSymlink())
		}
		h.writeLog(logfile.Copied, h.display(e.Path)+" -> "+dst)
		return
	}

	if err := h.copier.Copy(e.Path, e.Stat.Mode); err != nil {
		h.copyFailed(e.Path, err)
		return
	}
	h.report.Files++
	h.writeLog(logfile.Copied, h.display(e.Path)+" -> "+dst)
}

func (h *hooks) copyFailed(p string, err error) {
	h.report.CopyFailures++
	h.printer.CopyFailed(p, err)
	h.m.log.Warn("copy failed", zap.String("op", "copy"), zap.String("path", p), zap.Error(err))
}

func (h *hooks) DirOverride(dir string) []string {
	return ignore.ReadOverride(h.src, dir, h.cfg.IgnoreFile)
}

func (h *hooks) Log(p string, d walker.Disposition) {
	switch d {
	case walker.ExcludedByOverride:
		h.report.ByOverride++
		if h.dry {
			h.plan = append(h.plan, PlanEntry{Path: p, Disposition: d.String(), Reason: "override"})
		}
		if h.cfg.LogIgnored {
			h.printer.Excluded(p, d, "")
		}
		h.writeLog(logfile.ExcludedByOverride, h.display(p))
	case walker.ExcludedByCondition:
		h.report.ByCondition++
		h.writeLog(logfile.ExcludedByCondition, h.display(p))
	}
}

func (h *hooks) display(p string) string {
	return filepath.Join(h.cfg.SourceRoot, filepath.FromSlash(p))
}

func (h *hooks) writeLog(category, line string) {
	if h.sink == nil {
		return
	}
	if err := h.sink.WriteLine(category, line); err != nil {
		h.m.log.Warn("log write failed", zap.String("op", "log"), zap.String("path", category), zap.Error(err))
	}
}
