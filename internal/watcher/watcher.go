// Package watcher monitors the mirrored source tree and the project
// manifest, and reports changes through callbacks.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/CageChen/modmirror/internal/config"
	"github.com/CageChen/modmirror/internal/ignore"
	"github.com/CageChen/modmirror/internal/manifest"
	"github.com/CageChen/modmirror/internal/match"
)

// EventType represents the type of file system event
type EventType int

// File system event types.
const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "write"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event represents a file system change event
type Event struct {
	Type EventType `json:"-"`
	Op   string    `json:"op"`
	Path string    `json:"path"`
}

// Callback is a function called when file changes occur
type Callback func(Event)

// Watcher monitors the source subtree of a mirror configuration. Directories
// matched by the global ignore list are not watched.
type Watcher struct {
	watcher     *fsnotify.Watcher
	cfg         *config.Config
	skip        []string
	matcher     match.Matcher
	root        string
	manifestDir string
	log         *zap.Logger

	callbacks []Callback
	mu        sync.RWMutex
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a new file system watcher
func New(cfg *config.Config, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var skip []string
	if !cfg.NoIgnoreList {
		skip = ignore.Split(cfg.Ignore).Dirs
	}
	m, err := match.New(cfg.Matcher, true)
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	return &Watcher{
		watcher:     w,
		cfg:         cfg,
		skip:        skip,
		matcher:     m,
		root:        filepath.Clean(cfg.SourcePath()),
		manifestDir: filepath.Clean(cfg.ManifestDir()),
		log:         logger,
		done:        make(chan struct{}),
	}, nil
}

// OnChange registers a callback for file change events
func (w *Watcher) OnChange(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching the source subtree and the manifest directory.
// A git source is read from the object database and is not watched.
func (w *Watcher) Start() error {
	if w.cfg.GitRef != "" {
		w.log.Warn("git source is not watched", zap.String("op", "watch"), zap.String("path", w.cfg.SourceRoot))
		go w.eventLoop()
		return nil
	}

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !w.isDir(path, d) {
			return nil
		}
		if path != w.root && w.excluded(d.Name()) {
			return filepath.SkipDir
		}
		w.add(path)
		return nil
	})
	if err != nil {
		return err
	}
	if w.cfg.NoDevDependencies {
		w.add(w.manifestDir)
	}

	go w.eventLoop()
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

// WatchList returns the directories currently watched.
func (w *Watcher) WatchList() []string {
	return w.watcher.WatchList()
}

func (w *Watcher) add(path string) {
	if err := w.watcher.Add(path); err != nil {
		w.log.Warn("cannot watch", zap.String("op", "watch"), zap.String("path", path), zap.Error(err))
	}
}

// isDir treats links to directories as directories, like the mirror does.
func (w *Watcher) isDir(path string, d fs.DirEntry) bool {
	if d.IsDir() {
		return true
	}
	return d.Type()&fs.ModeSymlink != 0 && isDir(path)
}

func (w *Watcher) excluded(name string) bool {
	return len(w.skip) > 0 && w.matcher.Match(name, w.skip)
}

// relevant reports whether a change at path can affect the next run.
func (w *Watcher) relevant(path string) bool {
	if rel, err := filepath.Rel(w.root, path); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return true
	}
	return w.cfg.NoDevDependencies &&
		filepath.Dir(path) == w.manifestDir &&
		filepath.Base(path) == manifest.FileName
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.String("op", "watch"), zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if !w.relevant(path) {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreate
		// New directories inside the tree are watched too.
		if isDir(path) && !w.excluded(filepath.Base(path)) && path != w.manifestDir {
			w.add(path)
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	default:
		return
	}

	e := Event{
		Type: eventType,
		Op:   eventType.String(),
		Path: path,
	}

	w.mu.RLock()
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(e)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Debouncer batches events and flushes them once none arrived for the
// configured delay.
type Debouncer struct {
	delay time.Duration
	fn    func([]Event)

	mu      sync.Mutex
	timer   *time.Timer
	pending []Event
}

// NewDebouncer creates a Debouncer calling fn with each batch.
func NewDebouncer(delay time.Duration, fn func([]Event)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Add queues an event. It has the Callback signature.
func (d *Debouncer) Add(e Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, e)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

// Stop drops pending events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()
	if len(batch) > 0 {
		d.fn(batch)
	}
}
