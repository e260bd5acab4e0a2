package datafile

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/go-drift/databind/pkg/errors"
	"github.com/go-drift/databind/pkg/store"
)

const (
	DefaultDebounceWindow = 100 * time.Millisecond
	DefaultMaxBatchSize   = 64
)

// WatcherConfig controls which files a Watcher follows.
type WatcherConfig struct {
	// Patterns are doublestar globs such as "data/**/*.yaml".
	Patterns []string
	// DebounceWindow defaults to DefaultDebounceWindow.
	DebounceWindow time.Duration
	// MaxBatchSize defaults to DefaultMaxBatchSize.
	MaxBatchSize int
	// Logger defaults to slog.Default() tagged with component=datafile.
	Logger *slog.Logger
	// Dispatch, when set, runs each reload batch. Engines are not safe for
	// concurrent use, so hosts pass a function that hops to the goroutine
	// owning the engine.
	Dispatch func(func())
}

// Watcher reloads data files into a store when they change on disk.
// A removed file deletes its source.
type Watcher struct {
	store     *store.Store
	config    WatcherConfig
	patterns  []string
	log       *slog.Logger
	fsWatcher *fsnotify.Watcher
	fsMu      sync.Mutex
	debouncer *Debouncer

	// OnReload, when set, is called after each flushed batch with the
	// sources that were written or deleted.
	OnReload func(sources []string)

	mu      sync.Mutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWatcher creates a watcher for the configured patterns. Nothing is
// watched until Start.
func NewWatcher(st *store.Store, config WatcherConfig) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &errors.BindError{Op: "datafile.NewWatcher", Kind: errors.KindWatch, Err: err}
	}

	if config.DebounceWindow <= 0 {
		config.DebounceWindow = DefaultDebounceWindow
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultMaxBatchSize
	}
	log := config.Logger
	if log == nil {
		log = logger()
	}

	w := &Watcher{
		store:     st,
		config:    config,
		log:       log,
		fsWatcher: fsWatcher,
	}
	for _, p := range config.Patterns {
		w.patterns = append(w.patterns, filepath.Clean(p))
	}
	flush := w.onFlush
	if config.Dispatch != nil {
		flush = func(events []FileEvent) {
			config.Dispatch(func() { w.onFlush(events) })
		}
	}
	w.debouncer = NewDebouncer(config.DebounceWindow, config.MaxBatchSize, flush)
	return w, nil
}

func (w *Watcher) addToWatcher(path string) error {
	w.fsMu.Lock()
	defer w.fsMu.Unlock()
	return w.fsWatcher.Add(path)
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.addToWatcher(path); err != nil {
			w.log.Debug("failed to watch directory", "path", path, "error", err)
			return nil
		}
		w.log.Debug("watching directory", "path", path)
		return nil
	})
}

// Start begins watching the base directory of every pattern. It returns
// immediately; events are processed until ctx is cancelled or Close is
// called. Starting a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.closed {
		return nil
	}

	for _, pattern := range w.patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)
		if err := w.addTree(base); err != nil {
			return &errors.BindError{Op: "datafile.Watcher.Start", Kind: errors.KindWatch, Err: err, Source: pattern}
		}
	}

	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.log.Info("watching data files", "patterns", w.patterns)
	go w.handleEvents(ctx)
	return nil
}

func (w *Watcher) handleEvents(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.log.Debug("file event", "path", event.Name, "op", event.Op.String())

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					w.addTree(event.Name)
					continue
				}
			}
			if fileEvent := w.convertEvent(event); fileEvent != nil {
				w.debouncer.Add(*fileEvent)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			errors.Report(&errors.BindError{Op: "datafile.Watcher", Kind: errors.KindWatch, Err: err})
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) *FileEvent {
	if !w.Matches(event.Name) {
		return nil
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		eventType = EventWrite
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		eventType = EventRemove
	default:
		return nil
	}

	return &FileEvent{
		Path:      filepath.Clean(event.Name),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// Matches reports whether path is a supported file selected by one of the
// watcher's patterns.
func (w *Watcher) Matches(path string) bool {
	if !Supported(path) {
		return false
	}
	path = filepath.Clean(path)
	for _, pattern := range w.patterns {
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) onFlush(events []FileEvent) {
	w.log.Info("reloading data files", "count", len(events))

	sources := make([]string, 0, len(events))
	for _, event := range events {
		source := SourceName(event.Path)

		if event.Type == EventRemove {
			// Editors often replace a file with a rename; only a file that
			// is really gone drops its source.
			if _, err := os.Stat(event.Path); os.IsNotExist(err) {
				w.store.Delete(source)
				sources = append(sources, source)
				w.log.Debug("data file removed", "path", event.Path, "source", source)
				continue
			}
		}

		_, value, err := Load(event.Path)
		if err != nil {
			errors.Report(&errors.BindError{Op: "datafile.Watcher.reload", Kind: errors.KindLoad, Err: err, Source: source})
			continue
		}
		w.store.Set(source, value)
		sources = append(sources, source)
		w.log.Debug("data file reloaded", "path", event.Path, "source", source)
	}

	if len(sources) > 0 && w.OnReload != nil {
		w.OnReload(sources)
	}
}

// Close stops the watcher, flushing pending reloads first.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	running := w.running
	w.running = false
	if w.cancel != nil {
		w.cancel()
	}
	done := w.done
	w.mu.Unlock()

	if running && done != nil {
		<-done
	}
	w.debouncer.Stop()

	w.fsMu.Lock()
	defer w.fsMu.Unlock()
	return w.fsWatcher.Close()
}
