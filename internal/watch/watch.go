// Package watch implements an optional, additive live-refresh
// accelerant: a debounced filesystem watcher that triggers the engine's
// incremental update shortly after source files change, instead of
// relying solely on the auto-refresh cooldown checked on each query.
package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codeintel/engine/internal/scan"
)

// EventType classifies a debounced filesystem change.
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "CREATE"
	case EventModify:
		return "MODIFY"
	case EventDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one debounced change to a watched source file, relative
// to the watch root.
type FileEvent struct {
	Type EventType
	Path string
}

// Watcher recursively watches root for source file changes, debounces
// bursts of events per cfg.Watch.DebounceMs, and delivers the merged
// result on Events(). It never indexes directly; a caller (typically
// internal/engine) drains Events() and calls Update itself, keeping the
// watcher a pure notification source.
type Watcher struct {
	root       string
	fsw        *fsnotify.Watcher
	matcher    *scan.IgnoreMatcher
	debounceMs int
	events     chan FileEvent
	done       chan struct{}

	mu      sync.Mutex
	pending map[string]FileEvent
	timer   *time.Timer
}

// New creates a Watcher over root. includeGlobs/excludeGlobs mirror the
// scan config so a watched change is ignored exactly when a full rescan
// would have skipped that file. debounceMs defaults to 500 when <= 0.
func New(root string, includeGlobs, excludeGlobs []string, debounceMs int) (*Watcher, error) {
	if debounceMs <= 0 {
		debounceMs = 500
	}
	matcher, err := scan.NewIgnoreMatcher(root, includeGlobs, excludeGlobs)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		root:       root,
		fsw:        fsw,
		matcher:    matcher,
		debounceMs: debounceMs,
		events:     make(chan FileEvent, 100),
		done:       make(chan struct{}),
		pending:    make(map[string]FileEvent),
	}, nil
}

// Start registers watches on root and every non-ignored subdirectory,
// then begins processing fsnotify events in the background until ctx is
// canceled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	go w.processEvents(ctx)
	return nil
}

// Events returns the channel of debounced, merged file events.
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Close stops processing and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		relPath, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		if info.IsDir() {
			if relPath != "." && w.matcher.ShouldSkipDir(relPath) {
				return filepath.SkipDir
			}
			if err := w.fsw.Add(path); err != nil {
				log.Printf("watch: failed to watch %s: %v", path, err)
			}
			return nil
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watch: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	if strings.HasPrefix(filepath.Base(relPath), ".") {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			if !w.matcher.ShouldSkipDir(relPath) {
				if err := w.addRecursive(event.Name); err != nil {
					log.Printf("watch: failed to add new directory %s: %v", event.Name, err)
				}
			}
			return
		}
	}

	if !w.matcher.ShouldInclude(relPath) {
		return
	}

	var evType EventType
	switch {
	case event.Has(fsnotify.Create):
		evType = EventCreate
	case event.Has(fsnotify.Write):
		evType = EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		evType = EventDelete
	default:
		return
	}

	w.debounce(FileEvent{Type: evType, Path: filepath.ToSlash(relPath)})
}

func (w *Watcher) debounce(event FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[event.Path] = event
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(time.Duration(w.debounceMs)*time.Millisecond, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	events := make([]FileEvent, 0, len(w.pending))
	for _, event := range w.pending {
		events = append(events, event)
	}
	w.pending = make(map[string]FileEvent)
	w.mu.Unlock()

	for _, event := range events {
		select {
		case w.events <- event:
		default:
			log.Printf("watch: event channel full, dropping event for %s", event.Path)
		}
	}
}
