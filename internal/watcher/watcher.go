// Package watcher watches piece directories and reports edits per source file.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dtsplit/internal/slogutil"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with the debounced edits of one source file.
// Calls for the same source never overlap.
type ChangeHandler func(source string, events []Event)

// Config contains watcher configuration
type Config struct {
	DebounceMs     int      `json:"debounceMs" mapstructure:"debounce_ms"`
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignore_patterns"`
	// IndexFile is the generated index name, ignored at the top of each piece directory.
	IndexFile string `json:"-" mapstructure:"-"`
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		DebounceMs: 500,
		IgnorePatterns: []string{
			".lock",
			"*.tmp",
			"*.swp",
			"*~",
			".#*",
			"4913",
		},
		IndexFile: "index.d.ts",
	}
}

type sourceWatch struct {
	source    string
	pieceDir  string
	debouncer *BatchDebouncer
	running   sync.Mutex
}

// Watcher watches piece directories with fsnotify
type Watcher struct {
	config  Config
	logger  *slog.Logger
	handler ChangeHandler
	fsw     *fsnotify.Watcher

	mu      sync.RWMutex
	sources map[string]*sourceWatch // pieceDir -> watch
	dirs    map[string]bool
}

// New creates a new watcher
func New(config Config, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	return &Watcher{
		config:  config,
		logger:  logger,
		handler: handler,
		fsw:     fsw,
		sources: make(map[string]*sourceWatch),
		dirs:    make(map[string]bool),
	}, nil
}

// Add watches every directory under pieceDir and attributes its edits to source.
func (w *Watcher) Add(source, pieceDir string) error {
	pieceDir = filepath.Clean(pieceDir)

	w.mu.Lock()
	if _, exists := w.sources[pieceDir]; exists {
		w.mu.Unlock()
		return nil
	}
	sw := &sourceWatch{source: source, pieceDir: pieceDir}
	sw.debouncer = NewBatchDebouncer(time.Duration(w.config.DebounceMs)*time.Millisecond, func(events []Event) {
		sw.running.Lock()
		defer sw.running.Unlock()
		w.logger.Debug("Piece edits detected", "source", sw.source, "eventCount", len(events))
		if w.handler != nil {
			w.handler(sw.source, events)
		}
	})
	w.sources[pieceDir] = sw
	w.mu.Unlock()

	if err := w.addTree(pieceDir); err != nil {
		return err
	}
	w.logger.Info("Watching piece directory", "source", source, "dir", pieceDir)
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		w.mu.Lock()
		seen := w.dirs[path]
		w.dirs[path] = true
		w.mu.Unlock()
		if seen {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Sources returns the watched source files
func (w *Watcher) Sources() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	sources := make([]string, 0, len(w.sources))
	for _, sw := range w.sources {
		sources = append(sources, sw.source)
	}
	return sources
}

// Run processes events until ctx is done or the watcher is closed.
// Pending batches are dropped on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.cancelPending()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err.Error())
		}
	}
}

// Close stops the underlying fsnotify watcher
func (w *Watcher) Close() error {
	w.cancelPending()
	return w.fsw.Close()
}

func (w *Watcher) cancelPending() {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sw := range w.sources {
		sw.debouncer.Cancel()
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	var typ EventType
	switch {
	case event.Op.Has(fsnotify.Create):
		typ = EventCreate
	case event.Op.Has(fsnotify.Write):
		typ = EventModify
	case event.Op.Has(fsnotify.Remove):
		typ = EventDelete
	case event.Op.Has(fsnotify.Rename):
		typ = EventRename
	default:
		return
	}

	path := filepath.Clean(event.Name)
	if typ == EventCreate {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil {
				w.logger.Warn("Failed to watch new directory", "dir", path, "error", err.Error())
			}
			return
		}
	}

	sw := w.owner(path)
	if sw == nil || w.IsIgnored(sw.pieceDir, path) {
		return
	}
	sw.debouncer.Add(Event{Type: typ, Path: path, Timestamp: time.Now()})
}

// owner returns the watch with the deepest piece directory containing path.
func (w *Watcher) owner(path string) *sourceWatch {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var best *sourceWatch
	for dir, sw := range w.sources {
		if !strings.HasPrefix(path, dir+string(filepath.Separator)) {
			continue
		}
		if best == nil || len(dir) > len(best.pieceDir) {
			best = sw
		}
	}
	return best
}

// IsIgnored reports whether an event on path inside pieceDir is not an edit
// of a piece: the generated index, the lock file and editor scratch files.
func (w *Watcher) IsIgnored(pieceDir, path string) bool {
	if w.config.IndexFile != "" && path == filepath.Join(pieceDir, w.config.IndexFile) {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range w.config.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
