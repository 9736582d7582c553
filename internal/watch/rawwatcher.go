package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codegraph-dev/codegraph/internal/gitignore"
)

// Operation is the kind of change fsnotify reported for a path.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

// FileEvent is a single raw file-system change, before debouncing or
// conversion to the daemon's own Event type.
type FileEvent struct {
	Path      string
	OldPath   string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// FSWatcher is the default RawWatcher: a thin fsnotify wrapper that walks
// the project tree to register directories, filters paths through
// .gitignore, and forwards one-event batches. Coalescing across rapid
// successive events is the Daemon's own Batcher's job (debounce.go), not
// this type's — so unlike the teacher's HybridWatcher (which debounced and
// polling-fallback'd internally), FSWatcher stays a plain fsnotify
// passthrough.
type FSWatcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	gitignore *gitignore.Matcher
	events    chan []FileEvent
	errors    chan error

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// NewFSWatcher creates an FSWatcher with a fresh gitignore matcher seeded
// from additional ignore patterns (beyond whatever .gitignore files the
// walked tree contains).
func NewFSWatcher(ignorePatterns ...string) *FSWatcher {
	m := gitignore.New()
	for _, p := range ignorePatterns {
		m.AddPattern(p)
	}
	return &FSWatcher{
		gitignore: m,
		events:    make(chan []FileEvent, 256),
		errors:    make(chan error, 16),
		done:      make(chan struct{}),
	}
}

// Start begins watching path and all its subdirectories, skipping anything
// the gitignore matcher excludes.
func (w *FSWatcher) Start(ctx context.Context, path string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w.fsWatcher = fsw
	w.root = path

	if err := w.addDirs(path); err != nil {
		_ = fsw.Close()
		return err
	}

	go w.pump(ctx)
	return nil
}

func (w *FSWatcher) addDirs(root string) error {
	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			rel = p
		}
		if rel != "." && w.gitignore.Match(rel, true) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(p)
	})
}

func (w *FSWatcher) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(w.root, ev.Name)
			if err != nil {
				rel = ev.Name
			}
			if w.gitignore.Match(rel, false) {
				continue
			}
			isDir := false
			if ev.Op&fsnotify.Remove == 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil {
					isDir = info.IsDir()
				}
			}
			fe := FileEvent{Path: rel, Operation: toOperation(ev.Op), IsDir: isDir, Timestamp: time.Now()}
			select {
			case w.events <- []FileEvent{fe}:
			default:
			}
			if ev.Op&fsnotify.Create != 0 && isDir {
				_ = w.fsWatcher.Add(ev.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func toOperation(op fsnotify.Op) Operation {
	switch {
	case op&fsnotify.Create != 0:
		return OpCreate
	case op&fsnotify.Remove != 0:
		return OpDelete
	case op&fsnotify.Rename != 0:
		return OpRename
	default:
		return OpModify
	}
}

// Stop closes the underlying fsnotify watcher and stops the pump goroutine.
func (w *FSWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	if w.fsWatcher != nil {
		return w.fsWatcher.Close()
	}
	return nil
}

// Events returns the channel of raw event batches.
func (w *FSWatcher) Events() <-chan []FileEvent { return w.events }

// Errors returns the channel of non-fatal watcher errors.
func (w *FSWatcher) Errors() <-chan error { return w.errors }
