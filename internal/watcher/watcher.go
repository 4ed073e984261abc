// Package watcher is the change notification source for the update
// engine: a recursive fsnotify watcher that debounces bursts of
// filesystem events into batches of per-file change events.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codegraph/internal/update"
)

// Watcher watches a repository tree and delivers debounced change
// events.
type Watcher interface {
	// Start begins watching. The callback receives one batch per quiet
	// period; each event names a repo-relative path.
	Start(ctx context.Context, callback func(events []update.ChangeEvent)) error
	// Stop stops watching. Idempotent.
	Stop() error
	// Pause suspends delivery while continuing to accumulate events.
	Pause()
	// Resume re-enables delivery, flushing anything accumulated.
	Resume()
}

type repoWatcher struct {
	watcher      *fsnotify.Watcher
	rootDir      string
	extensions   map[string]bool
	debounceTime time.Duration
	callback     func(events []update.ChangeEvent)
	ctx          context.Context
	cancel       context.CancelFunc

	paused   bool
	pausedMu sync.RWMutex

	accumulated   map[string]update.ChangeKind
	accumulatedMu sync.Mutex

	debounceTimer *time.Timer
	timerMu       sync.Mutex

	stopOnce sync.Once
	doneCh   chan struct{}
}

// WatcherOption configures a repository watcher.
type WatcherOption func(*repoWatcher)

// WithDebounce sets the quiet period before a batch is delivered.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *repoWatcher) {
		if d > 0 {
			w.debounceTime = d
		}
	}
}

// New creates a watcher over rootDir for files with the given extensions
// (with leading dot).
func New(rootDir string, extensions []string, opts ...WatcherOption) (Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	extMap := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extMap[ext] = true
	}

	w := &repoWatcher{
		watcher:      fsw,
		rootDir:      rootDir,
		extensions:   extMap,
		debounceTime: 500 * time.Millisecond,
		accumulated:  make(map[string]update.ChangeKind),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addDirectoriesRecursively(rootDir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *repoWatcher) Start(ctx context.Context, callback func(events []update.ChangeEvent)) error {
	if callback == nil {
		return nil
	}

	w.callback = callback
	w.ctx, w.cancel = context.WithCancel(ctx)

	go w.watch()
	return nil
}

func (w *repoWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
			<-w.doneCh
		} else {
			close(w.doneCh)
		}
		err = w.watcher.Close()
	})
	return err
}

func (w *repoWatcher) Pause() {
	w.pausedMu.Lock()
	defer w.pausedMu.Unlock()
	w.paused = true
}

func (w *repoWatcher) Resume() {
	w.pausedMu.Lock()
	wasPaused := w.paused
	w.paused = false
	w.pausedMu.Unlock()

	if wasPaused {
		w.flush()
	}
}

func (w *repoWatcher) watch() {
	defer close(w.doneCh)

	expiredCh := make(chan struct{}, 1)

	for {
		select {
		case <-w.ctx.Done():
			w.stopDebounceTimer()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// New directories join the watch set as they appear.
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectoriesRecursively(event.Name); err != nil {
						log.Printf("Warning: failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}

			kind, ok := w.classify(event)
			if !ok {
				continue
			}

			rel, err := filepath.Rel(w.rootDir, event.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			w.accumulate(rel, kind)
			w.resetDebounceTimer(expiredCh)

		case <-expiredCh:
			w.handleDebounceExpired()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: watcher error: %v", err)
		}
	}
}

// classify maps an fsnotify op to a change kind, filtering by extension.
func (w *repoWatcher) classify(event fsnotify.Event) (update.ChangeKind, bool) {
	if !w.extensions[filepath.Ext(event.Name)] {
		return "", false
	}
	switch {
	case event.Op&fsnotify.Create != 0:
		return update.Created, true
	case event.Op&fsnotify.Write != 0:
		return update.Modified, true
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return update.Deleted, true
	}
	return "", false
}

// accumulate merges a new event kind into the pending batch. A create
// followed by a write stays a create; anything after a delete means the
// file exists again.
func (w *repoWatcher) accumulate(path string, kind update.ChangeKind) {
	w.accumulatedMu.Lock()
	defer w.accumulatedMu.Unlock()

	prev, seen := w.accumulated[path]
	switch {
	case !seen:
		w.accumulated[path] = kind
	case kind == update.Deleted:
		w.accumulated[path] = update.Deleted
	case prev == update.Created && kind == update.Modified:
		// Still a create from the engine's point of view.
	case prev == update.Deleted:
		w.accumulated[path] = update.Created
	default:
		w.accumulated[path] = kind
	}
}

func (w *repoWatcher) handleDebounceExpired() {
	w.pausedMu.RLock()
	paused := w.paused
	w.pausedMu.RUnlock()

	if paused {
		return
	}
	w.flush()
}

// flush delivers the accumulated batch, if any.
func (w *repoWatcher) flush() {
	w.accumulatedMu.Lock()
	if len(w.accumulated) == 0 {
		w.accumulatedMu.Unlock()
		return
	}
	events := make([]update.ChangeEvent, 0, len(w.accumulated))
	for path, kind := range w.accumulated {
		events = append(events, update.ChangeEvent{Path: path, Kind: kind})
	}
	w.accumulated = make(map[string]update.ChangeKind)
	w.accumulatedMu.Unlock()

	if w.callback != nil {
		w.callback(events)
	}
}

func (w *repoWatcher) resetDebounceTimer(expiredCh chan struct{}) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.debounceTimer != nil {
		if !w.debounceTimer.Stop() {
			select {
			case <-w.debounceTimer.C:
			default:
			}
		}
	}

	w.debounceTimer = time.AfterFunc(w.debounceTime, func() {
		select {
		case expiredCh <- struct{}{}:
		default:
		}
	})
}

func (w *repoWatcher) stopDebounceTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
}

func (w *repoWatcher) addDirectoriesRecursively(rootPath string) error {
	return filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == rootPath {
				return err
			}
			log.Printf("Warning: error accessing %s: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to watch directory %s: %v", path, err)
		}
		return nil
	})
}
