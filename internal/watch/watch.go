// Package watch reports changes to a single file, such as the daemon's
// config.toml, so edits can be applied without a restart.
//
// The parent directory is watched rather than the file itself: editors and
// [atomicfile.Write] replace files by rename, which would silently detach a
// watch placed on the old inode. When fsnotify is unavailable or fails, the
// watcher falls back to polling the file's modification time and size.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the stat interval in polling mode.
const DefaultPollInterval = 2 * time.Second

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher signals on [Watcher.Events] whenever the watched file is written,
// created, or replaced. Bursts of changes coalesce into one pending signal.
type Watcher struct {
	path string
	name string

	events chan struct{}
	done   chan struct{}
	once   sync.Once

	// mu guards fsw, which the event goroutine drops when falling back.
	mu  sync.Mutex
	fsw *fsnotify.Watcher

	polling      atomic.Bool
	pollInterval time.Duration
}

// New starts watching path. The file does not need to exist yet, but its
// directory does.
func New(path string, pollInterval time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	w := &Watcher{
		path:         abs,
		name:         filepath.Base(abs),
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, polling for changes", "path", abs, "error", err)
		w.startPolling()
		return w, nil
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		slog.Info("cannot watch directory, polling for changes", "path", abs, "error", err)
		fsw.Close()
		w.startPolling()
		return w, nil
	}

	w.fsw = fsw
	go w.watch(fsw)
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Events delivers one signal per batch of changes.
func (w *Watcher) Events() <-chan struct{} { return w.events }

// Polling reports whether the watcher fell back to polling.
func (w *Watcher) Polling() bool { return w.polling.Load() }

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.fsw != nil {
			if cerr := w.fsw.Close(); cerr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", cerr)
			}
			w.fsw = nil
		}
	})
	return err
}

// watch forwards fsnotify events for the watched file until Close or an
// fsnotify error, which switches to polling.
func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == w.name && ev.Op&relevant != 0 {
				w.notify()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, polling for changes", "path", w.path, "error", err)
			w.mu.Lock()
			if w.fsw != nil {
				w.fsw.Close()
				w.fsw = nil
			}
			w.mu.Unlock()
			w.startPolling()
			return
		}
	}
}

// startPolling switches to stat-based change detection.
func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// fileStamp identifies a version of the file for polling.
type fileStamp struct {
	mod  time.Time
	size int64
	ok   bool
}

func (w *Watcher) stamp() fileStamp {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{mod: info.ModTime(), size: info.Size(), ok: true}
}

// poll signals whenever the file appears or its stamp changes.
func (w *Watcher) poll() {
	last := w.stamp()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			cur := w.stamp()
			if cur.ok && cur != last {
				w.notify()
			}
			last = cur
		}
	}
}

// notify queues a signal unless one is already pending.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
