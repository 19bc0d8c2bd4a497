package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tools.zach/dev/sabercord/internal/atomicfile"
)

// waitEvent fails the test unless a signal arrives within timeout.
func waitEvent(t *testing.T, w *Watcher, timeout time.Duration) {
	t.Helper()
	select {
	case <-w.Events():
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a change signal")
	}
}

// expectQuiet fails the test if a signal arrives within d.
func expectQuiet(t *testing.T, w *Watcher, d time.Duration) {
	t.Helper()
	select {
	case <-w.Events():
		t.Fatal("unexpected change signal")
	case <-time.After(d):
	}
}

// pollingWatcher builds a watcher that polls from the start.
func pollingWatcher(t *testing.T, path string) *Watcher {
	t.Helper()
	w := &Watcher{
		path:         path,
		name:         filepath.Base(path),
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: 25 * time.Millisecond,
	}
	w.startPolling()
	t.Cleanup(func() { w.Close() })
	return w
}

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "existing file",
			setup: func(t *testing.T) string {
				path := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(path, []byte("[log]\n"), 0o644); err != nil {
					t.Fatal(err)
				}
				return path
			},
		},
		{
			name: "file not created yet",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "config.toml")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			w, err := New(path, 0)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if w.Path() != path {
				t.Errorf("Path = %q, want %q", w.Path(), path)
			}
			if w.pollInterval != DefaultPollInterval {
				t.Errorf("pollInterval = %v, want default", w.pollInterval)
			}
			if err := w.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}
}

func TestWatcher_DetectsAtomicReplace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher test in short mode")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	time.Sleep(50 * time.Millisecond)

	if err := atomicfile.Write(path, []byte("a = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w, 5*time.Second)

	// A second replace is still seen after the first rename.
	if err := atomicfile.Write(path, []byte("a = 33\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w, 5*time.Second)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping watcher test in short mode")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	if w.Polling() {
		t.Skip("fsnotify unavailable")
	}
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "sabercord.log"), []byte("line\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, w, 300*time.Millisecond)
}

func TestWatcher_Coalesces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	w := pollingWatcher(t, path)

	for range 5 {
		w.notify()
	}
	waitEvent(t, w, time.Second)
	expectQuiet(t, w, 50*time.Millisecond)
}

func TestPoll_DetectsCreateAndModify(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	w := pollingWatcher(t, path)

	if !w.Polling() {
		t.Fatal("Polling should be true")
	}

	if err := os.WriteFile(path, []byte("a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w, 2*time.Second)

	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w, 2*time.Second)
}

func TestPoll_MissingFileStaysQuiet(t *testing.T) {
	w := pollingWatcher(t, filepath.Join(t.TempDir(), "config.toml"))
	expectQuiet(t, w, 150*time.Millisecond)
}

func TestClose_StopsPollingAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("a = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := pollingWatcher(t, path)

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	expectQuiet(t, w, 150*time.Millisecond)
}
