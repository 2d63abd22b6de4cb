package main

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// stagingWatcher watches the staging directory and flags staged
// database files whose content drifted from the pristine snapshot.
// SQLite editors produce bursts of writes, so events are debounced per
// file before the checksum comparison runs.
type stagingWatcher struct {
	app     *App
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu       sync.Mutex
	baseline map[string]string // localPath -> pristine checksum
	dirty    map[string]bool
	timers   map[string]*time.Timer
}

const watchDebounce = 500 * time.Millisecond

func newStagingWatcher(app *App) (*stagingWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &stagingWatcher{
		app:      app,
		watcher:  fsw,
		done:     make(chan struct{}),
		baseline: make(map[string]string),
		dirty:    make(map[string]bool),
		timers:   make(map[string]*time.Timer),
	}
	go w.loop()
	return w, nil
}

// Rearm points the watcher at a freshly reset staging directory and
// drops all per-file state from the previous run.
func (w *stagingWatcher) Rearm(dir string) {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.baseline = make(map[string]string)
	w.dirty = make(map[string]bool)
	w.timers = make(map[string]*time.Timer)
	w.mu.Unlock()

	// Re-adding an already watched directory is a no-op with an error
	// we don't care about; the directory was just recreated so the old
	// watch is gone either way.
	if err := w.watcher.Add(dir); err != nil {
		LogWarn("watcher").Str("dir", dir).Err(err).Msg("Failed to watch staging directory")
	}
}

// SetBaseline records the pristine checksum of a staged file and clears
// any dirty flag.
func (w *stagingWatcher) SetBaseline(localPath, checksum string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.baseline[localPath] = checksum
	delete(w.dirty, localPath)
}

// IsDirty reports whether a staged file has been modified since it was
// staged, reverted or pushed.
func (w *stagingWatcher) IsDirty(localPath string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty[localPath]
}

func (w *stagingWatcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if isSidecarFile(name) || !hasDatabaseExtension(name) {
				continue
			}
			w.debounce(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			LogWarn("watcher").Err(err).Msg("Staging watcher error")
		case <-w.done:
			return
		}
	}
}

// debounce (re)schedules the checksum comparison for one file.
func (w *stagingWatcher) debounce(localPath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[localPath]; ok {
		t.Stop()
	}
	w.timers[localPath] = time.AfterFunc(watchDebounce, func() {
		w.check(localPath)
	})
}

func (w *stagingWatcher) check(localPath string) {
	w.mu.Lock()
	pristine, tracked := w.baseline[localPath]
	wasDirty := w.dirty[localPath]
	w.mu.Unlock()
	if !tracked {
		return
	}

	current, err := fileChecksum(localPath)
	if err != nil {
		LogDebug("watcher").Str("path", localPath).Err(err).Msg("Checksum failed")
		return
	}
	modified := current != pristine
	if modified == wasDirty {
		return
	}

	w.mu.Lock()
	w.dirty[localPath] = modified
	w.mu.Unlock()

	LogInfo("watcher").
		Str("path", localPath).
		Bool("modified", modified).
		Msg("Staged file state changed")
	w.app.emit("staged-file-modified", map[string]interface{}{
		"localPath": localPath,
		"modified":  modified,
	})
}

func (w *stagingWatcher) Close() error {
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.mu.Unlock()
	close(w.done)
	return w.watcher.Close()
}
