package settings

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads Settings from disk whenever settings.json changes
// on disk (an operator editing the file directly, or a sibling process
// writing it), grounded on the teacher's fsnotify watch-and-reload loop
// in internal/auth/service.go.
type Watcher struct {
	store  *Store
	fsw    *fsnotify.Watcher
	onLoad func(Settings)
	stop   chan struct{}
}

// WatchAndReload starts watching store's directory and calls onLoad
// each time settings.json is written, after a short debounce to coalesce
// editor save bursts. Call Close to stop.
func WatchAndReload(store *Store, onLoad func(Settings)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(store.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{store: store, fsw: fsw, onLoad: onLoad, stop: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	target := filepath.Clean(w.store.Path())
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !(ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				cfg, err := w.store.Load()
				if err != nil {
					slog.Error("settings: reload failed", "err", err)
					return
				}
				w.onLoad(cfg)
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Error("settings: watcher error", "err", err)
		case <-w.stop:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.fsw.Close()
}
