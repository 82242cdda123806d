package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ProfileWatcher reloads the limits file into a Profiles whenever it changes on disk.
// The parent directory is watched so editors that replace the file by rename are seen.
type ProfileWatcher struct {
	path     string
	base     ProfileSet
	profiles *Profiles
	log      *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

func NewProfileWatcher(path string, base ProfileSet, profiles *Profiles, log *zap.Logger) *ProfileWatcher {
	return &ProfileWatcher{
		path:     filepath.Clean(path),
		base:     base,
		profiles: profiles,
		log:      log,
		debounce: 300 * time.Millisecond,
	}
}

// Start is non-blocking. Calling it twice is a no-op.
func (w *ProfileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return err
	}

	w.watcher = watcher
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true

	go w.loop(ctx)
	return nil
}

func (w *ProfileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
}

func (w *ProfileWatcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("limits watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *ProfileWatcher) reload() {
	set, err := LoadProfiles(w.path, w.base)
	if err != nil {
		w.log.Error("failed to reload limits file, keeping previous profiles", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.profiles.Replace(set)
	w.log.Info("limits reloaded", zap.String("path", w.path), zap.Int("platforms", len(set.Platforms)))
}
