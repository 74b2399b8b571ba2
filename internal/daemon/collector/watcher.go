package collector

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/metaoverlayfs/panel/internal/daemon/store"
)

const defaultDebounce = 250 * time.Millisecond

// FileWatcher reports changes of a set of files on the local filesystem
// and optionally reacts to them. It only sees the device when the daemon
// runs on it; a missing directory disables the watcher.
type FileWatcher struct {
	name     string
	files    map[string]struct{}
	onChange func(ctx context.Context, file string) error
	debounce time.Duration
	logger   *logrus.Entry
}

// NewFileWatcher watches files. onChange, when non-nil, runs once per
// burst of changes after debounce of quiet.
func NewFileWatcher(name string, files []string, onChange func(ctx context.Context, file string) error, debounce time.Duration, logger *logrus.Entry) *FileWatcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	set := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f != "" {
			set[filepath.Clean(f)] = struct{}{}
		}
	}
	return &FileWatcher{
		name:     name,
		files:    set,
		onChange: onChange,
		debounce: debounce,
		logger:   logger,
	}
}

// Name implements Collector.
func (w *FileWatcher) Name() string { return w.name }

// Run implements Collector.
func (w *FileWatcher) Run(ctx context.Context, _ *store.Store, updates chan<- store.Update) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	dirs := make(map[string]struct{})
	for f := range w.files {
		dir := filepath.Dir(f)
		if _, ok := dirs[dir]; ok {
			continue
		}
		dirs[dir] = struct{}{}
		// fsnotify loses a file replaced by rename, so watch the directory.
		if err := watcher.Add(dir); err != nil {
			w.logger.WithError(err).WithField("dir", dir).Debug("Not watching directory")
			continue
		}
		watched++
	}
	if watched == 0 {
		w.logger.Debug("No watchable directories, file watcher idle")
		<-ctx.Done()
		return nil
	}

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := ""

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(event.Name)
			if _, ok := w.files[name]; !ok {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
			pending = name
			timer.Reset(w.debounce)

		case <-timer.C:
			file := pending
			pending = ""
			w.logger.WithField("file", file).Info("Watched file changed")
			if w.onChange != nil {
				if err := w.onChange(ctx, file); err != nil {
					w.logger.WithError(err).WithField("file", file).Warn("Change handler failed")
				}
			}
			send(ctx, updates, store.Update{
				Type:   store.UpdateFileChanged,
				Source: w.name,
				Detail: file,
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("Watcher error")
		}
	}
}
