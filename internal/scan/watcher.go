package scan

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"photo-library/internal/logging"
	"photo-library/internal/metrics"
)

// debounceDelay batches bursts of filesystem events (a camera import writes
// hundreds of files in seconds) into one rescan.
const debounceDelay = 5 * time.Second

// Watcher triggers a callback when photo files change anywhere under the
// library root. New directories are picked up as they appear.
type Watcher struct {
	root       string
	extensions map[string]bool
	onChange   func()
	watcher    *fsnotify.Watcher
}

// NewWatcher creates a watcher over root. onChange fires, debounced, after
// relevant create, write, remove or rename events.
func NewWatcher(root string, extensions []string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:       root,
		extensions: make(map[string]bool, len(extensions)),
		onChange:   onChange,
		watcher:    fsw,
	}
	for _, ext := range extensions {
		w.extensions[strings.ToLower(ext)] = true
	}

	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("watcher cannot read %s: %v", path, err)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Run processes events until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-fire:
			logging.Info("library changed on disk, rescanning")
			w.onChange()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				metrics.WatcherEventsTotal.WithLabelValues(event.Op.String()).Inc()
				schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			metrics.WatcherErrors.Inc()
			logging.Error("watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}

	// A created directory needs watching before its contents arrive.
	if event.Op.Has(fsnotify.Create) {
		if err := w.watcher.Add(event.Name); err == nil {
			return true
		}
	}

	if !w.extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return false
	}
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename)
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
