// Package watch snapshots a directory after it stops changing.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 2 * time.Second

// SettleFunc runs once the tree has been quiet for the debounce window.
type SettleFunc func(ctx context.Context) error

type Watcher struct {
	root     string
	debounce time.Duration
	onSettle SettleFunc
	ignore   map[string]bool
	watcher  *fsnotify.Watcher
	logger   *zap.Logger

	mu      sync.Mutex
	pending bool
}

// New watches root and every directory below it. Directories named in
// ignore are skipped at any depth.
func New(root string, debounce time.Duration, onSettle SettleFunc, logger *zap.Logger, ignore ...string) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		onSettle: onSettle,
		ignore:   map[string]bool{},
		watcher:  fw,
		logger:   logger,
	}
	for _, name := range ignore {
		w.ignore[name] = true
	}

	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != dir && w.ignore[info.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

// Run blocks until ctx is done or the settle callback fails. Events that
// arrive while the callback runs schedule another round.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watching new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}
			w.mu.Lock()
			w.pending = true
			w.mu.Unlock()
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			w.mu.Lock()
			pending := w.pending
			w.pending = false
			w.mu.Unlock()
			if !pending {
				continue
			}
			w.logger.Debug("tree settled", zap.String("root", w.root))
			if err := w.onSettle(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return false
	}
	for dir := filepath.Dir(rel); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if w.ignore[filepath.Base(dir)] {
			return false
		}
	}
	return !w.ignore[filepath.Base(rel)]
}
