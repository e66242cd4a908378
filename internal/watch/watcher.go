// Package watch turns file writes under a set of roots into save events,
// standing in for an editor's file-saved hook.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Saver is notified once a file has been written to disk.
type Saver interface {
	Save(ctx context.Context, file string)
}

// Watcher forwards write events to a Saver, one at a time.
type Watcher struct {
	watcher    *fsnotify.Watcher
	saver      Saver
	ignoreDirs map[string]bool
	logger     *zap.Logger
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a Watcher. historyDir is the name of the hidden history
// directory; it is never watched so snapshots don't trigger themselves.
func New(saver Saver, historyDir string, logger *zap.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &Watcher{
		watcher: watcher,
		saver:   saver,
		ignoreDirs: map[string]bool{
			historyDir:     true,
			".store":       true,
			".git":         true,
			"node_modules": true,
			"vendor":       true,
		},
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Add watches root and every directory below it.
func (w *Watcher) Add(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.ShouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// handleEvent processes individual filesystem events
func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if w.ShouldIgnore(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		// Gone again, e.g. an editor's backup file.
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.Add(event.Name); err != nil {
				w.logger.Error("watching new directory", zap.String("dir", event.Name), zap.Error(err))
			}
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	w.saver.Save(ctx, event.Name)
}

// ShouldIgnore reports whether path lies in an ignored directory.
func (w *Watcher) ShouldIgnore(path string) bool {
	if path == "" {
		return true
	}
	for _, part := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
		if w.ignoreDirs[part] {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
