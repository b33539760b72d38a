// Package inbox watches a drop folder and feeds new MP4 files into the
// session, the command-line analog of dragging files onto the picker.
package inbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"vidstitch/internal/logging"
	"vidstitch/internal/session"
)

const (
	settlePollInterval = 250 * time.Millisecond
	settleTimeout      = 30 * time.Second
)

// Watcher tails a directory for dropped files.
type Watcher struct {
	dir    string
	sess   *session.Session
	logger *slog.Logger
}

// New builds a watcher over dir. The directory must already exist.
func New(dir string, sess *session.Session, logger *slog.Logger) (*Watcher, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("inbox: directory not set")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("inbox: " + dir + " is not a directory")
	}
	return &Watcher{
		dir:    dir,
		sess:   sess,
		logger: logging.WithComponent(logger, "inbox"),
	}, nil
}

// Run watches until the context is canceled. Files already present at start
// are picked up first, then filesystem events drive the rest. A file is only
// handed to the session once its size has stopped changing, so partially
// copied drops are never probed.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.handle(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	w.logger.Info("watching inbox", logging.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.handle(ctx, event.Name)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	if !strings.EqualFold(filepath.Ext(path), ".mp4") {
		return
	}
	if err := waitSettled(ctx, path); err != nil {
		w.logger.Warn("dropped file never settled",
			logging.String("path", path),
			logging.Error(err))
		return
	}
	for _, result := range w.sess.AddPaths(ctx, []string{path}) {
		if result.Err != nil {
			continue
		}
		w.logger.Info("inbox file added",
			logging.String("path", result.SourcePath),
			logging.String("entry", result.EntryID))
	}
}

// waitSettled returns once the file's size is stable across two polls.
func waitSettled(ctx context.Context, path string) error {
	deadline := time.Now().Add(settleTimeout)
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == lastSize && info.Size() > 0 {
			return nil
		}
		lastSize = info.Size()
		if time.Now().After(deadline) {
			return errors.New("settle timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}
}
