// Package watcher ingests media files dropped into a configured directory,
// feeding them through the same intake as HTTP uploads in detached mode.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"recap/internal/config"
	"recap/internal/logging"
)

// Handler processes one dropped file. Errors are logged, not retried.
type Handler func(path string) error

// Watcher monitors the configured watch directory for new media files.
type Watcher struct {
	dir     string
	cfg     *config.Config
	handler Handler
	logger  *slog.Logger
	fs      *fsnotify.Watcher

	settleInterval time.Duration
	settleTimeout  time.Duration

	wg sync.WaitGroup
}

// New creates a watcher for cfg's watch directory, creating it if missing.
// Returns nil without error when no watch directory is configured.
func New(cfg *config.Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	dir := strings.TrimSpace(cfg.Paths.WatchDir)
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch directory: %w", err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:            dir,
		cfg:            cfg,
		handler:        handler,
		logger:         logging.NewComponentLogger(logger, "watcher"),
		fs:             fs,
		settleInterval: 200 * time.Millisecond,
		settleTimeout:  30 * time.Second,
	}, nil
}

// Start monitors the directory until ctx ends, then waits for in-flight
// ingestions. Files already present at startup are picked up too.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.logger.Info("watching for dropped media", logging.String("dir", w.dir))

	w.sweepExisting()

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			w.logger.Info("watcher stopped")
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				w.wg.Wait()
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.wanted(event.Name) {
				continue
			}
			w.wg.Add(1)
			go func(path string) {
				defer w.wg.Done()
				w.ingest(ctx, path)
			}(event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				w.wg.Wait()
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watch error", logging.Error(err))
		}
	}
}

// Stop closes the underlying filesystem watcher, unblocking Start.
func (w *Watcher) Stop() error {
	if w == nil {
		return nil
	}
	return w.fs.Close()
}

func (w *Watcher) sweepExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("initial sweep failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if !w.wanted(path) {
			continue
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.ingest(context.Background(), path)
		}()
	}
}

func (w *Watcher) wanted(path string) bool {
	return w.cfg.AllowedExtension(strings.ToLower(filepath.Ext(path)))
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	w.logger.Info("media file detected", logging.String("path", path))

	if err := w.waitForSettle(ctx, path); err != nil {
		w.logger.Warn("file never settled, skipping",
			logging.String("path", path),
			logging.Error(err),
		)
		return
	}
	if err := w.handler(path); err != nil {
		w.logger.Error("ingestion failed",
			logging.String("path", path),
			logging.Error(err),
		)
		return
	}
	w.logger.Info("file ingested", logging.String("path", path))
}

// waitForSettle polls the file size until it stops changing, so a file still
// being copied into the directory is not ingested half-written.
func (w *Watcher) waitForSettle(ctx context.Context, path string) error {
	deadline := time.Now().Add(w.settleTimeout)
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == lastSize {
			return nil
		}
		lastSize = info.Size()

		if time.Now().After(deadline) {
			return fmt.Errorf("still growing after %s", w.settleTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.settleInterval):
		}
	}
}
