package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Reloader re-reads the config file after it changes on disk and hands
// every valid result to onReload. Saves that leave the bytes unchanged and
// files that fail to load are ignored.
type Reloader struct {
	path     string
	onReload func(*Config)

	mu       sync.Mutex
	lastHash uint64

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewReloader(path string, onReload func(*Config)) *Reloader {
	return &Reloader{
		path:     filepath.Clean(path),
		onReload: onReload,
		stop:     make(chan struct{}),
	}
}

// Start records the current content and begins watching. The parent
// directory is watched so replace-by-rename saves are seen.
func (r *Reloader) Start(ctx context.Context) error {
	if data, err := os.ReadFile(r.path); err == nil {
		r.lastHash = xxhash.Sum64(data)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(r.path)); err != nil {
		fsw.Close()
		return err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer fsw.Close()
		slog.Debug("watching config file", "path", r.path)

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != r.path || event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, r.reload)

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "error", err)

			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop ends watching. It may be called more than once.
func (r *Reloader) Stop() {
	r.once.Do(func() { close(r.stop) })
	r.wg.Wait()
}

func (r *Reloader) reload() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		slog.Warn("config file unreadable, keeping current settings", "path", r.path, "error", err)
		return
	}
	sum := xxhash.Sum64(data)

	r.mu.Lock()
	if sum == r.lastHash {
		r.mu.Unlock()
		return
	}
	r.lastHash = sum
	r.mu.Unlock()

	cfg, err := Load(r.path)
	if err != nil {
		slog.Error("failed to reload configuration", "path", r.path, "error", err)
		return
	}
	slog.Info("configuration reloaded", "path", r.path)
	if r.onReload != nil {
		r.onReload(cfg)
	}
}
