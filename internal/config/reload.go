// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of write events a single `save` in an
// editor can produce into one reload.
const reloadDebounce = 200 * time.Millisecond

// ReceiverWatcher holds the live, hot-reloadable ReceiverConfig. A reload
// swaps in the re-read file, except that server.listen, http.listen and
// DATABASE_URL are carried over from the previous config. Of the running
// components, only the CORS middleware reads Current() per request, so
// http.cors_origins takes effect at once; the archive sweeper and its
// schedule, the listeners, the database pool, and the S3 client keep the
// values they were built with at startup until the process restarts.
type ReceiverWatcher struct {
	current atomic.Pointer[ReceiverConfig]
	path    string
	logger  *slog.Logger
}

// WatchReceiverConfig loads path once and returns a ReceiverWatcher that
// keeps the config current in the background until ctx is cancelled.
func WatchReceiverConfig(ctx context.Context, path string, logger *slog.Logger) (*ReceiverWatcher, error) {
	cfg, err := LoadReceiverConfig(path)
	if err != nil {
		return nil, err
	}

	w := &ReceiverWatcher{path: path, logger: logger.With("component", "config-watcher")}
	w.current.Store(cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Hot-reload is a convenience, not a hard requirement: log and run
		// with the config we already loaded rather than failing startup.
		w.logger.Warn("fsnotify unavailable, hot-reload disabled", "error", err)
		return w, nil
	}
	if err := watcher.Add(path); err != nil {
		w.logger.Warn("watching config file failed, hot-reload disabled", "error", err, "path", path)
		watcher.Close()
		return w, nil
	}

	go w.run(ctx, watcher)
	return w, nil
}

// Current returns the live config. Safe for concurrent use.
func (w *ReceiverWatcher) Current() *ReceiverConfig {
	return w.current.Load()
}

func (w *ReceiverWatcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.reload)
		}
	}
}

func (w *ReceiverWatcher) reload() {
	next, err := loadReceiverConfigFile(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous config", "error", err)
		return
	}
	next.ApplyEnv()
	if err := next.validate(); err != nil {
		w.logger.Error("reloaded config failed validation, keeping previous config", "error", err)
		return
	}

	prev := w.current.Load()
	// Fields that require restarting owned resources are carried over from
	// the previous config rather than adopted from the file, even if the
	// file changed them — only a process restart picks those up.
	next.Server = prev.Server
	next.HTTP.Listen = prev.HTTP.Listen
	next.DatabaseURL = prev.DatabaseURL

	w.current.Store(next)
	w.logger.Info("config reloaded", "cors_origins", next.HTTP.CORSOrigins)
}
