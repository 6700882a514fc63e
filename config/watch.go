// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/erldist/erldist/internal/erllog"
)

// Watcher reloads a config file's log_level on change and applies it
// to a live logger, per SPEC_FULL.md §4.I ("a file watcher may
// hot-reload the log level only; connection-affecting fields are
// immutable after Dial"). It never touches any other field.
type Watcher struct {
	path string
	log  *zerolog.Logger

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher builds a Watcher that applies log_level changes in path
// to log in place.
func NewWatcher(path string, log *zerolog.Logger) *Watcher {
	return &Watcher{path: path, log: log}
}

// Run watches the config file's directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}
	dir := filepath.Dir(w.path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Error().Err(err).Msg("config watcher: failed to create watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		w.log.Error().Err(err).Str("dir", dir).Msg("config watcher: failed to watch directory")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.debounceReload(ctx, 100*time.Millisecond)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("config watcher: fsnotify error")
		}
	}
}

func (w *Watcher) debounceReload(ctx context.Context, delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, func() { w.reload(ctx) })
}

func (w *Watcher) reload(ctx context.Context) {
	fc, err := LoadFile(w.path)
	if err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("config watcher: reload failed")
		return
	}
	if fc.LogLevel == "" {
		return
	}
	level := erllog.ParseLevel(fc.LogLevel)
	erllog.SetLevel(w.log, level)
	w.log.Info().Str("log_level", fc.LogLevel).Msg("config watcher: log level reloaded")
}
