// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcherReloadsLogLevelOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`log_level = "info"`+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	log := zerolog.Nop()
	watcher := NewWatcher(path, &log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`log_level = "debug"`+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if log.GetLevel() == zerolog.DebugLevel {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("log level never reloaded to debug, stayed at %v", log.GetLevel())
}

func TestWatcherIgnoresOtherFilesInSameDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`log_level = "info"`+"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	log := zerolog.Nop().Level(zerolog.InfoLevel)
	watcher := NewWatcher(path, &log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watcher.Run(ctx)

	time.Sleep(50 * time.Millisecond)

	unrelated := filepath.Join(dir, "other.txt")
	if err := os.WriteFile(unrelated, []byte("noise"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if log.GetLevel() != zerolog.InfoLevel {
		t.Errorf("log level changed from unrelated file event: %v", log.GetLevel())
	}
}

func TestWatcherWithEmptyPathIsNoop(t *testing.T) {
	log := zerolog.Nop()
	watcher := NewWatcher("", &log)

	done := make(chan struct{})
	go func() {
		watcher.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Run with empty path did not return")
	}
}
