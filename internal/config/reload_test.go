// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchReceiverConfig_ReloadsCORSOriginsOnWrite(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	t.Setenv("CORS_ORIGINS", "")

	path := filepath.Join(t.TempDir(), "receiver.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen: \"127.0.0.1:9004\"\nhttp:\n  cors_origins: [\"http://old.example\"]\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	watcher, err := WatchReceiverConfig(ctx, path, logger)
	if err != nil {
		t.Fatalf("WatchReceiverConfig: %v", err)
	}

	if got := watcher.Current().HTTP.CORSOrigins; len(got) != 1 || got[0] != "http://old.example" {
		t.Fatalf("initial cors origins = %v", got)
	}

	if err := os.WriteFile(path, []byte("server:\n  listen: \"127.0.0.1:9004\"\nhttp:\n  cors_origins: [\"http://new.example\"]\n"), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := watcher.Current().HTTP.CORSOrigins; len(got) == 1 && got[0] == "http://new.example" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("cors origins never reloaded, still %v", watcher.Current().HTTP.CORSOrigins)
}

func TestWatchReceiverConfig_ListenAddressesSurviveReload(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	t.Setenv("CORS_ORIGINS", "")

	path := filepath.Join(t.TempDir(), "receiver.yaml")
	if err := os.WriteFile(path, []byte("server:\n  listen: \"127.0.0.1:9004\"\nhttp:\n  listen: \"0.0.0.0:3000\"\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	watcher, err := WatchReceiverConfig(ctx, path, logger)
	if err != nil {
		t.Fatalf("WatchReceiverConfig: %v", err)
	}

	// Even if the file changes the listen addresses, a running process must
	// not pick them up without a restart.
	if err := os.WriteFile(path, []byte("server:\n  listen: \"127.0.0.1:9999\"\nhttp:\n  listen: \"0.0.0.0:4000\"\n"), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	if got := watcher.Current().Server.Listen; got != "127.0.0.1:9004" {
		t.Errorf("server.listen changed across reload: %q", got)
	}
	if got := watcher.Current().HTTP.Listen; got != "0.0.0.0:3000" {
		t.Errorf("http.listen changed across reload: %q", got)
	}
}
