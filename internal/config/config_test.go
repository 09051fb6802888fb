// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCollectorConfig_ExampleFile(t *testing.T) {
	cfg, err := LoadCollectorConfig(filepath.Join("..", "..", "configs", "collector.example.yaml"))
	if err != nil {
		t.Fatalf("loading collector example config: %v", err)
	}
	if cfg.Server.Address != "backup.telemetryd.dev:9004" {
		t.Errorf("server.address = %q", cfg.Server.Address)
	}
	if cfg.Sampler.Period != time.Second {
		t.Errorf("sampler.period = %v, want 1s", cfg.Sampler.Period)
	}
	if cfg.Sampler.QueueCapacity != 10 {
		t.Errorf("sampler.queue_capacity = %d, want 10", cfg.Sampler.QueueCapacity)
	}
	if cfg.Sender.MaxMessages != 100 {
		t.Errorf("sender.max_messages = %d, want 100", cfg.Sender.MaxMessages)
	}
	if cfg.Logging.File != "/var/log/telemetryd/collector.log" {
		t.Errorf("logging.file = %q", cfg.Logging.File)
	}
}

func TestLoadCollectorConfig_DefaultsApplyWhenFieldsOmitted(t *testing.T) {
	path := writeTempYAML(t, "server:\n  address: \"localhost:9004\"\n")
	cfg, err := LoadCollectorConfig(path)
	if err != nil {
		t.Fatalf("loading minimal collector config: %v", err)
	}
	if cfg.Sampler.Period != time.Second {
		t.Errorf("default sampler.period = %v, want 1s", cfg.Sampler.Period)
	}
	if cfg.Sampler.QueueCapacity != 10 {
		t.Errorf("default sampler.queue_capacity = %d, want 10", cfg.Sampler.QueueCapacity)
	}
	if cfg.Sender.MaxMessages != 100 {
		t.Errorf("default sender.max_messages = %d, want 100", cfg.Sender.MaxMessages)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default logging = %+v", cfg.Logging)
	}
}

func TestLoadReceiverConfig_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	path := writeTempYAML(t, "server:\n  listen: \"127.0.0.1:9004\"\n")
	if _, err := LoadReceiverConfig(path); err == nil {
		t.Fatal("expected an error when DATABASE_URL is unset")
	}
}

func TestLoadReceiverConfig_EnvOverridesCORSOrigins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	path := writeTempYAML(t, "server:\n  listen: \"127.0.0.1:9004\"\nhttp:\n  cors_origins: [\"http://ignored.example\"]\n")

	cfg, err := LoadReceiverConfig(path)
	if err != nil {
		t.Fatalf("loading receiver config: %v", err)
	}
	want := []string{"http://a.example", "http://b.example"}
	if len(cfg.HTTP.CORSOrigins) != len(want) || cfg.HTTP.CORSOrigins[0] != want[0] || cfg.HTTP.CORSOrigins[1] != want[1] {
		t.Errorf("cors origins = %v, want %v", cfg.HTTP.CORSOrigins, want)
	}
}

func TestLoadReceiverConfig_ArchiveDisabledWithoutBucket(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	path := writeTempYAML(t, "server:\n  listen: \"127.0.0.1:9004\"\n")
	cfg, err := LoadReceiverConfig(path)
	if err != nil {
		t.Fatalf("loading receiver config: %v", err)
	}
	if cfg.Archive.Enabled() {
		t.Error("archive should be disabled when no bucket is configured")
	}
}

func TestLoadReceiverConfig_ArchiveRequiresRegionWhenBucketSet(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	path := writeTempYAML(t, "server:\n  listen: \"127.0.0.1:9004\"\narchive:\n  bucket: \"telemetry\"\n")
	if _, err := LoadReceiverConfig(path); err == nil {
		t.Fatal("expected an error when archive.bucket is set without archive.region")
	}
}

func TestLoadReceiverConfig_UploadBytesPerSecDefaultsToUnlimited(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	path := writeTempYAML(t, "server:\n  listen: \"127.0.0.1:9004\"\narchive:\n  bucket: \"telemetry\"\n  region: \"us-east-1\"\n")
	cfg, err := LoadReceiverConfig(path)
	if err != nil {
		t.Fatalf("loading receiver config: %v", err)
	}
	if cfg.Archive.UploadBytesPerSec != 0 {
		t.Errorf("default archive.upload_bytes_per_sec = %d, want 0 (unlimited)", cfg.Archive.UploadBytesPerSec)
	}
}

func TestLoadReceiverConfig_NegativeUploadBytesPerSecRejected(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example/db")
	path := writeTempYAML(t, "server:\n  listen: \"127.0.0.1:9004\"\narchive:\n  upload_bytes_per_sec: -1\n")
	if _, err := LoadReceiverConfig(path); err == nil {
		t.Fatal("expected an error when archive.upload_bytes_per_sec is negative")
	}
}

func writeTempYAML(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}
