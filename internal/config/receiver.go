// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ReceiverConfig is the full configuration for a receiver process.
// DatabaseURL and CORSOrigins are the two env-configured fields
// (DATABASE_URL, CORS_ORIGINS); ApplyEnv overlays them onto whatever the
// YAML file set.
type ReceiverConfig struct {
	Server  ReceiverServer `yaml:"server"`
	HTTP    HTTPConfig     `yaml:"http"`
	Archive ArchiveConfig  `yaml:"archive"`
	Logging LoggingInfo    `yaml:"logging"`

	// DatabaseURL is never set from YAML; it is always an env override.
	DatabaseURL string `yaml:"-"`
}

// ReceiverServer is the TCP listen address for the envelope protocol.
type ReceiverServer struct {
	Listen string `yaml:"listen"`
}

// HTTPConfig controls the read API's listener and CORS policy.
type HTTPConfig struct {
	Listen      string   `yaml:"listen"`
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ArchiveConfig controls the cold-storage sweep. The feature is disabled
// unless Bucket is set.
type ArchiveConfig struct {
	Bucket    string        `yaml:"bucket"`
	Region    string        `yaml:"region"`
	Prefix    string        `yaml:"prefix"`
	Retention time.Duration `yaml:"retention"`
	Schedule  string        `yaml:"schedule"`

	// UploadBytesPerSec caps the S3 upload rate. 0 means unlimited.
	UploadBytesPerSec int64 `yaml:"upload_bytes_per_sec"`
}

// Enabled reports whether the archive sweep should run at all.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// LoadReceiverConfig reads, defaults, and validates a receiver YAML file,
// then applies DATABASE_URL and CORS_ORIGINS from the environment.
func LoadReceiverConfig(path string) (*ReceiverConfig, error) {
	cfg, err := loadReceiverConfigFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating receiver config: %w", err)
	}
	return cfg, nil
}

func loadReceiverConfigFile(path string) (*ReceiverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading receiver config: %w", err)
	}
	var cfg ReceiverConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing receiver config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// ApplyEnv overlays DATABASE_URL and CORS_ORIGINS onto the config if set.
// It never clears a field because an env var is absent.
func (c *ReceiverConfig) ApplyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.HTTP.CORSOrigins = splitCommaList(v)
	}
}

func splitCommaList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *ReceiverConfig) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = "127.0.0.1:9004"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = "0.0.0.0:3000"
	}
	if c.HTTP.StaticDir == "" {
		c.HTTP.StaticDir = "./wwwroot"
	}
	if len(c.HTTP.CORSOrigins) == 0 {
		c.HTTP.CORSOrigins = []string{"http://localhost"}
	}
	if c.Archive.Retention <= 0 {
		c.Archive.Retention = 24 * time.Hour
	}
	if c.Archive.Schedule == "" {
		c.Archive.Schedule = "0 */15 * * * *"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *ReceiverConfig) validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if c.HTTP.Listen == "" {
		return fmt.Errorf("http.listen is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Archive.Enabled() && c.Archive.Region == "" {
		return fmt.Errorf("archive.region is required when archive.bucket is set")
	}
	if c.Archive.UploadBytesPerSec < 0 {
		return fmt.Errorf("archive.upload_bytes_per_sec must not be negative")
	}
	return nil
}
