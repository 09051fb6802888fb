// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CollectorConfig is the full configuration for a collector process. It has
// no environment-variable overrides: DATABASE_URL and CORS_ORIGINS are the
// only env-configured settings, and both are receiver-side.
type CollectorConfig struct {
	Server  CollectorServer `yaml:"server"`
	Sampler SamplerConfig   `yaml:"sampler"`
	Sender  SenderConfig    `yaml:"sender"`
	Logging LoggingInfo     `yaml:"logging"`
}

// CollectorServer is the receiver address the collector dials.
type CollectorServer struct {
	Address string `yaml:"address"`
}

// SamplerConfig controls the sampling cadence and the hand-off queue.
type SamplerConfig struct {
	Period        time.Duration `yaml:"period"`
	QueueCapacity int           `yaml:"queue_capacity"`
}

// SenderConfig controls how many samples a collector sends before retiring.
type SenderConfig struct {
	MaxMessages int `yaml:"max_messages"`
}

// LoggingInfo controls structured log output. Shared between collector and
// receiver configs.
type LoggingInfo struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// LoadCollectorConfig reads, defaults, and validates a collector YAML file.
func LoadCollectorConfig(path string) (*CollectorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading collector config: %w", err)
	}

	var cfg CollectorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing collector config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating collector config: %w", err)
	}
	return &cfg, nil
}

func (c *CollectorConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "127.0.0.1:9004"
	}
	if c.Sampler.Period <= 0 {
		c.Sampler.Period = time.Second
	}
	if c.Sampler.QueueCapacity <= 0 {
		c.Sampler.QueueCapacity = 10
	}
	if c.Sender.MaxMessages <= 0 {
		c.Sender.MaxMessages = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

func (c *CollectorConfig) validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if c.Sampler.Period <= 0 {
		return fmt.Errorf("sampler.period must be positive")
	}
	if c.Sampler.QueueCapacity <= 0 {
		return fmt.Errorf("sampler.queue_capacity must be positive")
	}
	if c.Sender.MaxMessages <= 0 {
		return fmt.Errorf("sender.max_messages must be positive")
	}
	return nil
}
